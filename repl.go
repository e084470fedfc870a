package baton

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// RunDemoLoop starts an interactive loop on stdin for the given agent. Each
// line is appended to the transcript as a user message and dispatched;
// assistant replies and tool activity are printed to stdout. The loop ends at
// EOF (Ctrl-D) or on the first dispatch error.
func RunDemoLoop(startingAgent *Agent, contextVariables map[string]interface{}, stream bool, debug bool) {
	client, err := NewDefaultBaton()
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		return
	}

	fmt.Println("Starting baton demo loop (Ctrl-D to quit)")

	ctx := context.Background()
	messages := make([]map[string]interface{}, 0)
	agent := startingAgent
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("\033[90mUser\033[0m: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		messages = append(messages, map[string]interface{}{
			"role":    "user",
			"content": input,
		})

		if stream {
			ch, err := client.RunAndStream(ctx, agent, messages, contextVariables, "", debug, 10, true, false)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			response := drainStream(ch, agent.Name)
			if response == nil {
				return
			}
			messages = append(messages, response.Messages...)
			agent = response.Agent
		} else {
			response, err := client.Run(ctx, agent, messages, contextVariables, "", false, debug, 10, true, false)
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				return
			}
			printMessages(response.Messages)
			messages = append(messages, response.Messages...)
			agent = response.Agent
		}
	}
}

// drainStream prints streaming chunks as they arrive and returns the final
// response, or nil if the stream ended without one.
func drainStream(ch <-chan map[string]interface{}, sender string) *Response {
	var response *Response
	for chunk := range ch {
		if content, ok := chunk["content"].(string); ok && content != "" {
			name, _ := chunk["sender"].(string)
			if name == "" {
				name = sender
			}
			fmt.Printf("\033[94m%s\033[0m: %s\n", name, content)
		}
		if _, ok := chunk["tool_calls"]; ok {
			fmt.Printf("\033[95mcalling tools...\033[0m\n")
		}
		if err, ok := chunk["error"].(error); ok {
			fmt.Printf("Error: %v\n", err)
		}
		if resp, ok := chunk["response"].(*Response); ok {
			response = resp
		}
	}
	return response
}

// printMessages prints the assistant and tool records of a response.
func printMessages(messages []map[string]interface{}) {
	for _, msg := range messages {
		role, _ := msg["role"].(string)
		switch role {
		case "assistant":
			content, _ := msg["content"].(string)
			if content == "" {
				continue
			}
			sender, _ := msg["sender"].(string)
			if sender == "" {
				sender = "assistant"
			}
			fmt.Printf("\033[94m%s\033[0m: %s\n", sender, content)
		case "tool":
			name, _ := msg["tool_name"].(string)
			content, _ := msg["content"].(string)
			fmt.Printf("\033[95m[%s]\033[0m %s\n", name, content)
		}
	}
}
