package baton

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

var (
	// ErrEmptyMessages is returned when a run is started without any messages.
	ErrEmptyMessages = errors.New("messages cannot be empty")

	// ErrUnknownTool is returned when the model requests a tool that is not
	// registered on the active agent. The run aborts; there is no fallback.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidToolCall is returned when a tool call's argument payload
	// cannot be decoded.
	ErrInvalidToolCall = errors.New("invalid tool call")

	// ErrInvalidInstruction is returned when an agent's Instructions field is
	// neither a string nor a supported function type.
	ErrInvalidInstruction = errors.New("invalid instructions type")
)

// ContextVariablesName is the argument key under which the dispatcher injects
// the shared context variables into every function call. The key is stripped
// from the tool manifest so the model never sees it.
const ContextVariablesName = "context_variables"

// Baton drives the conversation loop: it requests completions, dispatches the
// tool calls the model selects to local functions, and appends the correlated
// results until the model produces a plain reply.
type Baton struct {
	// Client is the completions backend.
	Client OpenAIClient
}

// NewBaton creates a Baton on top of the provided client.
func NewBaton(client OpenAIClient) *Baton {
	if client == nil {
		panic("completion client cannot be nil")
	}
	return &Baton{Client: client}
}

// NewDefaultBaton creates a Baton configured from the environment.
// See NewClientFromEnv for the variables consulted.
func NewDefaultBaton() (*Baton, error) {
	client, err := NewClientFromEnv()
	if err != nil {
		return nil, err
	}
	return NewBaton(client), nil
}

// getChatCompletion sends one completion request for the current transcript
// and the agent's tool manifest.
func (b *Baton) getChatCompletion(
	ctx context.Context,
	agent *Agent,
	history []map[string]interface{},
	contextVariables map[string]interface{},
	modelOverride string,
	debug bool,
	jsonMode bool,
) (*openai.ChatCompletion, error) {
	if agent == nil {
		return nil, errors.New("agent cannot be nil")
	}

	if contextVariables == nil {
		contextVariables = make(map[string]interface{})
	}

	instructions, err := b.getInstructions(agent, contextVariables)
	if err != nil {
		return nil, err
	}

	model := modelOverride
	if model == "" {
		model = agent.Model
	}
	messages := prepareMessages(instructions, history, model)
	tools := prepareTools(agent)

	params := openai.ChatCompletionNewParams{
		Messages: messages,
		Model:    openai.ChatModel(model),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	if len(tools) > 0 {
		params.Tools = tools
		if agent.ToolChoice != nil {
			params.ToolChoice = *agent.ToolChoice
		}
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	DebugPrint(debug, "Getting chat completion for:", string(paramsJSON))

	return b.Client.CreateChatCompletion(ctx, params)
}

// getInstructions resolves the agent's instructions, which may be a plain
// string or a function of the context variables.
func (b *Baton) getInstructions(agent *Agent, contextVariables map[string]interface{}) (string, error) {
	switch i := agent.Instructions.(type) {
	case string:
		return i, nil
	case func(map[string]interface{}) string:
		return i(contextVariables), nil
	case func() string:
		return i(), nil
	default:
		return "", ErrInvalidInstruction
	}
}

// prepareTools builds the tool manifest from the agent's functions.
// The context_variables pseudo-parameter is stripped: it is injected locally
// at call time and must not appear in the schema the model sees.
func prepareTools(agent *Agent) []openai.ChatCompletionToolParam {
	var tools []openai.ChatCompletionToolParam
	for _, f := range agent.Functions {
		if f == nil {
			continue
		}

		properties, required := functionSchema(f)
		delete(properties, ContextVariablesName)
		filtered := required[:0]
		for _, name := range required {
			if name != ContextVariablesName {
				filtered = append(filtered, name)
			}
		}
		required = filtered

		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        f.Name(),
				Description: openai.String(f.Description()),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": properties,
					"required":   required,
				},
			},
		})
	}
	return tools
}

// prepareMessages converts the transcript records into SDK message params.
// Reasoning models reject system messages, so instructions are demoted to a
// user message for those.
func prepareMessages(instructions string, history []map[string]interface{}, model string) []openai.ChatCompletionMessageParamUnion {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(instructions),
	}
	lower := strings.ToLower(model)
	if strings.Contains(lower, "o1") || strings.Contains(lower, "o3") || strings.Contains(lower, "deepseek") {
		messages = []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(instructions),
		}
	}

	for _, msg := range history {
		content, _ := msg["content"].(string)
		role, _ := msg["role"].(string)

		switch role {
		case "user":
			messages = append(messages, openai.UserMessage(content))
		case "system":
			// Instructions already lead the message list.
		case "tool":
			toolCallID, _ := msg["tool_call_id"].(string)
			messages = append(messages, openai.ToolMessage(content, toolCallID))
		default:
			assistantMsg := openai.AssistantMessage(content)
			if toolCalls, ok := msg["tool_calls"].([]openai.ChatCompletionMessageToolCall); ok {
				toolCallParams := make([]openai.ChatCompletionMessageToolCallParam, len(toolCalls))
				for i, tc := range toolCalls {
					toolCallParams[i] = openai.ChatCompletionMessageToolCallParam{
						ID:   tc.ID,
						Type: tc.Type,
						Function: openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      tc.Function.Name,
							Arguments: tc.Function.Arguments,
						},
					}
				}
				assistantMsg.OfAssistant.ToolCalls = toolCallParams
			}
			messages = append(messages, assistantMsg)
		}
	}
	return messages
}

// handleFunctionResult normalizes a function's return value into a Result.
func (b *Baton) handleFunctionResult(result interface{}, debug bool) (*Result, error) {
	if result == nil {
		return &Result{}, nil
	}

	switch v := result.(type) {
	case *Result:
		return v, nil
	case *Agent:
		return &Result{
			Value: fmt.Sprintf(`{"assistant":"%s"}`, v.Name),
			Agent: v,
		}, nil
	default:
		str := fmt.Sprintf("%v", v)
		if str == "" {
			err := fmt.Errorf("failed to cast response to string: %v", result)
			DebugPrint(debug, err.Error())
			return nil, err
		}
		return &Result{Value: str}, nil
	}
}

// handleToolCalls dispatches the model's tool calls to local functions and
// collects the correlated tool records. A tool name with no registered
// function, an argument payload that does not decode, or a function error
// aborts the run; these faults have no fallback.
func (b *Baton) handleToolCalls(
	toolCalls []openai.ChatCompletionMessageToolCall,
	functions []AgentFunction,
	contextVariables map[string]interface{},
	debug bool,
) (*Response, error) {
	if len(toolCalls) == 0 {
		return nil, fmt.Errorf("no tool calls provided")
	}

	if contextVariables == nil {
		contextVariables = make(map[string]interface{})
	}

	functionMap := make(map[string]AgentFunction, len(functions))
	for _, f := range functions {
		if f != nil {
			functionMap[f.Name()] = f
		}
	}

	response := &Response{
		Messages:         make([]map[string]interface{}, 0, len(toolCalls)),
		ContextVariables: make(map[string]interface{}, len(contextVariables)),
	}
	for k, v := range contextVariables {
		response.ContextVariables[k] = v
	}

	for _, toolCall := range toolCalls {
		name := toolCall.Function.Name
		fn, exists := functionMap[name]
		if !exists {
			DebugPrint(debug, "Tool not found:", name)
			return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}

		var args map[string]interface{}
		if err := json.Unmarshal([]byte(toolCall.Function.Arguments), &args); err != nil {
			DebugPrint(debug, "Failed to parse arguments for tool:", name)
			return nil, fmt.Errorf("%w: parsing arguments for %q: %v", ErrInvalidToolCall, name, err)
		}
		if args == nil {
			args = make(map[string]interface{})
		}

		args[ContextVariablesName] = contextVariables

		rawResult, err := fn.Call(args)
		if err != nil {
			DebugPrint(debug, "Function execution failed:", name)
			return nil, fmt.Errorf("function %q execution failed: %w", name, err)
		}

		result, err := b.handleFunctionResult(rawResult, debug)
		if err != nil {
			return nil, fmt.Errorf("failed to handle result for tool %q: %w", name, err)
		}

		for k, v := range result.ContextVariables {
			contextVariables[k] = v
			response.ContextVariables[k] = v
		}

		if result.Agent != nil {
			response.Agent = result.Agent
		}

		message := map[string]interface{}{
			"role":         "tool",
			"tool_call_id": toolCall.ID,
			"tool_name":    name,
			"content":      result.Value,
		}
		if result.Agent != nil {
			message["agent"] = result.Agent.Name
		}

		response.Messages = append(response.Messages, message)
	}

	return response, nil
}

// RunAndStream runs the conversation loop in streaming mode. It returns a
// channel of chunk maps: "content" entries as the reply arrives, "tool_calls"
// entries when the model requests a function, "delim" start/end markers per
// completion, and a final "response" entry carrying the *Response. A failed
// run emits an "error" entry instead of a response; the channel always
// closes when the run ends.
func (b *Baton) RunAndStream(
	ctx context.Context,
	agent *Agent,
	messages []map[string]interface{},
	contextVariables map[string]interface{},
	modelOverride string,
	debug bool,
	maxTurns int,
	executeTools bool,
	jsonMode bool,
) (<-chan map[string]interface{}, error) {
	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	if agent == nil {
		return nil, errors.New("agent cannot be nil")
	}

	if contextVariables == nil {
		contextVariables = make(map[string]interface{})
	}

	resultChan := make(chan map[string]interface{})
	activeAgent := agent
	history := make([]map[string]interface{}, len(messages))
	copy(history, messages)
	initLen := len(messages)

	go func() {
		defer close(resultChan)

		for len(history)-initLen < maxTurns {
			instructions, err := b.getInstructions(activeAgent, contextVariables)
			if err != nil {
				DebugPrint(debug, "Failed to get instructions:", err)
				resultChan <- map[string]interface{}{"error": err}
				return
			}
			model := modelOverride
			if model == "" {
				model = activeAgent.Model
			}
			params := openai.ChatCompletionNewParams{
				Messages: prepareMessages(instructions, history, model),
				Model:    openai.ChatModel(model),
			}
			if jsonMode {
				params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
					OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
				}
			}
			if tools := prepareTools(activeAgent); len(tools) > 0 {
				params.Tools = tools
				if activeAgent.ToolChoice != nil {
					params.ToolChoice = *activeAgent.ToolChoice
				}
			}

			stream, err := b.Client.CreateChatCompletionStream(ctx, params)
			if err != nil {
				DebugPrint(debug, "Failed to create chat completion stream:", err)
				resultChan <- map[string]interface{}{"error": err}
				return
			}

			resultChan <- map[string]interface{}{"delim": "start"}
			acc := openai.ChatCompletionAccumulator{}
			for stream.Next() {
				chunk := stream.Current()
				acc.AddChunk(chunk)

				if content, ok := acc.JustFinishedContent(); ok {
					resultChan <- map[string]interface{}{
						"content": content,
						"sender":  activeAgent.Name,
					}
				}

				if tool, ok := acc.JustFinishedToolCall(); ok {
					resultChan <- map[string]interface{}{
						"tool_calls": []map[string]interface{}{
							{
								"id": tool.Index,
								"function": map[string]interface{}{
									"name":      tool.Name,
									"arguments": tool.Arguments,
								},
							},
						},
					}
				}
			}

			resultChan <- map[string]interface{}{"delim": "end"}

			if err := stream.Err(); err != nil {
				DebugPrint(debug, "Stream error:", err)
				resultChan <- map[string]interface{}{"error": err}
				return
			}

			if len(acc.Choices) == 0 {
				DebugPrint(debug, "No choices in the response.")
				resultChan <- map[string]interface{}{"error": fmt.Errorf("completion returned no choices")}
				return
			}

			message := map[string]interface{}{
				"content": acc.Choices[0].Message.Content,
				"sender":  activeAgent.Name,
				"role":    "assistant",
			}
			if len(acc.Choices[0].Message.ToolCalls) > 0 {
				message["tool_calls"] = acc.Choices[0].Message.ToolCalls
			}

			DebugPrint(debug, "Received completion:", message)
			history = append(history, message)

			toolCalls := acc.Choices[0].Message.ToolCalls
			if len(toolCalls) == 0 || !executeTools {
				DebugPrint(debug, "Ending turn.")
				break
			}

			response, err := b.handleToolCalls(toolCalls, activeAgent.Functions, contextVariables, debug)
			if err != nil {
				DebugPrint(debug, "Tool call error:", err)
				resultChan <- map[string]interface{}{"error": err}
				return
			}

			history = append(history, response.Messages...)
			for k, v := range response.ContextVariables {
				contextVariables[k] = v
			}
			if response.Agent != nil {
				activeAgent = response.Agent
			}
		}

		resultChan <- map[string]interface{}{
			"response": &Response{
				Messages:         history[initLen:],
				Agent:            activeAgent,
				ContextVariables: contextVariables,
			},
		}
	}()

	return resultChan, nil
}

// Run executes the conversation loop until the model answers without tool
// calls or maxTurns is reached. The returned Response carries the records
// appended after the initial messages.
//
// A completion with no tool calls ends the loop immediately: no local
// function runs and the reply content is returned as-is.
func (b *Baton) Run(
	ctx context.Context,
	agent *Agent,
	messages []map[string]interface{},
	contextVariables map[string]interface{},
	modelOverride string,
	stream bool,
	debug bool,
	maxTurns int,
	executeTools bool,
	jsonMode bool,
) (*Response, error) {
	if stream {
		ch, err := b.RunAndStream(ctx, agent, messages, contextVariables, modelOverride, debug, maxTurns, executeTools, jsonMode)
		if err != nil {
			return nil, err
		}

		var finalResponse *Response
		var runErr error
		for msg := range ch {
			if e, ok := msg["error"].(error); ok {
				runErr = e
			}
			if resp, ok := msg["response"]; ok {
				if r, ok := resp.(*Response); ok {
					finalResponse = r
				}
			}
		}
		if runErr != nil {
			return nil, runErr
		}
		return finalResponse, nil
	}

	if len(messages) == 0 {
		return nil, ErrEmptyMessages
	}

	if contextVariables == nil {
		contextVariables = make(map[string]interface{})
	}

	activeAgent := agent
	history := make([]map[string]interface{}, len(messages))
	copy(history, messages)
	initLen := len(messages)

	for len(history)-initLen < maxTurns {
		completion, err := b.getChatCompletion(ctx, activeAgent, history, contextVariables, modelOverride, debug, jsonMode)
		if err != nil {
			return nil, err
		}
		if len(completion.Choices) == 0 {
			return nil, fmt.Errorf("completion returned no choices")
		}

		message := map[string]interface{}{
			"content": completion.Choices[0].Message.Content,
			"sender":  activeAgent.Name,
			"role":    "assistant",
		}
		if len(completion.Choices[0].Message.ToolCalls) > 0 {
			message["tool_calls"] = completion.Choices[0].Message.ToolCalls
		}

		DebugPrint(debug, "Received completion:", message)
		history = append(history, message)

		if len(completion.Choices[0].Message.ToolCalls) == 0 || !executeTools {
			DebugPrint(debug, "Ending turn.")
			break
		}

		response, err := b.handleToolCalls(completion.Choices[0].Message.ToolCalls, activeAgent.Functions, contextVariables, debug)
		if err != nil {
			return nil, err
		}

		history = append(history, response.Messages...)
		for k, v := range response.ContextVariables {
			contextVariables[k] = v
		}
		if response.Agent != nil {
			activeAgent = response.Agent
		}
	}

	return &Response{
		Messages:         history[initLen:],
		Agent:            activeAgent,
		ContextVariables: contextVariables,
	}, nil
}
