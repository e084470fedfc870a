package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/livetone/baton"
	"github.com/livetone/baton/live"
)

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func main() {
	if err := loadDotEnv(".env"); err != nil {
		fmt.Printf("Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	client, err := baton.NewDefaultBaton()
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}

	// Connect to AbletonOSC on the default ports
	bridge, err := live.Open(live.DefaultConfig())
	if err != nil {
		fmt.Printf("Failed to open bridge: %v\n", err)
		os.Exit(1)
	}
	defer bridge.Close()

	ctx := context.Background()
	song := live.NewSong(bridge)

	// Create an agent that can read and control the set
	agent := baton.NewAgent("LiveAgent").WithModel("gpt-4o").
		WithInstructions("You control an Ableton Live set. Use the tempo and playback functions to carry out the user's request, then report what you did.")
	for _, f := range live.TempoFunctions(ctx, song) {
		agent.AddFunction(f)
	}

	messages := []map[string]interface{}{
		{
			"role":    "user",
			"content": "What tempo is the set at? If it is below 120 BPM, bring it up to 120.",
		},
	}

	response, err := client.Run(ctx, agent, messages, nil, "gpt-4o", false, false, 10, true, false)
	if err != nil {
		fmt.Printf("Error during conversation: %v\n", err)
		os.Exit(1)
	}

	// Print the agent's final reply
	if len(response.Messages) > 0 {
		last := response.Messages[len(response.Messages)-1]
		if content, ok := last["content"].(string); ok {
			fmt.Println(content)
		}
	}
}
