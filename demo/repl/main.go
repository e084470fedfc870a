package main

import (
	"context"
	"fmt"
	"os"

	"github.com/livetone/baton"
	"github.com/livetone/baton/live"
)

func main() {
	// Connect to AbletonOSC on the default ports
	bridge, err := live.Open(live.DefaultConfig())
	if err != nil {
		fmt.Printf("Failed to open bridge: %v\n", err)
		os.Exit(1)
	}
	defer bridge.Close()

	song := live.NewSong(bridge)

	// Create an agent wired to the running set
	agent := baton.NewAgent("LiveAgent").WithModel("gpt-4o").
		WithInstructions("You control an Ableton Live set over OSC. Use the available functions to read the tempo, change it, and start or stop playback.")
	for _, f := range live.TempoFunctions(context.Background(), song) {
		agent.AddFunction(f)
	}

	// Run the demo loop
	baton.RunDemoLoop(agent, nil, false, false)
}
