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

	ctx := context.Background()
	song := live.NewSong(bridge)

	// Build a soundcheck routine
	routine := &baton.Routine{
		Name:     "soundcheck",
		Model:    "gpt-4o",
		MaxTurns: 30,
		System:   "You are preparing an Ableton Live set for a show. Report results in JSON format.",
		Steps: []baton.RoutineStep{
			{
				Name:         "tune",
				Instructions: "Read the current tempo and set it to the target BPM. Return the old and new tempo in JSON format.",
				Inputs: map[string]interface{}{
					"target_bpm": 120,
				},
			},
			{
				Name:         "report",
				Instructions: "Summarize the soundcheck results in JSON format.",
			},
		},
	}

	// The tune step gets the tempo and transport functions
	routine.Steps[0].Functions = append(routine.Steps[0].Functions, live.TempoFunctions(ctx, song)...)
	if err := routine.Initialize(); err != nil {
		fmt.Printf("Failed to initialize routine: %v\n", err)
		os.Exit(1)
	}

	// Save the routine to YAML
	if err := routine.Save("soundcheck.yaml"); err != nil {
		fmt.Printf("Failed to save routine: %v\n", err)
		os.Exit(1)
	}

	client, err := baton.NewDefaultBaton()
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}

	result, _, err := routine.Run(ctx, client)
	if err != nil {
		fmt.Printf("Failed to run routine: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result)
}
