package live

import (
	"context"
	"fmt"
	"reflect"

	"github.com/livetone/baton"
)

// TempoFunctions returns the song's tempo and transport controls as agent
// functions for the baton dispatcher. Queries run under ctx; with
// context.Background() an unanswered query blocks until the peer replies.
func TempoFunctions(ctx context.Context, song *Song) []baton.AgentFunction {
	getTempo := baton.NewAgentFunction(
		"get_song_tempo",
		"Get the current tempo of the Ableton Live set in beats per minute.",
		func(args map[string]interface{}) (interface{}, error) {
			bpm, err := song.GetTempo(ctx)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("%.2f", bpm), nil
		},
		[]baton.Parameter{},
	)

	setTempo := baton.NewAgentFunction(
		"set_song_tempo",
		"Set the tempo of the Ableton Live set in beats per minute.",
		func(args map[string]interface{}) (interface{}, error) {
			bpm, ok := args["bpm"].(float64)
			if !ok {
				return nil, fmt.Errorf("bpm must be a number, got %T", args["bpm"])
			}
			if err := song.SetTempo(ctx, bpm); err != nil {
				return nil, err
			}
			return fmt.Sprintf("Tempo set to %.2f BPM", bpm), nil
		},
		[]baton.Parameter{
			{Name: "bpm", Description: "Target tempo in beats per minute", Type: reflect.TypeOf(float64(0)), Required: true},
		},
	)

	startPlayback := baton.NewAgentFunction(
		"start_playback",
		"Start playback of the Ableton Live set.",
		func(args map[string]interface{}) (interface{}, error) {
			if err := song.StartPlaying(); err != nil {
				return nil, err
			}
			return "Playback started", nil
		},
		[]baton.Parameter{},
	)

	stopPlayback := baton.NewAgentFunction(
		"stop_playback",
		"Stop playback of the Ableton Live set.",
		func(args map[string]interface{}) (interface{}, error) {
			if err := song.StopPlaying(); err != nil {
				return nil, err
			}
			return "Playback stopped", nil
		},
		[]baton.Parameter{},
	)

	return []baton.AgentFunction{getTempo, setTempo, startPlayback, stopPlayback}
}
