package live

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetone/baton"
)

func toolByName(t *testing.T, functions []baton.AgentFunction, name string) baton.AgentFunction {
	t.Helper()
	for _, f := range functions {
		if f.Name() == name {
			return f
		}
	}
	t.Fatalf("function %s not found", name)
	return nil
}

func TestTempoFunctionManifest(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	functions := TempoFunctions(context.Background(), NewSong(bridge))

	names := make([]string, 0, len(functions))
	for _, f := range functions {
		names = append(names, f.Name())
		assert.NotEmpty(t, f.Description())
	}
	assert.ElementsMatch(t, []string{"get_song_tempo", "set_song_tempo", "start_playback", "stop_playback"}, names)

	setTempo := toolByName(t, functions, "set_song_tempo")
	params := setTempo.Parameters()
	require.Len(t, params, 1)
	assert.Equal(t, "bpm", params[0].Name)
	assert.True(t, params[0].Required)
}

func TestGetTempoFunction(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	functions := TempoFunctions(testCtx(t), NewSong(bridge))

	result, err := toolByName(t, functions, "get_song_tempo").Call(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "110.00", result)
}

func TestSetTempoFunction(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	ctx := testCtx(t)
	song := NewSong(bridge)
	functions := TempoFunctions(ctx, song)

	result, err := toolByName(t, functions, "set_song_tempo").Call(map[string]interface{}{"bpm": 120.0})
	require.NoError(t, err)
	assert.Equal(t, "Tempo set to 120.00 BPM", result)

	bpm, err := song.GetTempo(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 120, bpm, 0.001)
}

func TestSetTempoFunctionRejectsBadArgs(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	functions := TempoFunctions(context.Background(), NewSong(bridge))

	_, err := toolByName(t, functions, "set_song_tempo").Call(map[string]interface{}{"bpm": "fast"})
	assert.Error(t, err)

	_, err = toolByName(t, functions, "set_song_tempo").Call(map[string]interface{}{})
	assert.Error(t, err)
}

func TestPlaybackFunctions(t *testing.T) {
	var mu sync.Mutex
	var addresses []string
	bridge := newTestBridge(t, func(msg *osc.Message) []osc.Packet {
		mu.Lock()
		addresses = append(addresses, msg.Address)
		mu.Unlock()
		return nil
	})
	functions := TempoFunctions(context.Background(), NewSong(bridge))

	result, err := toolByName(t, functions, "start_playback").Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "Playback started", result)

	result, err = toolByName(t, functions, "stop_playback").Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "Playback stopped", result)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(addresses) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{StartPlayingAddress, StopPlayingAddress}, addresses)
}
