package live

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tempoPeerState emulates the tempo surface of AbletonOSC with in-memory
// state, echoing each request on its own address.
type tempoPeerState struct {
	mu       sync.Mutex
	tempo    float32
	getCalls int
	setArgs  []interface{}
}

func (s *tempoPeerState) handle(msg *osc.Message) []osc.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch msg.Address {
	case TempoAddress:
		s.getCalls++
		return []osc.Packet{osc.NewMessage(TempoAddress, s.tempo)}
	case SetTempoAddress:
		s.setArgs = append(s.setArgs, msg.Arguments...)
		if len(msg.Arguments) > 0 {
			if bpm, ok := msg.Arguments[0].(float32); ok {
				s.tempo = bpm
			}
		}
		return []osc.Packet{osc.NewMessage(SetTempoAddress, s.tempo)}
	}
	return nil
}

func TestGetTempo(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	song := NewSong(bridge)

	bpm, err := song.GetTempo(testCtx(t))
	require.NoError(t, err)
	assert.InDelta(t, 110, bpm, 0.001)
}

func TestSetTempoSendsValue(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	song := NewSong(bridge)

	require.NoError(t, song.SetTempo(testCtx(t), 120))

	state.mu.Lock()
	defer state.mu.Unlock()
	require.Len(t, state.setArgs, 1)
	assert.Equal(t, float32(120), state.setArgs[0])
}

func TestSetThenGetRoundTrip(t *testing.T) {
	state := &tempoPeerState{tempo: 110}
	bridge := newTestBridge(t, state.handle)
	song := NewSong(bridge)
	ctx := testCtx(t)

	before, err := song.GetTempo(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 110, before, 0.001)

	require.NoError(t, song.SetTempo(ctx, 128))

	after, err := song.GetTempo(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 128, after, 0.001)
}

func TestSetTempoAcceptsAnyReply(t *testing.T) {
	bridge := newTestBridge(t, func(msg *osc.Message) []osc.Packet {
		if msg.Address == SetTempoAddress {
			// AbletonOSC acknowledges on the same address; the argument
			// payload does not matter to the caller.
			return []osc.Packet{osc.NewMessage(SetTempoAddress)}
		}
		return nil
	})
	song := NewSong(bridge)

	assert.NoError(t, song.SetTempo(testCtx(t), 95))
}

func TestSetTempoRejectsNonPositive(t *testing.T) {
	song := NewSong(nil)

	assert.Error(t, song.SetTempo(context.Background(), 0))
	assert.Error(t, song.SetTempo(context.Background(), -10))
}

func TestGetTempoCoalescesConcurrentReads(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	bridge := newTestBridge(t, func(msg *osc.Message) []osc.Packet {
		if msg.Address != TempoAddress {
			return nil
		}
		atomic.AddInt32(&calls, 1)
		<-release
		return []osc.Packet{osc.NewMessage(TempoAddress, float32(110))}
	})
	song := NewSong(bridge)
	ctx := testCtx(t)

	const readers = 5
	var wg sync.WaitGroup
	results := make(chan float64, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bpm, err := song.GetTempo(ctx)
			assert.NoError(t, err)
			results <- bpm
		}()
	}

	// Give every reader time to join the in-flight query, then release it.
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for bpm := range results {
		assert.InDelta(t, 110, bpm, 0.001)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestTempoArg(t *testing.T) {
	tests := []struct {
		name    string
		msg     *osc.Message
		want    float64
		wantErr bool
	}{
		{name: "float32", msg: osc.NewMessage(TempoAddress, float32(121.5)), want: 121.5},
		{name: "float64", msg: osc.NewMessage(TempoAddress, 98.0), want: 98},
		{name: "int32", msg: osc.NewMessage(TempoAddress, int32(120)), want: 120},
		{name: "int64", msg: osc.NewMessage(TempoAddress, int64(90)), want: 90},
		{name: "no arguments", msg: osc.NewMessage(TempoAddress), wantErr: true},
		{name: "nil message", msg: nil, wantErr: true},
		{name: "non-numeric", msg: osc.NewMessage(TempoAddress, "fast"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tempoArg(tt.msg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoTempo)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestTransportControls(t *testing.T) {
	var mu sync.Mutex
	var addresses []string
	bridge := newTestBridge(t, func(msg *osc.Message) []osc.Packet {
		mu.Lock()
		addresses = append(addresses, msg.Address)
		mu.Unlock()
		return nil
	})
	song := NewSong(bridge)

	require.NoError(t, song.StartPlaying())
	require.NoError(t, song.StopPlaying())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(addresses) == 2
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{StartPlayingAddress, StopPlayingAddress}, addresses)
}
