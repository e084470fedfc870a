package live

import (
	"context"
	"errors"
	"fmt"

	"github.com/hypebeast/go-osc/osc"
	"golang.org/x/sync/singleflight"
)

// Song-level AbletonOSC addresses.
const (
	TempoAddress        = "/live/song/get/tempo"
	SetTempoAddress     = "/live/song/set/tempo"
	StartPlayingAddress = "/live/song/start_playing"
	StopPlayingAddress  = "/live/song/stop_playing"
)

// ErrNoTempo is returned when a tempo reply carries no usable value.
var ErrNoTempo = errors.New("no tempo in reply")

// Song exposes song-level operations of the connected set.
type Song struct {
	bridge *Bridge
	group  singleflight.Group
}

// NewSong wraps a bridge with song-level operations.
func NewSong(b *Bridge) *Song {
	return &Song{bridge: b}
}

// GetTempo reads the song tempo in BPM. Overlapping calls share one query;
// each caller still honors its own context.
func (s *Song) GetTempo(ctx context.Context) (float64, error) {
	ch := s.group.DoChan(TempoAddress, func() (interface{}, error) {
		msg, err := s.bridge.Query(ctx, TempoAddress)
		if err != nil {
			return nil, err
		}
		bpm, err := tempoArg(msg)
		if err != nil {
			return nil, err
		}
		return bpm, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// SetTempo sets the song tempo in BPM and waits for the peer's packet on the
// set address. Any reply there completes the call.
func (s *Song) SetTempo(ctx context.Context, bpm float64) error {
	if bpm <= 0 {
		return fmt.Errorf("tempo must be positive, got %v", bpm)
	}
	_, err := s.bridge.Query(ctx, SetTempoAddress, float32(bpm))
	return err
}

// StartPlaying starts playback. Fire-and-forget; AbletonOSC sends no reply.
func (s *Song) StartPlaying() error {
	return s.bridge.Send(StartPlayingAddress)
}

// StopPlaying stops playback. Fire-and-forget.
func (s *Song) StopPlaying() error {
	return s.bridge.Send(StopPlayingAddress)
}

// tempoArg extracts the BPM from a tempo reply. AbletonOSC sends a float32,
// but any numeric argument is accepted.
func tempoArg(msg *osc.Message) (float64, error) {
	if msg == nil || len(msg.Arguments) == 0 {
		return 0, ErrNoTempo
	}
	switch v := msg.Arguments[0].(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%w: unexpected argument type %T", ErrNoTempo, v)
	}
}
