package baton

import (
	"fmt"
	"testing"
)

func TestDrainStream(t *testing.T) {
	want := &Response{
		Agent: NewAgent("LiveAgent"),
		Messages: []map[string]interface{}{
			{"role": "assistant", "content": "All set.", "sender": "LiveAgent"},
		},
	}

	ch := make(chan map[string]interface{}, 5)
	ch <- map[string]interface{}{"delim": "start"}
	ch <- map[string]interface{}{"content": "All set.", "sender": "LiveAgent"}
	ch <- map[string]interface{}{"tool_calls": []map[string]interface{}{{"function": map[string]interface{}{"name": "get_song_tempo"}}}}
	ch <- map[string]interface{}{"delim": "end"}
	ch <- map[string]interface{}{"response": want}
	close(ch)

	got := drainStream(ch, "LiveAgent")
	if got != want {
		t.Error("Expected the final response to be returned")
	}
}

func TestDrainStreamWithoutResponse(t *testing.T) {
	ch := make(chan map[string]interface{}, 2)
	ch <- map[string]interface{}{"content": "partial", "sender": "LiveAgent"}
	ch <- map[string]interface{}{"error": fmt.Errorf("stream interrupted")}
	close(ch)

	if got := drainStream(ch, "LiveAgent"); got != nil {
		t.Error("Expected nil when the stream ends without a response")
	}
}
