// Package live is a UDP/OSC bridge to a running Ableton Live set controlled
// through AbletonOSC. A Bridge sends fire-and-forget control messages and
// matches inbound packets to one-shot waiters by OSC address; Song composes
// the two into tempo and transport operations, and TempoFunctions exposes
// those as agent functions for the baton dispatcher.
package live

// AbletonOSC's stock port layout: it listens on 11000 and sends replies to
// port 11001 on the requesting host.
const (
	DefaultHost        = "127.0.0.1"
	DefaultSendPort    = 11000
	DefaultReceivePort = 11001
)

// Config locates the AbletonOSC endpoints.
type Config struct {
	// Host running AbletonOSC.
	Host string

	// SendPort is the UDP port AbletonOSC listens on.
	SendPort int

	// ReceivePort is the local UDP port replies arrive on. Zero binds an
	// ephemeral port; ReceiveAddr reports which.
	ReceivePort int

	// Debug enables timestamped logging of bridge traffic.
	Debug bool
}

// DefaultConfig returns the stock AbletonOSC endpoints on localhost.
func DefaultConfig() Config {
	return Config{
		Host:        DefaultHost,
		SendPort:    DefaultSendPort,
		ReceivePort: DefaultReceivePort,
	}
}
