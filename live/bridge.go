package live

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/hypebeast/go-osc/osc"

	"github.com/livetone/baton"
)

// ErrBridgeClosed is returned to callers when the bridge shuts down before
// their reply arrives, and by operations on a closed bridge.
var ErrBridgeClosed = errors.New("bridge closed")

// Bridge is one UDP/OSC connection to AbletonOSC. Sends are fire-and-forget;
// a receive loop matches inbound packets to registered one-shot waiters by
// OSC address. The protocol carries no correlation IDs, so Query serializes
// overlapping requests to the same address instead.
type Bridge struct {
	client *osc.Client
	conn   net.PacketConn
	server *osc.Server
	debug  bool

	mu      sync.Mutex
	waiters map[string][]chan *osc.Message
	locks   map[string]*sync.Mutex
	closed  bool

	done chan struct{}
}

// Open connects the bridge: an OSC client towards cfg.Host:cfg.SendPort and a
// listening socket on cfg.ReceivePort feeding the reply dispatcher. Empty
// Host and zero SendPort fall back to the AbletonOSC defaults.
func Open(cfg Config) (*Bridge, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.SendPort == 0 {
		cfg.SendPort = DefaultSendPort
	}

	conn, err := net.ListenPacket("udp", fmt.Sprintf(":%d", cfg.ReceivePort))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on receive port %d: %w", cfg.ReceivePort, err)
	}

	b := &Bridge{
		client:  osc.NewClient(cfg.Host, cfg.SendPort),
		conn:    conn,
		server:  &osc.Server{},
		debug:   cfg.Debug,
		waiters: make(map[string][]chan *osc.Message),
		locks:   make(map[string]*sync.Mutex),
		done:    make(chan struct{}),
	}

	go b.receiveLoop()

	baton.DebugPrint(b.debug, "Bridge open: sending to ", cfg.Host, ":", cfg.SendPort, ", receiving on ", conn.LocalAddr().String())
	return b, nil
}

// ReceiveAddr returns the local address inbound packets arrive on.
func (b *Bridge) ReceiveAddr() net.Addr {
	return b.conn.LocalAddr()
}

// Send writes one OSC message to the peer without waiting for anything.
func (b *Bridge) Send(address string, args ...interface{}) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBridgeClosed
	}

	if err := b.client.Send(osc.NewMessage(address, args...)); err != nil {
		return fmt.Errorf("failed to send %s: %w", address, err)
	}
	baton.DebugPrint(b.debug, "Sent ", address, " ", fmt.Sprint(args...))
	return nil
}

// WaitForMessage registers a one-shot listener for address and blocks until a
// matching packet arrives, ctx is cancelled, or the bridge closes. Only the
// first matching packet resolves the wait; later packets go to the next
// waiter in line, or are dropped when none is registered.
func (b *Bridge) WaitForMessage(ctx context.Context, address string) (*osc.Message, error) {
	w, err := b.addWaiter(address)
	if err != nil {
		return nil, err
	}
	return b.await(ctx, address, w)
}

// Query sends to address and waits for the peer's reply on that same
// address. The waiter is registered before the send, so a reply cannot slip
// past between the two. Queries to the same address are serialized; replies
// cannot cross over between overlapping callers.
func (b *Bridge) Query(ctx context.Context, address string, args ...interface{}) (*osc.Message, error) {
	lock := b.queryLock(address)
	lock.Lock()
	defer lock.Unlock()

	w, err := b.addWaiter(address)
	if err != nil {
		return nil, err
	}
	if err := b.Send(address, args...); err != nil {
		b.removeWaiter(address, w)
		return nil, err
	}
	return b.await(ctx, address, w)
}

// Close stops the receive loop and fails pending waiters with
// ErrBridgeClosed. Closing twice is a no-op.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, queue := range b.waiters {
		for _, w := range queue {
			close(w)
		}
	}
	b.waiters = make(map[string][]chan *osc.Message)
	b.mu.Unlock()

	err := b.conn.Close()
	<-b.done
	return err
}

func (b *Bridge) queryLock(address string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	lock, ok := b.locks[address]
	if !ok {
		lock = &sync.Mutex{}
		b.locks[address] = lock
	}
	return lock
}

func (b *Bridge) addWaiter(address string) (chan *osc.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBridgeClosed
	}
	w := make(chan *osc.Message, 1)
	b.waiters[address] = append(b.waiters[address], w)
	return w, nil
}

func (b *Bridge) removeWaiter(address string, w chan *osc.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.waiters[address]
	for i, candidate := range queue {
		if candidate == w {
			b.waiters[address] = append(queue[:i], queue[i+1:]...)
			break
		}
	}
	if len(b.waiters[address]) == 0 {
		delete(b.waiters, address)
	}
}

// await blocks on the waiter channel until delivery, cancellation or close.
func (b *Bridge) await(ctx context.Context, address string, w chan *osc.Message) (*osc.Message, error) {
	select {
	case msg, ok := <-w:
		if !ok {
			return nil, ErrBridgeClosed
		}
		return msg, nil
	case <-ctx.Done():
		b.removeWaiter(address, w)
		// The reply may have been delivered between cancellation and removal.
		select {
		case msg, ok := <-w:
			if ok {
				return msg, nil
			}
		default:
		}
		return nil, ctx.Err()
	}
}

func (b *Bridge) receiveLoop() {
	defer close(b.done)
	for {
		packet, err := b.server.ReceivePacket(b.conn)
		if err != nil {
			b.mu.Lock()
			closed := b.closed
			b.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return
			}
			baton.DebugPrint(b.debug, "Receive error: ", err)
			continue
		}
		b.dispatch(packet)
	}
}

// dispatch flattens bundles and hands each message to its first waiter.
func (b *Bridge) dispatch(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		b.deliver(p)
	case *osc.Bundle:
		for _, msg := range p.Messages {
			b.deliver(msg)
		}
		for _, bundle := range p.Bundles {
			b.dispatch(bundle)
		}
	}
}

func (b *Bridge) deliver(msg *osc.Message) {
	if msg == nil {
		return
	}

	b.mu.Lock()
	var w chan *osc.Message
	if queue := b.waiters[msg.Address]; len(queue) > 0 {
		w = queue[0]
		b.waiters[msg.Address] = queue[1:]
		if len(b.waiters[msg.Address]) == 0 {
			delete(b.waiters, msg.Address)
		}
	}
	b.mu.Unlock()

	if w == nil {
		baton.DebugPrint(b.debug, "Dropping unsolicited message: ", msg.Address)
		return
	}
	w <- msg
}
