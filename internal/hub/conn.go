package hub

import (
	"sync"
	"sync/atomic"
)

// Connection lifecycle. Only forward transitions are legal, except that
// Closing/Closed can be entered from anywhere.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthenticated
	StateGroupJoined
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateGroupJoined:
		return "group_joined"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	}
	return "closed"
}

// Close codes surfaced to the realtime transport.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseUnauthenticated = 4401
	CloseInvalidPairing  = 4400
	ClosePeerNotFound    = 4404
)

// Transport is the write half of one live connection. Implementations must
// tolerate Close being called while a WriteMessage is in flight.
type Transport interface {
	WriteMessage(payload []byte) error
	Close(code int, reason string) error
}

// Conn is one live connection's hub handle. Outbound delivery goes through a
// buffered channel drained by a dedicated writer goroutine, so a broadcast
// never blocks on a single member.
type Conn struct {
	UserID uint64

	hub       *Hub
	transport Transport
	send      chan []byte
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once

	// group names this conn joined; guarded by hub.mu
	groups map[string]struct{}
}

func newConn(h *Hub, userID uint64, t Transport) *Conn {
	c := &Conn{
		UserID:    userID,
		hub:       h,
		transport: t,
		send:      make(chan []byte, h.sendBuffer),
		done:      make(chan struct{}),
		groups:    make(map[string]struct{}),
	}
	c.state.Store(int32(StateConnecting))
	go c.writeLoop()
	return c
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

// Transition advances the state machine. Moving backwards is rejected; the
// terminal transitions belong to Close.
func (c *Conn) Transition(to State) bool {
	if to >= StateClosing {
		return false
	}
	for {
		from := c.state.Load()
		if State(from) >= to {
			return false
		}
		if c.state.CompareAndSwap(from, int32(to)) {
			return true
		}
	}
}

// Enqueue hands a payload to the writer. Never blocks: a closing connection
// reports false, and a consumer whose buffer is full is dropped instead of
// stalling the group sequencer.
func (c *Conn) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	case <-c.done:
		return false
	default:
		go c.Close(CloseGoingAway, "send buffer overflow")
		return false
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			if err := c.transport.WriteMessage(payload); err != nil {
				c.Close(CloseGoingAway, "write failed")
				return
			}
		}
	}
}

// Close tears the connection down exactly once: group membership is removed
// before the transport is released, so no group ever references a dead
// connection. Safe to call from any goroutine, any number of times, including
// concurrently with an in-flight broadcast.
func (c *Conn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		close(c.done)
		c.hub.dropConn(c)
		_ = c.transport.Close(code, reason)
		c.state.Store(int32(StateClosed))
	})
}

// Done is closed when the connection begins tearing down.
func (c *Conn) Done() <-chan struct{} { return c.done }
