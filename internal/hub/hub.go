// Package hub is the realtime delivery fabric: it tracks which live
// connections belong to which logical channel (one per match pair, one per
// user) and fans domain events out to exactly the current members.
//
// Ordering: every broadcast to a group passes through that group's single
// sequencer goroutine, so members observe broadcasts in submission order even
// when they originate from different domain operations. Cross-group ordering
// is not guaranteed.
package hub

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oggyb/matchpoint/internal/db"
)

// UserGroup names the per-user notification channel.
func UserGroup(userID uint64) string {
	return fmt.Sprintf("user_%d", userID)
}

// PairGroup names the chat channel of an unordered pair, canonicalized the
// same way match rows are.
func PairGroup(a, b uint64) string {
	low, high := db.NormalizePair(a, b)
	return fmt.Sprintf("dm_%d_%d", low, high)
}

// Relay carries broadcasts between processes. Injected; a single-process
// deployment runs without one. Origin identifiers keep a process from
// redelivering its own broadcasts.
type Relay interface {
	Publish(ctx context.Context, origin, group string, payload []byte) error
	Listen(ctx context.Context, self string, fn func(group string, payload []byte)) error
}

type Options struct {
	SendBuffer  int // per-connection outbound buffer
	GroupBuffer int // per-group sequencer queue
	Relay       Relay
}

type Hub struct {
	id    string
	log   *slog.Logger
	relay Relay

	sendBuffer  int
	groupBuffer int

	mu     sync.Mutex
	groups map[string]*group
}

type group struct {
	name    string
	members map[*Conn]struct{}
	queue   chan []byte
	quit    chan struct{}
}

func New(log *slog.Logger, opts Options) *Hub {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 32
	}
	if opts.GroupBuffer <= 0 {
		opts.GroupBuffer = 128
	}
	idBytes := make([]byte, 8)
	_, _ = rand.Read(idBytes)
	return &Hub{
		id:          hex.EncodeToString(idBytes),
		log:         log,
		relay:       opts.Relay,
		sendBuffer:  opts.SendBuffer,
		groupBuffer: opts.GroupBuffer,
		groups:      make(map[string]*group),
	}
}

// NewConn wraps a transport into a hub-managed connection in the Connecting
// state. The caller drives the handshake transitions; the hub owns delivery
// and teardown bookkeeping.
func (h *Hub) NewConn(userID uint64, t Transport) *Conn {
	return newConn(h, userID, t)
}

// Join adds the connection to a group, creating the group and its sequencer
// on first membership.
func (h *Hub) Join(c *Conn, groupName string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	g, ok := h.groups[groupName]
	if !ok {
		g = &group{
			name:    groupName,
			members: make(map[*Conn]struct{}),
			queue:   make(chan []byte, h.groupBuffer),
			quit:    make(chan struct{}),
		}
		h.groups[groupName] = g
		go h.sequence(g)
	}
	g.members[c] = struct{}{}
	c.groups[groupName] = struct{}{}
}

// Leave removes the connection from one group, tearing the group down when it
// empties.
func (h *Hub) Leave(c *Conn, groupName string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, groupName)
}

func (h *Hub) leaveLocked(c *Conn, groupName string) {
	g, ok := h.groups[groupName]
	if !ok {
		return
	}
	delete(g.members, c)
	delete(c.groups, groupName)
	if len(g.members) == 0 {
		close(g.quit)
		delete(h.groups, groupName)
	}
}

// dropConn removes the connection from every group it joined. Called exactly
// once, from Conn.Close.
func (h *Hub) dropConn(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name := range c.groups {
		h.leaveLocked(c, name)
	}
}

// Broadcast submits a payload to a group's sequencer and, when a relay is
// configured, to sibling processes. Fire-and-forget: a group with no local
// members drops the payload, a saturated sequencer queue drops and logs.
func (h *Hub) Broadcast(groupName string, payload []byte) {
	h.local(groupName, payload)

	if h.relay != nil {
		if err := h.relay.Publish(context.Background(), h.id, groupName, payload); err != nil {
			h.log.Warn("relay publish failed", "group", groupName, "err", err)
		}
	}
}

func (h *Hub) local(groupName string, payload []byte) {
	h.mu.Lock()
	g, ok := h.groups[groupName]
	h.mu.Unlock()
	if !ok {
		return
	}

	select {
	case g.queue <- payload:
	case <-g.quit:
	default:
		h.log.Warn("group queue full, dropping broadcast", "group", groupName)
	}
}

// sequence is the single-writer gate of one group: it snapshots the current
// membership per broadcast and enqueues to each member. A member that is
// concurrently closing simply reports a failed enqueue; delivery to the rest
// continues.
func (h *Hub) sequence(g *group) {
	for {
		select {
		case <-g.quit:
			return
		case payload := <-g.queue:
			h.mu.Lock()
			members := make([]*Conn, 0, len(g.members))
			for c := range g.members {
				members = append(members, c)
			}
			h.mu.Unlock()

			for _, c := range members {
				c.Enqueue(payload)
			}
		}
	}
}

// MemberCount reports current group size (0 for an absent group).
func (h *Hub) MemberCount(groupName string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if g, ok := h.groups[groupName]; ok {
		return len(g.members)
	}
	return 0
}

// RunRelay pumps remote broadcasts into local groups until ctx is done.
func (h *Hub) RunRelay(ctx context.Context) error {
	if h.relay == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return h.relay.Listen(ctx, h.id, h.local)
}
