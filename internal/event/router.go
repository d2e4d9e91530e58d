package event

import (
	"encoding/json"
	"log/slog"

	"github.com/oggyb/matchpoint/internal/hub"
)

// Notification frame types pushed to a user's notification channel.
const (
	NotifyMatch   = "match"
	NotifyUnmatch = "unmatch"
	NotifyMessage = "message"
)

// Notification is the outbound frame: the kind of event and the counterpart
// user it concerns.
type Notification struct {
	Type string `json:"type"`
	ID   uint64 `json:"id"`
}

// Router turns domain events into addressed notification frames dispatched
// through the presence hub. Best-effort: recipients without a live connection
// miss the frame and reconcile via the match-list/unread read paths.
type Router struct {
	hub *hub.Hub
	log *slog.Logger
}

func NewRouter(h *hub.Hub, log *slog.Logger) *Router {
	return &Router{hub: h, log: log}
}

// Bind subscribes the router to a bus.
func (r *Router) Bind(bus *Bus) {
	bus.Subscribe(r.route)
}

func (r *Router) route(e Event) {
	switch ev := e.(type) {
	case MatchCreated:
		r.emit(ev.LowID, Notification{Type: NotifyMatch, ID: ev.HighID})
		r.emit(ev.HighID, Notification{Type: NotifyMatch, ID: ev.LowID})
	case MatchDeleted:
		r.emit(ev.LowID, Notification{Type: NotifyUnmatch, ID: ev.HighID})
		r.emit(ev.HighID, Notification{Type: NotifyUnmatch, ID: ev.LowID})
	case MessageSent:
		r.emit(ev.RecipientID, Notification{Type: NotifyMessage, ID: ev.SenderID})
	default:
		r.log.Warn("unroutable event", "kind", e.Kind())
	}
}

func (r *Router) emit(userID uint64, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		r.log.Error("failed to encode notification", "err", err)
		return
	}
	r.hub.Broadcast(hub.UserGroup(userID), payload)
}
