package event_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/matchpoint/internal/event"
	"github.com/oggyb/matchpoint/internal/hub"
)

type captureTransport struct {
	mu     sync.Mutex
	frames []event.Notification
}

func (t *captureTransport) WriteMessage(payload []byte) error {
	var n event.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frames = append(t.frames, n)
	return nil
}

func (t *captureTransport) Close(code int, reason string) error { return nil }

func (t *captureTransport) received() []event.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]event.Notification(nil), t.frames...)
}

// setupRouter wires a bus into a hub with one live feed connection per user.
func setupRouter(t *testing.T, userIDs ...uint64) (*event.Bus, map[uint64]*captureTransport) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(logger, hub.Options{})

	bus := event.NewBus()
	event.NewRouter(h, logger).Bind(bus)

	transports := make(map[uint64]*captureTransport, len(userIDs))
	for _, id := range userIDs {
		tr := &captureTransport{}
		transports[id] = tr
		conn := h.NewConn(id, tr)
		h.Join(conn, hub.UserGroup(id))
	}
	return bus, transports
}

// TestMatchCreatedNotifiesBothSides checks each party is told about the other,
// not about themselves.
func TestMatchCreatedNotifiesBothSides(t *testing.T) {
	bus, transports := setupRouter(t, 1, 2)

	bus.Publish(event.MatchCreated{MatchID: 9, LowID: 1, HighID: 2})

	require.Eventually(t, func() bool {
		return len(transports[1].received()) == 1 && len(transports[2].received()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, event.Notification{Type: event.NotifyMatch, ID: 2}, transports[1].received()[0])
	assert.Equal(t, event.Notification{Type: event.NotifyMatch, ID: 1}, transports[2].received()[0])
}

func TestMatchDeletedNotifiesBothSides(t *testing.T) {
	bus, transports := setupRouter(t, 1, 2)

	bus.Publish(event.MatchDeleted{MatchID: 9, LowID: 1, HighID: 2})

	require.Eventually(t, func() bool {
		return len(transports[1].received()) == 1 && len(transports[2].received()) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, event.NotifyUnmatch, transports[1].received()[0].Type)
	assert.Equal(t, uint64(1), transports[2].received()[0].ID)
}

// TestMessageSentNotifiesRecipientOnly verifies the sender gets no echo on the
// notification channel.
func TestMessageSentNotifiesRecipientOnly(t *testing.T) {
	bus, transports := setupRouter(t, 1, 2)

	bus.Publish(event.MessageSent{MatchID: 9, SenderID: 1, RecipientID: 2})

	require.Eventually(t, func() bool {
		return len(transports[2].received()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, event.Notification{Type: event.NotifyMessage, ID: 1}, transports[2].received()[0])

	time.Sleep(20 * time.Millisecond)
	assert.Len(t, transports[1].received(), 0)
}

// TestOfflineRecipientIsBestEffort publishes with no live connections; nothing
// blocks and nothing is queued for later.
func TestOfflineRecipientIsBestEffort(t *testing.T) {
	bus, _ := setupRouter(t)
	bus.Publish(event.MessageSent{MatchID: 9, SenderID: 1, RecipientID: 2})
}
