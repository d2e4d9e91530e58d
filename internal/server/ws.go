package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/auth"
	"github.com/oggyb/matchpoint/internal/hub"
)

const (
	writeWait  = 10 * time.Second
	maxFrame   = 1 << 16
	closeGrace = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is the deployment's concern; cors covers the REST side.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// chatFrame is the inbound chat payload.
type chatFrame struct {
	Text string `json:"text"`
}

// swipeFrame is the inbound feed payload.
type swipeFrame struct {
	ID        uint64 `json:"id"`
	Direction string `json:"direction"`
}

// errorFrame reports a rejected operation without dropping the connection.
type errorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// wsTransport adapts a gorilla connection to hub.Transport. The mutex covers
// the race between the hub writer goroutine and a concurrent Close sending
// the close control frame.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (t *wsTransport) WriteMessage(payload []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(closeGrace))
	_ = t.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
	)
	t.mu.Unlock()
	return t.conn.Close()
}

// upgrade performs the WebSocket handshake, echoing the Bearer subprotocol
// when offered, and hands back a hub-managed connection in the Authenticated
// state together with the verified identity. The handler goroutine keeps
// ownership of the read side; closing the hub conn tears the socket down and
// unblocks any pending read.
func (s *Server) upgrade(w http.ResponseWriter, r *http.Request) (*hub.Conn, *websocket.Conn, auth.Identity, bool) {
	token, matched, hasToken := auth.TokenFromSubprotocols(websocket.Subprotocols(r))

	var header http.Header
	if hasToken {
		header = http.Header{"Sec-WebSocket-Protocol": {matched}}
	}
	wsConn, err := upgrader.Upgrade(w, r, header)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return nil, nil, auth.Identity{}, false
	}
	wsConn.SetReadLimit(maxFrame)

	conn := s.appCtx.Hub.NewConn(0, &wsTransport{conn: wsConn})
	conn.Transition(hub.StateAuthenticating)

	if !hasToken {
		conn.Close(hub.CloseUnauthenticated, "missing bearer token")
		return nil, nil, auth.Identity{}, false
	}
	identity, err := s.verifier.Verify(token)
	if err != nil || !identity.Eligible {
		conn.Close(hub.CloseUnauthenticated, "token is invalid or account ineligible")
		return nil, nil, auth.Identity{}, false
	}

	conn.UserID = identity.UserID
	conn.Transition(hub.StateAuthenticated)
	return conn, wsConn, identity, true
}

// handleChatSocket serves /ws/dm/{peer_id}: one conversation's live channel.
//
// Handshake guards, in order: valid identity (4401), peer is not self (4400),
// peer profile exists (4404), active match between the two (4400).
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	peerID, err := pathID(r, "peer_id")
	if err != nil {
		writeError(w, err)
		return
	}

	conn, wsConn, identity, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	ctx := context.Background()
	if peerID == identity.UserID {
		conn.Close(hub.CloseInvalidPairing, "cannot open a conversation with yourself")
		return
	}
	if _, err := s.profiles.Get(ctx, peerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			conn.Close(hub.ClosePeerNotFound, "peer does not exist")
		} else {
			conn.Close(hub.CloseGoingAway, "profile lookup failed")
		}
		return
	}
	active, err := s.matches.ExistsBetween(ctx, identity.UserID, peerID)
	if err != nil {
		conn.Close(hub.CloseGoingAway, "match lookup failed")
		return
	}
	if !active {
		conn.Close(hub.CloseInvalidPairing, "no active match with this peer")
		return
	}

	group := hub.PairGroup(identity.UserID, peerID)
	s.appCtx.Hub.Join(conn, group)
	conn.Transition(hub.StateGroupJoined)
	conn.Transition(hub.StateActive)

	s.appCtx.Logger.Info("chat connection active",
		"user", identity.UserID, "peer", peerID)

	for {
		_, payload, err := wsConn.ReadMessage()
		if err != nil {
			conn.Close(hub.CloseNormal, "")
			return
		}

		var frame chatFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			conn.Close(websocket.CloseUnsupportedData, "malformed frame")
			return
		}
		if frame.Text == "" {
			continue
		}

		message, err := s.chats.Send(ctx, identity.UserID, peerID, frame.Text)
		if err != nil {
			if errors.Is(err, apperrors.ErrInvalidState) {
				conn.Close(hub.CloseInvalidPairing, "conversation no longer available")
				return
			}
			s.sendErrorFrame(conn, err)
			continue
		}

		out, err := json.Marshal(messageViewOf(message))
		if err != nil {
			s.appCtx.Logger.Error("failed to encode chat frame", "err", err)
			continue
		}
		s.appCtx.Hub.Broadcast(group, out)
	}
}

// handleFeedSocket serves /ws/feed: the per-user notification channel, which
// also accepts swipe frames.
func (s *Server) handleFeedSocket(w http.ResponseWriter, r *http.Request) {
	conn, wsConn, identity, ok := s.upgrade(w, r)
	if !ok {
		return
	}

	s.appCtx.Hub.Join(conn, hub.UserGroup(identity.UserID))
	conn.Transition(hub.StateGroupJoined)
	conn.Transition(hub.StateActive)

	s.appCtx.Logger.Info("feed connection active", "user", identity.UserID)

	ctx := context.Background()
	for {
		_, payload, err := wsConn.ReadMessage()
		if err != nil {
			conn.Close(hub.CloseNormal, "")
			return
		}

		var frame swipeFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			conn.Close(websocket.CloseUnsupportedData, "malformed frame")
			return
		}

		if _, err := s.matches.RecordSwipe(ctx, identity.UserID, frame.ID, frame.Direction); err != nil {
			s.sendErrorFrame(conn, err)
		}
	}
}

func (s *Server) sendErrorFrame(conn *hub.Conn, err error) {
	kind := "rejected"
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		kind = "not_found"
	case errors.Is(err, apperrors.ErrValidation):
		kind = "validation_error"
	case errors.Is(err, apperrors.ErrInvalidState):
		kind = "invalid_state"
	case errors.Is(err, apperrors.ErrTimeout):
		kind = "timeout"
	}

	var appErr *apperrors.AppError
	message := "operation rejected"
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else {
		s.appCtx.Logger.Error("unexpected error on ws operation", "err", err)
		kind = "internal_error"
	}

	out, _ := json.Marshal(errorFrame{Error: kind, Message: message})
	conn.Enqueue(out)
}
