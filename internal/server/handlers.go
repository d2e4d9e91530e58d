package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/db"
)

const (
	defaultBatchSize   = 10
	defaultHistorySize = 50
	maxPageSize        = 100
)

// pageLimit parses the limit query parameter, falling back to def when absent
// or unusable and capping at maxPageSize.
func pageLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > maxPageSize {
		return maxPageSize
	}
	return n
}

// profileView is the public shape of a profile. The stated preference is
// private to its owner and never serialized for other users.
type profileView struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio"`
	Gender    string    `json:"gender"`
	BirthDate time.Time `json:"birth_date"`
}

func viewOf(p *db.Profile) profileView {
	return profileView{
		ID:        p.ID,
		Name:      p.Name,
		Bio:       p.Bio,
		Gender:    p.Gender,
		BirthDate: p.BirthDate,
	}
}

// messageView mirrors the persisted message shape on the wire.
type messageView struct {
	Sender    uint64    `json:"sender"`
	Recipient uint64    `json:"recipient"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func messageViewOf(m *db.Message) messageView {
	return messageView{
		Sender:    m.SenderID,
		Recipient: m.RecipientID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCandidates returns the next batch of swipeable profiles, nearest
// rating first.
func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	candidates, err := s.selector.Next(r.Context(), userID, pageLimit(r, defaultBatchSize))
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]profileView, 0, len(candidates))
	for i := range candidates {
		views = append(views, viewOf(&candidates[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": views})
}

// handleMatches returns, per match, the counterpart profile and this side's
// unread count.
func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())

	summaries, err := s.matches.ListForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	type matchView struct {
		Profile     profileView `json:"profile"`
		UnreadCount uint32      `json:"unread_count"`
	}
	views := make([]matchView, 0, len(summaries))
	for _, sm := range summaries {
		views = append(views, matchView{Profile: viewOf(sm.Profile), UnreadCount: sm.Unread})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"matches": views})
}

func (s *Server) handleUnmatch(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	otherID, err := pathID(r, "other_id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.matches.Unmatch(r.Context(), userID, otherID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	otherID, err := pathID(r, "other_id")
	if err != nil {
		writeError(w, err)
		return
	}

	count, err := s.matches.UnreadCount(r.Context(), userID, otherID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint32{"unread_count": count})
}

// handleReport files a complaint about the conversation with the given user.
// The body is optional; an empty reason is a bare flag for moderation.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	otherID, err := pathID(r, "other_id")
	if err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, apperrors.Validation("malformed report body"))
		return
	}

	if err := s.matches.Report(r.Context(), userID, otherID, body.Reason); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleHistory returns one forward page of the conversation and resets the
// reader's unread counter.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFrom(r.Context())
	otherID, err := pathID(r, "recipient_id")
	if err != nil {
		writeError(w, err)
		return
	}

	var token *string
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		token = &raw
	}
	messages, nextToken, err := s.chats.History(r.Context(), userID, otherID, token, pageLimit(r, defaultHistorySize))
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]messageView, 0, len(messages))
	for i := range messages {
		views = append(views, messageViewOf(&messages[i]))
	}
	resp := map[string]interface{}{"messages": views}
	if nextToken != nil {
		resp["next_cursor"] = *nextToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)[name], 10, 64)
	if err != nil {
		return 0, apperrors.Validation(name + " must be a valid user id")
	}
	return id, nil
}
