package repository

import (
	"context"
	"time"

	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/utils/pagination"

	"gorm.io/gorm"
)

// MessageRepository provides data access for the append-only per-match
// conversation log.
type MessageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new repository bound to the given DB
// connection.
func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// Append inserts one message. The caller (chat service) verifies the match is
// still active inside the same transaction.
func (r *MessageRepository) Append(
	ctx context.Context,
	matchID, senderID, recipientID uint64,
	text string,
) (*db.Message, error) {
	message := db.Message{
		MatchID:     matchID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
	}
	if err := r.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

// ListSince returns one forward page of a conversation, ordered by creation
// time with ties broken by insertion order.
//
// The cursor marks the last message of the previous page; the next page starts
// strictly after (created_at, id). Limit+1 fetch decides whether a next token
// is handed out.
func (r *MessageRepository) ListSince(
	ctx context.Context,
	matchID uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	var messages []db.Message

	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Limit(limit + 1)

	if cursor.MessageID > 0 && cursor.CreatedUnix > 0 {
		ts := time.UnixMilli(cursor.CreatedUnix)
		query = query.Where(
			"(created_at > ? OR (created_at = ? AND id > ?))",
			ts, ts, cursor.MessageID,
		)
	}

	if err := query.Find(&messages).Error; err != nil {
		return nil, nil, err
	}

	var nextToken *string
	if len(messages) > limit {
		last := messages[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			MessageID:   last.ID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		messages = messages[:limit]
	}

	return messages, nextToken, nil
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
