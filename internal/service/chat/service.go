// Package chat owns the per-match conversation log: append, history reads and
// the unread bookkeeping tied to reading.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/event"
	"github.com/oggyb/matchpoint/internal/repository"

	"gorm.io/gorm"
)

const maxTextLen = 4000

type Service struct {
	appCtx   *app.AppContext
	matches  *repository.MatchRepository
	messages *repository.MessageRepository
}

// NewService creates the chat service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		matches:  repository.NewMatchRepository(appCtx.DB),
		messages: repository.NewMessageRepository(appCtx.DB),
	}
}

// Send appends a message to the pair's conversation and bumps the recipient's
// unread counter, in one transaction with the active-match check. A match
// deleted concurrently surfaces as invalid-state ("conversation no longer
// available"), a user-visible rejection rather than a crash.
func (s *Service) Send(ctx context.Context, senderID, recipientID uint64, text string) (*db.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message text must not be empty")
	}
	if len(text) > maxTextLen {
		return nil, apperrors.Validation("message text too long")
	}
	if senderID == recipientID {
		return nil, apperrors.InvalidState("cannot message yourself")
	}

	ctx, cancel := context.WithTimeout(ctx, s.appCtx.Cfg.Limits.PersistTimeout)
	defer cancel()

	var message *db.Message
	var match *db.Match

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := repository.NewMatchRepository(tx)
		messages := repository.NewMessageRepository(tx)

		var err error
		match, err = matches.GetBetween(ctx, senderID, recipientID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.InvalidState("conversation no longer available")
			}
			return err
		}

		message, err = messages.Append(ctx, match.ID, senderID, recipientID, text)
		if err != nil {
			return err
		}

		match, err = matches.IncrementUnread(ctx, match.ID, recipientID)
		return err
	})
	if err != nil {
		return nil, apperrors.Map(err)
	}

	s.appCtx.RedisCache.IncrUnread(ctx, match.ID, recipientID)
	s.appCtx.Bus.Publish(event.MessageSent{
		MatchID:     match.ID,
		SenderID:    senderID,
		RecipientID: recipientID,
	})

	return message, nil
}

// History returns one forward page of the conversation between reader and
// other, and resets the reader's unread counter — reading is what clears it.
func (s *Service) History(
	ctx context.Context,
	readerID, otherID uint64,
	paginationToken *string,
	limit int,
) ([]db.Message, *string, error) {
	if limit <= 0 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(ctx, s.appCtx.Cfg.Limits.PersistTimeout)
	defer cancel()

	match, err := s.matches.GetBetween(ctx, readerID, otherID)
	if err != nil {
		return nil, nil, apperrors.Map(err)
	}

	messages, nextToken, err := s.messages.ListSince(ctx, match.ID, paginationToken, limit)
	if err != nil {
		return nil, nil, apperrors.Map(err)
	}

	if _, err := s.matches.ResetUnread(ctx, match.ID, readerID); err != nil {
		s.appCtx.Logger.Warn("failed to reset unread counter",
			"match", match.ID, "reader", readerID, "err", err)
	} else {
		_ = s.appCtx.RedisCache.SetUnreadCount(ctx, match.ID, readerID, 0)
	}

	return messages, nextToken, nil
}
