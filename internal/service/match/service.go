// Package match owns the match/unmatch state machine: swipe intake, rating
// application, match row lifecycle and the domain events those transitions
// emit.
package match

import (
	"context"
	"errors"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/event"
	"github.com/oggyb/matchpoint/internal/rating"
	"github.com/oggyb/matchpoint/internal/repository"

	"gorm.io/gorm"
)

type Service struct {
	appCtx   *app.AppContext
	matches  *repository.MatchRepository
	profiles *repository.ProfileRepository
	reports  *repository.ReportRepository
}

// NewService creates the match service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		matches:  repository.NewMatchRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		reports:  repository.NewReportRepository(appCtx.DB),
	}
}

// SwipeResult reports what a recorded swipe did to the match state.
type SwipeResult struct {
	Mutual    bool
	Match     *db.Match
	Unmatched bool
}

// RecordSwipe is the single entry point of the swipe pipeline:
// ledger upsert → rating adjustment → match create/destroy → event emission.
//
// Behavior:
//   - The ledger write, rating application and match transition share one
//     transaction; a concurrent duplicate creation resolves to the existing
//     row instead of surfacing an error.
//   - The rating delta hits the *target's* rating using the *actor's* rating,
//     and only when the recorded direction for this ordered pair changed.
//   - Right-swipe with an existing reciprocal right creates the match;
//     left-swipe with an existing match tears it down (messages cascade).
//   - Events are published after commit, match transition first, so a live
//     listener sees "match"/"unmatch" only for durable state.
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID uint64, direction string) (*SwipeResult, error) {
	if direction != db.DirectionLeft && direction != db.DirectionRight {
		return nil, apperrors.Validation("direction must be \"left\" or \"right\"")
	}
	if actorID == targetID {
		return nil, apperrors.InvalidState("cannot swipe on yourself")
	}

	ctx, cancel := context.WithTimeout(ctx, s.appCtx.Cfg.Limits.PersistTimeout)
	defer cancel()

	result := &SwipeResult{}
	var createdMatch, deletedMatch *db.Match

	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		swipes := repository.NewSwipeRepository(tx)
		matches := repository.NewMatchRepository(tx)
		profiles := repository.NewProfileRepository(tx)

		// Profile reads share the transaction so the delta is computed from
		// the rating and exposure a concurrent swipe has already committed.
		actor, err := profiles.Get(ctx, actorID)
		if err != nil {
			return err
		}
		target, err := profiles.Get(ctx, targetID)
		if err != nil {
			return err
		}

		previous, err := swipes.Put(ctx, actorID, targetID, direction)
		if err != nil {
			return err
		}

		// Re-swiping the same direction is a no-op for the rating.
		if previous != direction {
			delta := rating.Delta(target.Rating, target.SwipeCount, actor.Rating, direction)
			if err := profiles.ApplyRatingDelta(ctx, targetID, delta); err != nil {
				return err
			}
		}

		switch direction {
		case db.DirectionRight:
			reciprocal, err := swipes.HasRight(ctx, targetID, actorID)
			if err != nil {
				return err
			}
			if !reciprocal {
				return nil
			}
			match, created, err := matches.Create(ctx, actorID, targetID)
			if err != nil {
				return err
			}
			result.Mutual = true
			result.Match = match
			if created {
				createdMatch = match
			}

		case db.DirectionLeft:
			match, err := matches.DeleteBetween(ctx, actorID, targetID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil
				}
				return err
			}
			result.Unmatched = true
			deletedMatch = match
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Map(err)
	}

	if createdMatch != nil {
		s.appCtx.Logger.Info("match created",
			"low", createdMatch.LowID, "high", createdMatch.HighID)
		s.appCtx.Bus.Publish(event.MatchCreated{
			MatchID: createdMatch.ID,
			LowID:   createdMatch.LowID,
			HighID:  createdMatch.HighID,
		})
	}
	if deletedMatch != nil {
		s.teardownNotify(ctx, deletedMatch)
	}

	return result, nil
}

// Unmatch is the user-initiated deletion path, independent of swiping. Same
// cascade and notification as a left-swipe teardown.
func (s *Service) Unmatch(ctx context.Context, userID, otherID uint64) error {
	if userID == otherID {
		return apperrors.InvalidState("cannot unmatch yourself")
	}

	ctx, cancel := context.WithTimeout(ctx, s.appCtx.Cfg.Limits.PersistTimeout)
	defer cancel()

	match, err := s.matches.DeleteBetween(ctx, userID, otherID)
	if err != nil {
		return apperrors.Map(err)
	}
	s.teardownNotify(ctx, match)
	return nil
}

func (s *Service) teardownNotify(ctx context.Context, match *db.Match) {
	s.appCtx.RedisCache.ClearUnread(ctx, match.ID, match.LowID)
	s.appCtx.RedisCache.ClearUnread(ctx, match.ID, match.HighID)

	s.appCtx.Logger.Info("match deleted", "low", match.LowID, "high", match.HighID)
	s.appCtx.Bus.Publish(event.MatchDeleted{
		MatchID: match.ID,
		LowID:   match.LowID,
		HighID:  match.HighID,
	})
}

// Summary is one row of the match list: the counterpart profile and the
// requesting side's unread count.
type Summary struct {
	Profile *db.Profile
	Unread  uint32
}

// ListForUser returns the user's matches, most recent activity first.
// Counterparts whose profile vanished are skipped rather than failing the
// whole list.
func (s *Service) ListForUser(ctx context.Context, userID uint64) ([]Summary, error) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Map(err)
	}

	summaries := make([]Summary, 0, len(matches))
	for i := range matches {
		otherID, ok := matches[i].OtherSide(userID)
		if !ok {
			continue
		}
		profile, err := s.profiles.Get(ctx, otherID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, apperrors.Map(err)
		}
		summaries = append(summaries, Summary{
			Profile: profile,
			Unread:  matches[i].UnreadFor(userID),
		})
	}
	return summaries, nil
}

// UnreadCount returns the requesting side's unread counter for one match.
// Cache-first: Redis with TTL refresh, DB fallback writes the cache back.
func (s *Service) UnreadCount(ctx context.Context, userID, otherID uint64) (uint32, error) {
	match, err := s.matches.GetBetween(ctx, userID, otherID)
	if err != nil {
		return 0, apperrors.Map(err)
	}

	if cached, found, err := s.appCtx.RedisCache.GetUnreadCount(ctx, match.ID, userID); err == nil && found && cached >= 0 {
		return uint32(cached), nil
	}

	count := match.UnreadFor(userID)
	_ = s.appCtx.RedisCache.SetUnreadCount(ctx, match.ID, userID, int64(count))
	return count, nil
}

const maxReportReasonLen = 1000

// Report files a complaint about the conversation with otherID. Requires an
// active match: the conversation being reported must exist. Re-reporting the
// same counterpart overwrites the reason (idempotent from the caller's view);
// the stored report survives a later unmatch.
func (s *Service) Report(ctx context.Context, userID, otherID uint64, reason string) error {
	if userID == otherID {
		return apperrors.InvalidState("cannot report yourself")
	}
	if len(reason) > maxReportReasonLen {
		return apperrors.Validation("reason too long")
	}

	ctx, cancel := context.WithTimeout(ctx, s.appCtx.Cfg.Limits.PersistTimeout)
	defer cancel()

	if _, err := s.matches.GetBetween(ctx, userID, otherID); err != nil {
		return apperrors.Map(err)
	}
	if err := s.reports.Put(ctx, userID, otherID, reason); err != nil {
		return apperrors.Map(err)
	}

	total, err := s.reports.CountAgainst(ctx, otherID)
	if err != nil {
		return apperrors.Map(err)
	}
	s.appCtx.Logger.Info("conversation reported",
		"reporter", userID, "reported", otherID, "total_against", total)
	return nil
}

// ExistsBetween reports whether an active match exists for the pair. Used as
// the pairing guard on chat connections.
func (s *Service) ExistsBetween(ctx context.Context, a, b uint64) (bool, error) {
	exists, err := s.matches.ExistsBetween(ctx, a, b)
	if err != nil {
		return false, apperrors.Map(err)
	}
	return exists, nil
}
