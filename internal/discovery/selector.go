// Package discovery produces the ordered, filtered stream of swipeable
// candidates for a requester. Read-only: recording the swipe is the match
// service's job.
package discovery

import (
	"context"
	"log/slog"

	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/repository"
)

// poolHeadroom sizes each pool page relative to the batch, so the reciprocal
// age-window filter (which can only run once the candidate row is in hand)
// rarely forces a second round trip.
const poolHeadroom = 4

type Selector struct {
	profiles *repository.ProfileRepository
	log      *slog.Logger
}

func NewSelector(profiles *repository.ProfileRepository, log *slog.Logger) *Selector {
	return &Selector{profiles: profiles, log: log}
}

// Next returns up to batchSize candidates for the requester, nearest rating
// first. Finite and not restartable: each call reflects current ledger state,
// and fewer than batchSize means the pools are exhausted.
//
// Candidates are drawn alternately from the pool rated at or above the
// requester (closest-above first) and the pool rated below (closest-below
// first); at each step the numerically closer head wins, ties going to the
// above pool. Each pool is paged by a keyset cursor and refilled as the merge
// drains it, so rows discarded by the reciprocal filter never hide compatible
// candidates further out.
func (s *Selector) Next(ctx context.Context, userID uint64, batchSize int) ([]db.Profile, error) {
	if batchSize <= 0 {
		return nil, apperrors.Validation("batch size must be positive")
	}

	requester, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.Map(err)
	}

	pageSize := batchSize * poolHeadroom
	above := &pool{fetch: func(ctx context.Context, after *repository.PoolCursor, limit int) ([]db.Profile, error) {
		return s.profiles.CandidatesAbove(ctx, requester, after, limit)
	}}
	below := &pool{fetch: func(ctx context.Context, after *repository.PoolCursor, limit int) ([]db.Profile, error) {
		return s.profiles.CandidatesBelow(ctx, requester, after, limit)
	}}

	merged := make([]db.Profile, 0, batchSize)
	for len(merged) < batchSize {
		if err := above.refill(ctx, requester, pageSize); err != nil {
			return nil, apperrors.Map(err)
		}
		if err := below.refill(ctx, requester, pageSize); err != nil {
			return nil, apperrors.Map(err)
		}

		switch {
		case len(above.buf) == 0 && len(below.buf) == 0:
			s.log.Debug("candidate pools exhausted",
				"user", userID, "returned", len(merged))
			return merged, nil
		case len(below.buf) == 0:
			merged = append(merged, above.take())
		case len(above.buf) == 0:
			merged = append(merged, below.take())
		case distance(above.buf[0].Rating, requester.Rating) <= distance(below.buf[0].Rating, requester.Rating):
			merged = append(merged, above.take())
		default:
			merged = append(merged, below.take())
		}
	}

	s.log.Debug("candidate batch filled", "user", userID, "returned", len(merged))
	return merged, nil
}

// pool is the paging state of one rating pool: a buffer of fetched rows that
// survived the reciprocal filter, the keyset cursor past the last raw row, and
// whether the underlying query has run dry.
type pool struct {
	fetch     func(ctx context.Context, after *repository.PoolCursor, limit int) ([]db.Profile, error)
	buf       []db.Profile
	cursor    *repository.PoolCursor
	exhausted bool
}

// refill pages the pool forward until the buffer holds at least one candidate
// or the query returns a short page. The cursor advances over the last raw row
// of each page, before filtering, so rejected rows are never refetched.
func (p *pool) refill(ctx context.Context, requester *db.Profile, pageSize int) error {
	for len(p.buf) == 0 && !p.exhausted {
		page, err := p.fetch(ctx, p.cursor, pageSize)
		if err != nil {
			return err
		}
		if len(page) < pageSize {
			p.exhausted = true
		}
		if len(page) > 0 {
			last := page[len(page)-1]
			p.cursor = &repository.PoolCursor{Rating: last.Rating, ID: last.ID}
		}
		p.buf = append(p.buf, filterReciprocal(requester, page)...)
	}
	return nil
}

func (p *pool) take() db.Profile {
	head := p.buf[0]
	p.buf = p.buf[1:]
	return head
}

// filterReciprocal keeps candidates whose own age window brackets the
// requester's birth date. The requester-side half of the predicate already ran
// in SQL.
func filterReciprocal(requester *db.Profile, candidates []db.Profile) []db.Profile {
	kept := candidates[:0]
	for _, c := range candidates {
		earliest, latest := repository.BirthWindow(c.BirthDate, c.PreferYoungerYears, c.PreferOlderYears)
		if requester.BirthDate.Before(earliest) || requester.BirthDate.After(latest) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

func distance(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
