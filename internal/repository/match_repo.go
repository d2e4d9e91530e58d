package repository

import (
	"context"
	"errors"

	"github.com/oggyb/matchpoint/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository owns the canonical match set. Every operation normalizes the
// pair to (low, high) first; the unique index on that pair is the backstop
// against concurrent duplicate creation.
type MatchRepository struct {
	db *gorm.DB
}

// NewMatchRepository creates a new repository bound to the given DB connection.
func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// GetBetween returns the match for an unordered pair.
func (r *MatchRepository) GetBetween(ctx context.Context, a, b uint64) (*db.Match, error) {
	low, high := db.NormalizePair(a, b)
	var match db.Match
	err := r.db.WithContext(ctx).
		Where("low_id = ? AND high_id = ?", low, high).
		Take(&match).Error
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// ExistsBetween reports whether an active match exists for an unordered pair.
func (r *MatchRepository) ExistsBetween(ctx context.Context, a, b uint64) (bool, error) {
	low, high := db.NormalizePair(a, b)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("low_id = ? AND high_id = ?", low, high).
		Count(&count).Error
	return count > 0, err
}

// Create inserts the match for an unordered pair. A concurrent duplicate
// creation resolves to the surviving row: DO NOTHING on conflict, then read
// back. Callers learn via created whether this call won the race.
func (r *MatchRepository) Create(ctx context.Context, a, b uint64) (match *db.Match, created bool, err error) {
	low, high := db.NormalizePair(a, b)
	row := db.Match{LowID: low, HighID: high}

	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "low_id"}, {Name: "high_id"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected > 0 {
		return &row, true, nil
	}

	existing, err := r.GetBetween(ctx, low, high)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// DeleteBetween removes the match and cascades to its messages, atomically.
// Returns the deleted row so callers can notify both former parties and drop
// cached counters. Not-found is returned as gorm.ErrRecordNotFound.
func (r *MatchRepository) DeleteBetween(ctx context.Context, a, b uint64) (*db.Match, error) {
	low, high := db.NormalizePair(a, b)
	var match db.Match

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("low_id = ? AND high_id = ?", low, high).
			Take(&match).Error; err != nil {
			return err
		}
		if err := tx.Where("match_id = ?", match.ID).
			Delete(&db.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&db.Match{}, match.ID).Error
	})
	if err != nil {
		return nil, err
	}
	return &match, nil
}

// IncrementUnread bumps the counter owned by recipient's side with a single
// relative UPDATE, then returns the fresh row. The counter is incremented only
// by the non-owning side sending.
func (r *MatchRepository) IncrementUnread(ctx context.Context, matchID, recipientID uint64) (*db.Match, error) {
	match, err := r.byID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	column, err := unreadColumn(match, recipientID)
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		UpdateColumn(column, gorm.Expr(column+" + 1")).Error; err != nil {
		return nil, err
	}
	return r.byID(ctx, matchID)
}

// ResetUnread zeroes the counter owned by reader's side. Reset only by the
// owning side reading.
func (r *MatchRepository) ResetUnread(ctx context.Context, matchID, readerID uint64) (*db.Match, error) {
	match, err := r.byID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	column, err := unreadColumn(match, readerID)
	if err != nil {
		return nil, err
	}

	if err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("id = ?", matchID).
		UpdateColumn(column, 0).Error; err != nil {
		return nil, err
	}
	return r.byID(ctx, matchID)
}

// ListForUser returns every match the user is a side of, most recent activity
// first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("low_id = ? OR high_id = ?", userID, userID).
		Order("updated_at DESC, id DESC").
		Find(&matches).Error
	return matches, err
}

func (r *MatchRepository) byID(ctx context.Context, matchID uint64) (*db.Match, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).Take(&match, matchID).Error; err != nil {
		return nil, err
	}
	return &match, nil
}

func unreadColumn(match *db.Match, ownerID uint64) (string, error) {
	switch ownerID {
	case match.LowID:
		return "unread_low", nil
	case match.HighID:
		return "unread_high", nil
	}
	return "", errors.New("user is not a side of this match")
}
