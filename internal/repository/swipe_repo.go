package repository

import (
	"context"
	"errors"

	"github.com/oggyb/matchpoint/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SwipeRepository provides data access for the directed swipe ledger.
// The ledger is ordered: (actor, target) and (target, actor) are distinct rows.
type SwipeRepository struct {
	db *gorm.DB
}

// NewSwipeRepository creates a new repository bound to the given DB connection.
// Bind to a transaction handle to make the ledger write atomic with match
// creation.
func NewSwipeRepository(database *gorm.DB) *SwipeRepository {
	return &SwipeRepository{db: database}
}

// Put inserts or overwrites the decision actor -> target and returns the
// previously recorded direction ("" if the pair was undecided).
//
// The composite PK on (actor_id, target_id) guarantees a single live row per
// ordered pair. The previous direction is what makes rating application
// idempotent: re-swiping the same direction must not re-apply the delta.
func (r *SwipeRepository) Put(
	ctx context.Context,
	actorID, targetID uint64,
	direction string,
) (previous string, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing db.Swipe
		lookErr := tx.Where("actor_id = ? AND target_id = ?", actorID, targetID).
			Take(&existing).Error
		if lookErr == nil {
			previous = existing.Direction
		} else if !errors.Is(lookErr, gorm.ErrRecordNotFound) {
			return lookErr
		}

		swipe := db.Swipe{
			ActorID:   actorID,
			TargetID:  targetID,
			Direction: direction,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "target_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
		}).Create(&swipe).Error
	})
	return previous, err
}

// Get returns the recorded decision for an ordered pair, if any.
func (r *SwipeRepository) Get(ctx context.Context, actorID, targetID uint64) (*db.Swipe, error) {
	var swipe db.Swipe
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND target_id = ?", actorID, targetID).
		Take(&swipe).Error
	if err != nil {
		return nil, err
	}
	return &swipe, nil
}

// HasRight reports whether actor has an outstanding right-swipe on target.
// This is the reciprocity check on the match-creation path.
func (r *SwipeRepository) HasRight(ctx context.Context, actorID, targetID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Swipe{}).
		Where("actor_id = ? AND target_id = ? AND direction = ?", actorID, targetID, db.DirectionRight).
		Count(&count).Error
	return count > 0, err
}

// DeleteByActor removes every decision made by the given user. Only exercised
// when the acting user's account is removed.
func (r *SwipeRepository) DeleteByActor(ctx context.Context, actorID uint64) error {
	return r.db.WithContext(ctx).
		Where("actor_id = ?", actorID).
		Delete(&db.Swipe{}).Error
}
