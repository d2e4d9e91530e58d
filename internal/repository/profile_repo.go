package repository

import (
	"context"
	"time"

	"github.com/oggyb/matchpoint/internal/db"

	"gorm.io/gorm"
)

// ProfileRepository is the read/update view of the profile store the core
// consumes. Identity attributes are written elsewhere; the core only touches
// rating and swipe exposure.
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new repository bound to the given DB
// connection.
func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Get returns one profile by user id.
func (r *ProfileRepository) Get(ctx context.Context, userID uint64) (*db.Profile, error) {
	var profile db.Profile
	if err := r.db.WithContext(ctx).Take(&profile, userID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// ApplyRatingDelta shifts the target's rating and bumps swipe exposure by one,
// in a single relative UPDATE so concurrent swipes never lose increments.
func (r *ProfileRepository) ApplyRatingDelta(ctx context.Context, userID uint64, delta int) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"rating":      gorm.Expr("rating + ?", delta),
			"swipe_count": gorm.Expr("swipe_count + 1"),
		}).Error
}

// PoolCursor marks the last row handed out of one rating pool, so the caller
// can keep draining a pool past rows it discarded in memory. The (rating, id)
// pair is a stable keyset under each pool's ordering.
type PoolCursor struct {
	Rating int
	ID     uint64
}

// CandidatesAbove returns one page of profiles with rating >= the requester's,
// nearest first (ascending), filtered by the requester-side predicate. A nil
// cursor starts at the head of the pool.
func (r *ProfileRepository) CandidatesAbove(ctx context.Context, requester *db.Profile, after *PoolCursor, limit int) ([]db.Profile, error) {
	var candidates []db.Profile
	query := r.candidateQuery(ctx, requester).
		Where("rating >= ?", requester.Rating)
	if after != nil {
		query = query.Where(
			"(rating > ? OR (rating = ? AND id > ?))",
			after.Rating, after.Rating, after.ID,
		)
	}
	err := query.
		Order("rating ASC, id ASC").
		Limit(limit).
		Find(&candidates).Error
	return candidates, err
}

// CandidatesBelow returns one page of profiles with rating < the requester's,
// nearest first (descending).
func (r *ProfileRepository) CandidatesBelow(ctx context.Context, requester *db.Profile, after *PoolCursor, limit int) ([]db.Profile, error) {
	var candidates []db.Profile
	query := r.candidateQuery(ctx, requester).
		Where("rating < ?", requester.Rating)
	if after != nil {
		query = query.Where(
			"(rating < ? OR (rating = ? AND id < ?))",
			after.Rating, after.Rating, after.ID,
		)
	}
	err := query.
		Order("rating DESC, id DESC").
		Limit(limit).
		Find(&candidates).Error
	return candidates, err
}

// candidateQuery applies every filter expressible without per-row date
// arithmetic: not self, active, not already swiped on, preference
// compatibility both ways, and the requester's age window over the candidate's
// birth date. The reciprocal age check (candidate's window over the
// requester's birth date) happens in the selector, where the candidate's own
// offsets are at hand.
func (r *ProfileRepository) candidateQuery(ctx context.Context, requester *db.Profile) *gorm.DB {
	earliest, latest := BirthWindow(requester.BirthDate, requester.PreferYoungerYears, requester.PreferOlderYears)

	query := r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id != ?", requester.ID).
		Where("active = ?", true).
		Where(`NOT EXISTS (
			SELECT 1 FROM swipes s
			WHERE s.actor_id = ?
			  AND s.target_id = profiles.id
		)`, requester.ID).
		Where("(preference = ? OR preference = ?)", requester.Gender, db.PreferenceAll).
		Where("birth_date BETWEEN ? AND ?", earliest, latest)

	if requester.Preference != db.PreferenceAll {
		query = query.Where("gender = ?", requester.Preference)
	}
	return query
}

// BirthWindow translates [younger, older] year offsets from a birth date into
// the bracket of acceptable birth dates. Older partners are born earlier.
func BirthWindow(birth time.Time, youngerYears, olderYears int) (earliest, latest time.Time) {
	return birth.AddDate(-olderYears, 0, 0), birth.AddDate(youngerYears, 0, 0)
}
