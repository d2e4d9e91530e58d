package repository

import (
	"context"

	"github.com/oggyb/matchpoint/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository stores conversation reports for moderation review.
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new repository bound to the given DB
// connection.
func NewReportRepository(database *gorm.DB) *ReportRepository {
	return &ReportRepository{db: database}
}

// Put inserts or overwrites the report reporter -> reported. The unique index
// on the ordered pair makes re-reporting an update of the reason, not a
// duplicate row.
func (r *ReportRepository) Put(ctx context.Context, reporterID, reportedID uint64, reason string) error {
	report := db.Report{
		ReporterID: reporterID,
		ReportedID: reportedID,
		Reason:     reason,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "reporter_id"}, {Name: "reported_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "updated_at"}),
	}).Create(&report).Error
}

// Get returns the report filed by reporter against reported, if any.
func (r *ReportRepository) Get(ctx context.Context, reporterID, reportedID uint64) (*db.Report, error) {
	var report db.Report
	err := r.db.WithContext(ctx).
		Where("reporter_id = ? AND reported_id = ?", reporterID, reportedID).
		Take(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// CountAgainst returns how many distinct users have reported the given user.
func (r *ReportRepository) CountAgainst(ctx context.Context, reportedID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Report{}).
		Where("reported_id = ?", reportedID).
		Count(&count).Error
	return count, err
}
