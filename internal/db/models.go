package db

import (
	"time"
)

// Swipe directions. A later swipe by the same actor on the same target
// overwrites the earlier decision.
const (
	DirectionLeft  = "left"
	DirectionRight = "right"
)

// Gender / preference values. Preference "all" accepts any gender.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	PreferenceAll = "all"
)

// Profile holds the attributes the candidate ranking consumes.
// Identity attributes are owned by the external profile editor; Rating and
// SwipeCount are mutated only by the rating engine.
type Profile struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement"`
	Name               string    `gorm:"size:64;not null"`
	Bio                string    `gorm:"type:text"`
	Gender             string    `gorm:"size:16;not null;index:idx_gender_rating,priority:1"`
	Preference         string    `gorm:"size:16;not null"`
	BirthDate          time.Time `gorm:"not null"`
	PreferYoungerYears int       `gorm:"not null;default:5"`
	PreferOlderYears   int       `gorm:"not null;default:5"`
	Rating             int       `gorm:"not null;default:0;index:idx_gender_rating,priority:2"`
	SwipeCount         uint64    `gorm:"not null;default:0"`
	Active             bool      `gorm:"default:true"`
	CreatedAt          time.Time `gorm:"autoCreateTime"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime"`
}

// Swipe is an actor's left/right decision on a target.
//
// Composite PK: (ActorID, TargetID)
//   - Ensures a single row per ordered pair (overwrite guarantee).
//
// Index idx_target_direction(target_id, direction) backs the mutual-right
// lookup on the match-creation path.
type Swipe struct {
	ActorID   uint64    `gorm:"primaryKey;index:idx_target_direction,priority:2"`
	TargetID  uint64    `gorm:"primaryKey;index:idx_target_direction,priority:1"`
	Direction string    `gorm:"size:8;not null;index:idx_target_direction,priority:3"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Match is the symmetric state for an unordered pair, stored canonically as
// (LowID, HighID) with LowID < HighID. The unique index on the pair is the
// backstop for concurrent duplicate creation.
type Match struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	LowID      uint64    `gorm:"not null;uniqueIndex:uniq_match_pair,priority:1;index:idx_match_low"`
	HighID     uint64    `gorm:"not null;uniqueIndex:uniq_match_pair,priority:2;index:idx_match_high"`
	UnreadLow  uint32    `gorm:"not null;default:0"`
	UnreadHigh uint32    `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// Message belongs to exactly one match and is never mutated after creation.
// Deleted only via cascading match deletion.
type Message struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	MatchID     uint64    `gorm:"not null;index:idx_match_created,priority:1"`
	SenderID    uint64    `gorm:"not null"`
	RecipientID uint64    `gorm:"not null"`
	Text        string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index:idx_match_created,priority:2"`
}

// Report is a user's complaint about a conversation counterpart, kept for
// moderation. One live row per ordered (reporter, reported) pair; re-reporting
// overwrites the reason. Reports outlive the match they were filed from.
type Report struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	ReporterID uint64    `gorm:"not null;uniqueIndex:uniq_report_pair,priority:1"`
	ReportedID uint64    `gorm:"not null;uniqueIndex:uniq_report_pair,priority:2;index:idx_reported"`
	Reason     string    `gorm:"type:text"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// NormalizePair returns the canonical (low, high) ordering for an unordered
// user pair. Every match lookup, creation and deletion goes through this.
func NormalizePair(a, b uint64) (low, high uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasUser reports whether the given user is one of the match's sides.
func (m *Match) HasUser(userID uint64) bool {
	return m.LowID == userID || m.HighID == userID
}

// OtherSide returns the counterpart of the given user in this match.
func (m *Match) OtherSide(userID uint64) (uint64, bool) {
	switch userID {
	case m.LowID:
		return m.HighID, true
	case m.HighID:
		return m.LowID, true
	}
	return 0, false
}

// UnreadFor returns the unread counter owned by the given side.
func (m *Match) UnreadFor(userID uint64) uint32 {
	if userID == m.LowID {
		return m.UnreadLow
	}
	return m.UnreadHigh
}
