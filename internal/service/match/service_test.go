package match_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/matchpoint/internal/app"
	"github.com/oggyb/matchpoint/internal/apperrors"
	"github.com/oggyb/matchpoint/internal/cache"
	"github.com/oggyb/matchpoint/internal/config"
	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/event"
	"github.com/oggyb/matchpoint/internal/hub"
	"github.com/oggyb/matchpoint/internal/service/match"
)

//
// Test helpers
//

// recorder captures published events in emission order.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// seedProfiles inserts three compatible profiles with rating 0 so swipe tests
// start from a known rating baseline.
func seedProfiles(t *testing.T, gdb *gorm.DB) {
	t.Helper()

	now := time.Now()
	profiles := []db.Profile{
		{ID: 1, Name: "user1", Gender: db.GenderMale, Preference: db.GenderFemale,
			BirthDate: now.AddDate(-30, 0, 0), PreferYoungerYears: 5, PreferOlderYears: 5, Active: true},
		{ID: 2, Name: "user2", Gender: db.GenderFemale, Preference: db.GenderMale,
			BirthDate: now.AddDate(-28, 0, 0), PreferYoungerYears: 5, PreferOlderYears: 5, Active: true},
		{ID: 3, Name: "user3", Gender: db.GenderFemale, Preference: db.PreferenceAll,
			BirthDate: now.AddDate(-32, 0, 0), PreferYoungerYears: 5, PreferOlderYears: 5, Active: true},
	}
	require.NoError(t, gdb.Create(&profiles).Error)
}

// setupService spins up an in-memory SQLite DB, a miniredis, an event bus with
// a recording subscriber, and wires everything into a match service.
//
// Each test gets its own isolated DB + Redis.
func setupService(t *testing.T) (*match.Service, *app.AppContext, *recorder) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))
	seedProfiles(t, dbase)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests

	bus := event.NewBus()
	rec := &recorder{}
	bus.Subscribe(rec.handle)

	presence := hub.New(logger, hub.Options{})
	appCtx := app.New(dbase, redisCache, logger, bus, presence, cfg)
	return match.NewService(appCtx), appCtx, rec
}

func profileRating(t *testing.T, appCtx *app.AppContext, userID uint64) int {
	t.Helper()
	var p db.Profile
	require.NoError(t, appCtx.DB.Take(&p, userID).Error)
	return p.Rating
}

//
// Tests
//

// TestMutualRightCreatesMatch walks the full pipeline: a one-sided right swipe
// creates nothing, the reciprocal right creates the canonical match row and
// publishes exactly one creation event.
func TestMutualRightCreatesMatch(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := setupService(t)

	res, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	assert.False(t, res.Mutual)
	assert.Nil(t, res.Match)

	res, err = svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)
	assert.True(t, res.Mutual)
	require.NotNil(t, res.Match)
	assert.Equal(t, uint64(1), res.Match.LowID)
	assert.Equal(t, uint64(2), res.Match.HighID)

	events := rec.all()
	require.Len(t, events, 1)
	created, ok := events[0].(event.MatchCreated)
	require.True(t, ok)
	assert.Equal(t, res.Match.ID, created.MatchID)
}

// TestRepeatSwipeIsIdempotent re-records an identical right swipe: the rating
// delta must not apply twice and no duplicate match or event may appear.
func TestRepeatSwipeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, rec := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	after := profileRating(t, appCtx, 2)
	assert.Equal(t, 24, after) // new account, equal ratings: round(48 * 0.5)

	_, err = svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	assert.Equal(t, after, profileRating(t, appCtx, 2))

	// mutual right, repeated: match survives and only one event fires
	_, err = svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)
	res, err := svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)
	assert.True(t, res.Mutual)

	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Len(t, rec.all(), 1)
}

// TestRatingUsesCurrentTargetState chains swipes from different actors: each
// delta must be computed from the rating and exposure the previous swipe
// committed, not from a snapshot taken before it.
func TestRatingUsesCurrentTargetState(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	assert.Equal(t, 24, profileRating(t, appCtx, 2))

	// target now at rating 24 with one exposure; a left from a rating-0 actor
	// yields round(48 * (0 - 1/(1+10^(-24/400)))) = -26
	_, err = svc.RecordSwipe(ctx, 3, 2, db.DirectionLeft)
	require.NoError(t, err)
	assert.Equal(t, -2, profileRating(t, appCtx, 2))

	var target db.Profile
	require.NoError(t, appCtx.DB.Take(&target, 2).Error)
	assert.Equal(t, uint64(2), target.SwipeCount)
}

// TestLeftSwipeTearsDownMatch verifies the overwrite path: a left swipe on a
// matched counterpart removes the match, cascades its messages and publishes
// the deletion event.
func TestLeftSwipeTearsDownMatch(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, rec := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	res, err := svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)
	require.NotNil(t, res.Match)

	msg := db.Message{MatchID: res.Match.ID, SenderID: 1, RecipientID: 2, Text: "hi"}
	require.NoError(t, appCtx.DB.Create(&msg).Error)

	res, err = svc.RecordSwipe(ctx, 1, 2, db.DirectionLeft)
	require.NoError(t, err)
	assert.True(t, res.Unmatched)

	var matchCount, msgCount int64
	require.NoError(t, appCtx.DB.Model(&db.Match{}).Count(&matchCount).Error)
	require.NoError(t, appCtx.DB.Model(&db.Message{}).Count(&msgCount).Error)
	assert.Equal(t, int64(0), matchCount)
	assert.Equal(t, int64(0), msgCount)

	events := rec.all()
	require.Len(t, events, 2)
	_, ok := events[1].(event.MatchDeleted)
	assert.True(t, ok)
}

// TestLeftSwipeWithoutMatchIsQuiet ensures a pass on an unmatched target is an
// ordinary ledger write, not an error and not an event.
func TestLeftSwipeWithoutMatchIsQuiet(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := setupService(t)

	res, err := svc.RecordSwipe(ctx, 1, 3, db.DirectionLeft)
	require.NoError(t, err)
	assert.False(t, res.Mutual)
	assert.False(t, res.Unmatched)
	assert.Len(t, rec.all(), 0)
}

func TestRecordSwipeValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, "sideways")
	assert.True(t, errors.Is(err, apperrors.ErrValidation))

	_, err = svc.RecordSwipe(ctx, 1, 1, db.DirectionRight)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))

	_, err = svc.RecordSwipe(ctx, 1, 999, db.DirectionRight)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestUnmatch(t *testing.T) {
	ctx := context.Background()
	svc, _, rec := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	_, err = svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)

	require.NoError(t, svc.Unmatch(ctx, 2, 1))

	exists, err := svc.ExistsBetween(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, exists)

	events := rec.all()
	require.Len(t, events, 2)
	_, ok := events[1].(event.MatchDeleted)
	assert.True(t, ok)

	// no active match to remove
	err = svc.Unmatch(ctx, 2, 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	err = svc.Unmatch(ctx, 1, 1)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))
}

// TestReportConversation files a complaint against a matched counterpart and
// checks the moderation record: one live row per reporter, overwritten on
// re-report, surviving a later unmatch.
func TestReportConversation(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	_, err = svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)

	require.NoError(t, svc.Report(ctx, 1, 2, "spam links"))

	var report db.Report
	require.NoError(t, appCtx.DB.Where("reporter_id = ? AND reported_id = ?", 1, 2).Take(&report).Error)
	assert.Equal(t, "spam links", report.Reason)

	// re-reporting overwrites, no duplicate row
	require.NoError(t, svc.Report(ctx, 1, 2, "harassment"))
	var count int64
	require.NoError(t, appCtx.DB.Model(&db.Report{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	require.NoError(t, appCtx.DB.Take(&report, report.ID).Error)
	assert.Equal(t, "harassment", report.Reason)

	// the moderation record outlives the match
	require.NoError(t, svc.Unmatch(ctx, 1, 2))
	require.NoError(t, appCtx.DB.Model(&db.Report{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReportValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := setupService(t)

	err := svc.Report(ctx, 1, 1, "")
	assert.True(t, errors.Is(err, apperrors.ErrInvalidState))

	// no conversation with user 3 to report
	err = svc.Report(ctx, 1, 3, "rude")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))

	_, err = svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	_, err = svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)
	err = svc.Report(ctx, 1, 2, strings.Repeat("x", 1001))
	assert.True(t, errors.Is(err, apperrors.ErrValidation))
}

// TestListForUser checks the match-list read model: counterpart profile plus
// the requesting side's unread counter.
func TestListForUser(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	res, err := svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)

	require.NoError(t, appCtx.DB.Model(&db.Match{}).
		Where("id = ?", res.Match.ID).
		UpdateColumn("unread_low", 3).Error)

	summaries, err := svc.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, uint64(2), summaries[0].Profile.ID)
	assert.Equal(t, uint32(3), summaries[0].Unread)

	// the other side sees its own counter
	summaries, err = svc.ListForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, uint32(0), summaries[0].Unread)
}

// TestUnreadCountCacheFallback verifies the cache-first read: a cold cache
// falls back to the DB row and writes the counter back.
func TestUnreadCountCacheFallback(t *testing.T) {
	ctx := context.Background()
	svc, appCtx, _ := setupService(t)

	_, err := svc.RecordSwipe(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	res, err := svc.RecordSwipe(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)

	require.NoError(t, appCtx.DB.Model(&db.Match{}).
		Where("id = ?", res.Match.ID).
		UpdateColumn("unread_high", 2).Error)

	// cold cache: DB answers
	count, err := svc.UnreadCount(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	// warm cache: answered without the DB row changing anything
	cached, found, err := appCtx.RedisCache.GetUnreadCount(ctx, res.Match.ID, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(2), cached)

	count, err = svc.UnreadCount(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)
}
