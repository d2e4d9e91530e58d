package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/oggyb/matchpoint/internal/db"
	"github.com/oggyb/matchpoint/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// setup in-memory DB
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := database.AutoMigrate(&db.Profile{}, &db.Swipe{}, &db.Match{}, &db.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return database
}

func TestPutReturnsPreviousDirection(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	// first decision: no previous
	previous, err := repo.Put(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	assert.Equal(t, "", previous)

	// same direction again: previous is the recorded right
	previous, err = repo.Put(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	assert.Equal(t, db.DirectionRight, previous)

	// overwrite with left
	previous, err = repo.Put(ctx, 1, 2, db.DirectionLeft)
	require.NoError(t, err)
	assert.Equal(t, db.DirectionRight, previous)

	// a single live row per ordered pair
	var count int64
	require.NoError(t, dbase.Model(&db.Swipe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var swipe db.Swipe
	require.NoError(t, dbase.First(&swipe).Error)
	assert.Equal(t, db.DirectionLeft, swipe.Direction)
}

func TestPutDirectedPairsAreDistinct(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, err := repo.Put(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	_, err = repo.Put(ctx, 2, 1, db.DirectionLeft)
	require.NoError(t, err)

	var count int64
	require.NoError(t, dbase.Model(&db.Swipe{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestHasRight(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, err := repo.Put(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	_, err = repo.Put(ctx, 3, 2, db.DirectionLeft)
	require.NoError(t, err)

	right, err := repo.HasRight(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, right)

	// left-swipe does not count
	right, err = repo.HasRight(ctx, 3, 2)
	require.NoError(t, err)
	assert.False(t, right)

	// undecided pair
	right, err = repo.HasRight(ctx, 2, 1)
	require.NoError(t, err)
	assert.False(t, right)

	// overwrite revokes the right
	_, err = repo.Put(ctx, 1, 2, db.DirectionLeft)
	require.NoError(t, err)
	right, err = repo.HasRight(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, right)
}

// TestDeleteByActor covers the account-removal path: only the leaving user's
// own decisions disappear, decisions about them stay.
func TestDeleteByActor(t *testing.T) {
	ctx := context.Background()
	dbase := setupTestDB(t)
	repo := repository.NewSwipeRepository(dbase)

	_, err := repo.Put(ctx, 1, 2, db.DirectionRight)
	require.NoError(t, err)
	_, err = repo.Put(ctx, 1, 3, db.DirectionLeft)
	require.NoError(t, err)
	_, err = repo.Put(ctx, 2, 1, db.DirectionRight)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByActor(ctx, 1))

	var count int64
	require.NoError(t, dbase.Model(&db.Swipe{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	remaining, err := repo.Get(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, db.DirectionRight, remaining.Direction)
}
