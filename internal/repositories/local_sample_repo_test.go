package repositories

import (
	"context"
	"testing"

	"github.com/prudhvinik1/robotrelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSampleRepository_InsertAndQuery(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	// ACT: insert out of order
	for _, ts := range []string{"2026-03-01T10:00:02", "2026-03-01T10:00:00", "2026-03-01T10:00:01"} {
		id, err := repo.Insert(ctx, sampleAt(ts))
		require.NoError(t, err)
		assert.Positive(t, id, "Insert should return a generated id")
	}

	samples, err := repo.Query(ctx, models.DateFilter{})

	// ASSERT: oldest first, all unsynced
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, "2026-03-01T10:00:00", samples[0].Timestamp)
	assert.Equal(t, "2026-03-01T10:00:01", samples[1].Timestamp)
	assert.Equal(t, "2026-03-01T10:00:02", samples[2].Timestamp)
	for _, s := range samples {
		assert.False(t, s.Synced)
	}
}

func TestLocalSampleRepository_NullFieldsRoundTrip(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	_, err := repo.Insert(ctx, &models.SensorSample{Timestamp: "2026-03-01T10:00:00", IRCenter: ptr(2)})
	require.NoError(t, err)

	samples, err := repo.Query(ctx, models.DateFilter{})

	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Nil(t, samples[0].UltrasonicCM)
	assert.Nil(t, samples[0].IRLeft)
	assert.Nil(t, samples[0].IRRight)
	assert.Nil(t, samples[0].LineState)
	require.NotNil(t, samples[0].IRCenter)
	assert.Equal(t, 2, *samples[0].IRCenter)
}

func TestLocalSampleRepository_QueryByDate(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	for _, ts := range []string{"2026-03-01T23:59:59", "2026-03-02T00:00:00", "2026-03-02T08:30:00.123456"} {
		_, err := repo.Insert(ctx, sampleAt(ts))
		require.NoError(t, err)
	}

	filter, err := models.ParseDateFilter("2026-03-02")
	require.NoError(t, err)

	samples, err := repo.Query(ctx, filter)

	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "2026-03-02T00:00:00", samples[0].Timestamp)
	assert.Equal(t, "2026-03-02T08:30:00.123456", samples[1].Timestamp)
}

func TestLocalSampleRepository_QueryEmpty(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)

	samples, err := repo.Query(context.Background(), models.DateFilter{})

	require.NoError(t, err)
	assert.NotNil(t, samples, "empty result should be an empty slice, not nil")
	assert.Empty(t, samples)
}

func TestLocalSampleRepository_UnsyncedAndMarkSynced(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	var ids []int64
	for _, ts := range []string{"t3", "t1", "t2"} {
		id, err := repo.Insert(ctx, sampleAt(ts))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	// ACT: mark the first inserted ("t3") synced
	require.NoError(t, repo.MarkSynced(ctx, ids[:1]))

	// ASSERT: the rest come back in timestamp order
	var got []string
	for sample, err := range repo.Unsynced(ctx) {
		require.NoError(t, err)
		got = append(got, sample.Timestamp)
	}
	assert.Equal(t, []string{"t1", "t2"}, got)

	pending, err := repo.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)
}

func TestLocalSampleRepository_UnsyncedStopsEarly(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	for _, ts := range []string{"t1", "t2", "t3"} {
		_, err := repo.Insert(ctx, sampleAt(ts))
		require.NoError(t, err)
	}

	seen := 0
	for _, err := range repo.Unsynced(ctx) {
		require.NoError(t, err)
		seen++
		break
	}
	assert.Equal(t, 1, seen)

	// The cursor must be released: a write still succeeds afterwards.
	_, err := repo.Insert(ctx, sampleAt("t4"))
	require.NoError(t, err)
}

// TestLocalSampleRepository_SyncedFlagIsMonotonic ensures nothing ever flips synced back.
func TestLocalSampleRepository_SyncedFlagIsMonotonic(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	id, err := repo.Insert(ctx, sampleAt("t1"))
	require.NoError(t, err)
	require.NoError(t, repo.MarkSynced(ctx, []int64{id}))

	// Marking again and inserting a same-timestamp sample must not reset it.
	require.NoError(t, repo.MarkSynced(ctx, []int64{id}))
	_, err = repo.Insert(ctx, sampleAt("t1"))
	require.NoError(t, err)

	samples, err := repo.Query(ctx, models.DateFilter{})
	require.NoError(t, err)
	require.Len(t, samples, 2)
	for _, s := range samples {
		if s.ID == id {
			assert.True(t, s.Synced, "synced sample must stay synced")
		} else {
			assert.False(t, s.Synced)
		}
	}
}

func TestLocalSampleRepository_MarkSyncedEmpty(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)

	assert.NoError(t, repo.MarkSynced(context.Background(), nil))
}

// TestLocalSampleRepository_DurableAcrossRestart covers insert followed by close and reopen.
func TestLocalSampleRepository_DurableAcrossRestart(t *testing.T) {
	_, path := newTestDB(t)
	ctx := context.Background()

	db := openTestDB(t, path)
	_, err := NewSQLiteSampleRepository(db).Insert(ctx, sampleAt("2026-03-01T10:00:00"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// ACT: "restart" on the same file; Init must be idempotent
	reopened := openTestDB(t, path)
	defer reopened.Close()
	samples, err := NewSQLiteSampleRepository(reopened).Query(ctx, models.DateFilter{})

	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "2026-03-01T10:00:00", samples[0].Timestamp)
	require.NotNil(t, samples[0].UltrasonicCM)
	assert.Equal(t, 12.5, *samples[0].UltrasonicCM)
}

func TestLocalSampleRepository_Count(t *testing.T) {
	db, _ := newTestDB(t)
	repo := NewSQLiteSampleRepository(db)
	ctx := context.Background()

	for _, ts := range []string{"t1", "t2"} {
		_, err := repo.Insert(ctx, sampleAt(ts))
		require.NoError(t, err)
	}

	n, err := repo.Count(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
