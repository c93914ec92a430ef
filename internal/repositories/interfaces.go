package repositories

import (
	"context"
	"iter"

	"github.com/prudhvinik1/robotrelay/internal/models"
)

// SampleReader is the read contract shared by the local and cloud stores:
// all samples, optionally for one date, oldest first.
type SampleReader interface {
	Query(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error)
}

type LocalSampleRepository interface {
	SampleReader
	Insert(ctx context.Context, sample *models.SensorSample) (int64, error)
	Unsynced(ctx context.Context) iter.Seq2[*models.SensorSample, error]
	MarkSynced(ctx context.Context, ids []int64) error
	Count(ctx context.Context) (int64, error)
	CountUnsynced(ctx context.Context) (int64, error)
}

// CloudConnection is one open session against the cloud store.
type CloudConnection interface {
	WriteBatch(ctx context.Context, samples []*models.SensorSample) error
	ReadAll(ctx context.Context, filter models.DateFilter) ([]*models.SensorSample, error)
	Close()
}

type CloudConnector interface {
	Configured() bool
	Connect(ctx context.Context) (CloudConnection, error)
}

type SyncStatusRepository interface {
	Get(ctx context.Context) (models.SyncStatus, error)
	Save(ctx context.Context, status models.SyncStatus) error
}

type FeedCache interface {
	Get(ctx context.Context, feedKey string) (*models.FeedEntry, error)
	Set(ctx context.Context, feedKey string, entry models.FeedEntry) error
}
