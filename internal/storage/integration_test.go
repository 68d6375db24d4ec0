package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobharvest/harvester/internal/domain"
)

func newTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	connStr := os.Getenv("TEST_POSTGRES_URL")
	if connStr == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(ctx))
	return store
}

func newTestRedis(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	store := NewRedisStore(addr, "", 0)
	require.NoError(t, store.Ping(context.Background()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPostgresInsertIfNew(t *testing.T) {
	store := newTestPostgres(t)
	ctx := context.Background()

	url := "https://example.com/jobs/" + uuid.NewString()
	p := &domain.JobPosting{
		Platform:    "Example",
		Company:     domain.Optional("Acme"),
		Title:       "Senior Python Developer",
		URL:         url,
		Description: domain.Optional("Build backend services in Python."),
		ScrapedAt:   time.Now().UTC().Truncate(time.Second),
	}

	outcome, err := store.InsertIfNew(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome)

	outcome, err = store.InsertIfNew(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, domain.SkippedDuplicate, outcome)

	// A later run may store the same URL again.
	later := *p
	later.ScrapedAt = p.ScrapedAt.Add(time.Second)
	outcome, err = store.InsertIfNew(ctx, &later)
	require.NoError(t, err)
	assert.Equal(t, domain.Inserted, outcome)

	jobs, err := store.ListJobs(ctx, domain.JobQuery{Title: "python developer", Platform: "Example", Page: 1, Limit: 200})
	require.NoError(t, err)
	var matched []domain.JobPosting
	for _, j := range jobs {
		if j.URL == url {
			matched = append(matched, j)
		}
	}
	require.Len(t, matched, 2)
	assert.True(t, matched[0].ScrapedAt.After(matched[1].ScrapedAt))
	assert.Nil(t, matched[0].DatePosted)
	require.NotNil(t, matched[0].Company)
	assert.Equal(t, "Acme", *matched[0].Company)
}

func TestPostgresInsertIfNewCancelled(t *testing.T) {
	store := newTestPostgres(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.InsertIfNew(ctx, &domain.JobPosting{
		Platform:  "Example",
		Title:     "Engineer",
		URL:       "https://example.com/jobs/cancelled",
		ScrapedAt: time.Now().UTC(),
	})
	var perr *domain.PersistError
	assert.ErrorAs(t, err, &perr)
}

func TestRedisEmbeddingCache(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString()

	_, ok, err := store.GetEmbedding(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	vec := []float32{0.25, -0.5, 1}
	require.NoError(t, store.SetEmbedding(ctx, key, vec, time.Minute))

	got, ok, err := store.GetEmbedding(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestRedisRunReports(t *testing.T) {
	store := newTestRedis(t)
	ctx := context.Background()

	_, err := store.RunReport(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	finished := time.Now().UTC().Truncate(time.Second)
	report := &domain.RunReport{
		ID:         uuid.NewString(),
		State:      domain.RunCompleted,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: &finished,
		Results:    []domain.RunResult{{SourceName: "Example", Attempted: 2, Inserted: 1, SkippedIrrelevant: 1}},
	}
	require.NoError(t, store.SaveRunReport(ctx, report))

	latest, err := store.LatestRunReport(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ID, latest.ID)
	assert.Equal(t, report.Results, latest.Results)

	byID, err := store.RunReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, byID.State)
}
