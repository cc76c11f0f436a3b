package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCachedService(t *testing.T, repo *mockRepository) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(ServiceParams{
		Repo:      repo,
		Projects:  &mockProjects{},
		Directory: mockDirectory{},
		Cache:     client,
		Logger:    testLogger(),
		StatsTTL:  time.Minute,
	})
	return svc, mr
}

func TestStatistics_CachesSnapshot(t *testing.T) {
	repo := newMockRepository()
	svc, mr := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	first, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalQuotes)
	assert.True(t, mr.Exists(statsCacheKey))

	// A second read is served from the cache even if the book changes
	// underneath without going through the service.
	repo.quotes[1].Status = QuoteStatusCancelled
	second, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ByStatus, second.ByStatus)
}

func TestStatistics_InvalidatedOnWrite(t *testing.T) {
	repo := newMockRepository()
	svc, mr := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	_, err = svc.Statistics(ctx)
	require.NoError(t, err)
	require.True(t, mr.Exists(statsCacheKey))

	_, err = svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	assert.False(t, mr.Exists(statsCacheKey))

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalQuotes)
}

func TestStatistics_SurvivesCacheOutage(t *testing.T) {
	repo := newMockRepository()
	svc, mr := newCachedService(t, repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)
	mr.Close()

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalQuotes)
}
