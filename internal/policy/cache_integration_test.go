//go:build integration

package policy_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/policy"
	"custos/pkg/testutil/containers"
)

type CachedReaderSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	inner *policy.InMemoryStore
}

func TestCachedReaderSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(CachedReaderSuite))
}

func (s *CachedReaderSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *CachedReaderSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.inner = policy.NewInMemoryStore()
}

func (s *CachedReaderSuite) TestReadThrough() {
	ctx := context.Background()
	cached := policy.NewCachedReader(s.inner, s.redis.Client, time.Minute, nil)

	first, err := cached.GetActivePolicy(ctx)
	s.Require().NoError(err)

	// Change the backing store. The cached copy must keep serving until
	// invalidated.
	next := first
	next.Version = first.Version + 1
	s.Require().NoError(s.inner.SetActivePolicy(ctx, next))

	got, err := cached.GetActivePolicy(ctx)
	s.Require().NoError(err)
	s.Equal(first.Version, got.Version)

	s.Require().NoError(cached.Invalidate(ctx))

	got, err = cached.GetActivePolicy(ctx)
	s.Require().NoError(err)
	s.Equal(next.Version, got.Version)
}

func (s *CachedReaderSuite) TestCorruptEntryFallsThrough() {
	ctx := context.Background()
	cached := policy.NewCachedReader(s.inner, s.redis.Client, time.Minute, nil)

	s.Require().NoError(s.redis.Client.Set(ctx, "custos:policy:active", "{not json", time.Minute).Err())

	got, err := cached.GetActivePolicy(ctx)
	s.Require().NoError(err)
	s.Equal(policy.Default().Version, got.Version)
}

func (s *CachedReaderSuite) TestTTLExpiryRefreshes() {
	ctx := context.Background()
	cached := policy.NewCachedReader(s.inner, s.redis.Client, time.Second, nil)

	_, err := cached.GetActivePolicy(ctx)
	s.Require().NoError(err)

	next := policy.Default()
	next.Version = 7
	s.Require().NoError(s.inner.SetActivePolicy(ctx, next))

	s.Eventually(func() bool {
		got, err := cached.GetActivePolicy(ctx)
		return err == nil && got.Version == 7
	}, 5*time.Second, 200*time.Millisecond)
}
