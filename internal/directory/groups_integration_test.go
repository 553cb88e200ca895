//go:build integration

package directory_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"credbridge/internal/directory"
	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	"credbridge/internal/platform/metrics"
	platformredis "credbridge/internal/platform/redis"
	"credbridge/pkg/testutil/containers"
)

type GroupsCacheSuite struct {
	suite.Suite
	redis      *containers.RedisContainer
	client     *fakeIssuer
	groups     *directory.Groups
	fetchCount int
}

func TestGroupsCacheSuite(t *testing.T) {
	suite.Run(t, new(GroupsCacheSuite))
}

func (s *GroupsCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *GroupsCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	s.fetchCount = 0
	s.client = &fakeIssuer{
		listGroups: func(page int) (issuer.GroupPage, error) {
			s.fetchCount++
			return issuer.GroupPage{Groups: []issuer.Group{{ID: 555, Name: "automation-101"}}}, nil
		},
		updateGroup: func(groupID int64, req issuer.GroupUpdate) (issuer.Group, error) {
			return issuer.Group{ID: groupID}, nil
		},
	}
	cache := &platformredis.Client{Client: s.redis.Client}
	s.groups = directory.NewGroups(s.client, instance.NewMemoryStore(), cache, time.Minute, logger, m)
}

func (s *GroupsCacheSuite) TestRepeatedListsServeFromCache() {
	ctx := context.Background()

	first, err := s.groups.ListGroups(ctx)
	s.Require().NoError(err)
	s.Equal(map[int64]string{555: "automation-101"}, first)

	second, err := s.groups.ListGroups(ctx)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(1, s.fetchCount)
}

func (s *GroupsCacheSuite) TestSyncInvalidatesCachedGroups() {
	ctx := context.Background()

	_, err := s.groups.ListGroups(ctx)
	s.Require().NoError(err)
	s.Equal(1, s.fetchCount)

	store := instance.NewMemoryStore()
	inst := instance.Instance{Course: 10, Name: "cert", GroupID: 555, PassingGrade: 50}
	id, err := store.Create(ctx, &inst)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.NewWith(prometheus.NewRegistry())
	cache := &platformredis.Client{Client: s.redis.Client}
	groups := directory.NewGroups(s.client, store, cache, time.Minute, logger, m)

	_, err = groups.SyncGroup(ctx, hoststore.Course{ID: 10, FullName: "Automation"}, id, 0, "")
	s.Require().NoError(err)

	_, err = s.groups.ListGroups(ctx)
	s.Require().NoError(err)
	s.Equal(2, s.fetchCount)
}
