// Package directory indexes the Issuer's groups and credentials through the
// paginated listing endpoints, caching where it can, and keeps host courses
// in sync with their Issuer group.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"credbridge/internal/hoststore"
	"credbridge/internal/instance"
	"credbridge/internal/issuer"
	"credbridge/internal/platform/metrics"
	platformredis "credbridge/internal/platform/redis"
	"credbridge/pkg/platform/sentinel"
	"credbridge/pkg/platform/text"
)

const (
	pageSize = 50
	// maxPages bounds runaway pagination against a misbehaving Issuer.
	maxPages = 100

	groupsCacheKey = "credbridge:groups"

	// emptyDescription is the group description used when a course has no
	// summary. The misspelling is load-bearing: existing Issuer groups were
	// created with it and description equality is used downstream.
	emptyDescription = "Recipient has compeleted the achievement."
)

// GroupsClient is the slice of the Issuer client the groups directory needs.
type GroupsClient interface {
	ListGroups(ctx context.Context, pageSize, page int) (issuer.GroupPage, error)
	SearchGroups(ctx context.Context, pageSize, page int) (issuer.GroupPage, error)
	CreateGroup(ctx context.Context, req issuer.GroupRequest) (issuer.Group, error)
	UpdateGroup(ctx context.Context, groupID int64, req issuer.GroupUpdate) (issuer.Group, error)
}

// InstanceReader looks up stored instances during group sync.
type InstanceReader interface {
	Get(ctx context.Context, id int64) (instance.Instance, error)
}

// Groups lists and syncs Issuer groups.
type Groups struct {
	client    GroupsClient
	instances InstanceReader
	cache     *platformredis.Client
	cacheTTL  time.Duration
	sf        singleflight.Group
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

func NewGroups(client GroupsClient, instances InstanceReader, cache *platformredis.Client, cacheTTL time.Duration, logger *slog.Logger, m *metrics.Metrics) *Groups {
	return &Groups{
		client:    client,
		instances: instances,
		cache:     cache,
		cacheTTL:  cacheTTL,
		logger:    logger,
		metrics:   m,
	}
}

// ListGroups returns every Issuer group as an id to name map. Concurrent
// callers share one fetch; results are cached when Redis is configured.
func (g *Groups) ListGroups(ctx context.Context) (map[int64]string, error) {
	if cached, ok := g.cachedGroups(ctx); ok {
		return cached, nil
	}
	v, err, _ := g.sf.Do(groupsCacheKey, func() (any, error) {
		groups, err := g.fetchAllGroups(ctx)
		if err != nil {
			return nil, err
		}
		g.storeGroups(ctx, groups)
		return groups, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int64]string), nil
}

// ListTemplates returns the searchable groups keyed by name, for records
// that still reference the Issuer by template name.
func (g *Groups) ListTemplates(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := g.client.SearchGroups(ctx, pageSize, page)
		if err != nil {
			return nil, fmt.Errorf("%w: search groups page %d: %v", sentinel.ErrDirectoryUnavailable, page, err)
		}
		for _, grp := range result.Groups {
			out[grp.Name] = grp.ID
		}
		if result.Meta.NextPage == nil {
			break
		}
	}
	return out, nil
}

// SyncGroup aligns a host course with an Issuer group and returns the group
// id. With an instance id it updates the existing group, preferring the
// explicit groupID argument over the instance's stored one. Without an
// instance it creates a group named after the course's short name plus a
// random suffix so repeated courses stay distinguishable.
func (g *Groups) SyncGroup(ctx context.Context, course hoststore.Course, instanceID, groupID int64, courseLink string) (int64, error) {
	if instanceID != 0 {
		inst, err := g.instances.Get(ctx, instanceID)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", sentinel.ErrSyncFailed, err)
		}
		target := groupID
		if target == 0 {
			target = inst.GroupID
		}
		if target == 0 {
			return 0, fmt.Errorf("%w: instance %d has no group", sentinel.ErrSyncFailed, instanceID)
		}
		_, err = g.client.UpdateGroup(ctx, target, issuer.GroupUpdate{
			CourseName:        course.FullName,
			CourseDescription: courseDescription(course),
			CourseLink:        courseLink,
		})
		if err != nil {
			return 0, fmt.Errorf("%w: %v", sentinel.ErrSyncFailed, err)
		}
		g.afterSync(ctx, target, course.ID)
		return target, nil
	}

	created, err := g.client.CreateGroup(ctx, issuer.GroupRequest{
		Name:              course.ShortName + "-" + uuid.NewString()[:8],
		CourseName:        course.FullName,
		CourseDescription: courseDescription(course),
		CourseLink:        courseLink,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", sentinel.ErrSyncFailed, err)
	}
	g.afterSync(ctx, created.ID, course.ID)
	return created.ID, nil
}

func (g *Groups) afterSync(ctx context.Context, groupID, courseID int64) {
	g.metrics.GroupsSynced.Inc()
	g.invalidate(ctx)
	g.logger.InfoContext(ctx, "group synced", "group_id", groupID, "course_id", courseID)
}

func (g *Groups) fetchAllGroups(ctx context.Context) (map[int64]string, error) {
	out := make(map[int64]string)
	for page := 1; page <= maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := g.client.ListGroups(ctx, pageSize, page)
		if err != nil {
			return nil, fmt.Errorf("%w: list groups page %d: %v", sentinel.ErrDirectoryUnavailable, page, err)
		}
		for _, grp := range result.Groups {
			out[grp.ID] = grp.Name
		}
		if result.Meta.NextPage == nil {
			break
		}
	}
	return out, nil
}

func (g *Groups) cachedGroups(ctx context.Context) (map[int64]string, bool) {
	if g.cache == nil {
		return nil, false
	}
	raw, err := g.cache.Get(ctx, groupsCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var out map[int64]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (g *Groups) storeGroups(ctx context.Context, groups map[int64]string) {
	if g.cache == nil {
		return
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return
	}
	if err := g.cache.Set(ctx, groupsCacheKey, raw, g.cacheTTL).Err(); err != nil {
		g.logger.WarnContext(ctx, "group cache write failed", "error", err)
	}
}

func (g *Groups) invalidate(ctx context.Context) {
	if g.cache == nil {
		return
	}
	if err := g.cache.Del(ctx, groupsCacheKey).Err(); err != nil {
		g.logger.WarnContext(ctx, "group cache invalidation failed", "error", err)
	}
}

func courseDescription(course hoststore.Course) string {
	if desc := text.StripTags(course.Summary); desc != "" {
		return desc
	}
	return emptyDescription
}
