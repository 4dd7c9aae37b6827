package middleware

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingSource struct {
	names map[uuid.UUID][]string
	calls int
}

func (s *countingSource) RouteNamesByRoleID(_ context.Context, roleID uuid.UUID) ([]string, error) {
	s.calls++
	return s.names[roleID], nil
}

func TestMemoryPermissionCache(t *testing.T) {
	roleID := uuid.New()
	src := &countingSource{names: map[uuid.UUID][]string{roleID: {"workshops.index"}}}
	cache := NewMemoryPermissionCache(src, time.Minute, zap.NewNop())
	backend := cache.backend.(*memoryBackend)
	now := time.Now()
	backend.now = func() time.Time { return now }
	ctx := context.Background()

	perms, err := cache.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.True(t, perms.Has("workshops.index"))
	_, err = cache.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)

	// grants change and the role is invalidated
	src.names[roleID] = []string{"workshops.store"}
	require.NoError(t, cache.Invalidate(ctx, roleID))
	perms, err = cache.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.False(t, perms.Has("workshops.index"))
	assert.True(t, perms.Has("workshops.store"))
	assert.Equal(t, 2, src.calls)

	// expiry
	now = now.Add(2 * time.Minute)
	_, err = cache.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.Equal(t, 3, src.calls)
}

func TestRedisPermissionCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	roleID := uuid.New()
	src := &countingSource{names: map[uuid.UUID][]string{roleID: {"participants.import"}}}
	cache := NewRedisPermissionCache(src, client, time.Minute, zap.NewNop())
	ctx := context.Background()

	perms, err := cache.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.True(t, perms.Has("participants.import"))
	assert.True(t, mr.Exists(redisKey(roleID)))

	// a second instance sharing the server reads the cached grants
	other := NewRedisPermissionCache(src, client, time.Minute, zap.NewNop())
	perms, err = other.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.True(t, perms.Has("participants.import"))
	assert.Equal(t, 1, src.calls)

	require.NoError(t, other.Invalidate(ctx, roleID))
	assert.False(t, mr.Exists(redisKey(roleID)))

	mr.FastForward(2 * time.Minute)
	_, err = cache.PermissionsForRole(ctx, roleID)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestRedisPermissionCache_FallsBackWhenRedisIsDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	roleID := uuid.New()
	src := &countingSource{names: map[uuid.UUID][]string{roleID: {"dashboard"}}}
	cache := NewRedisPermissionCache(src, client, time.Minute, zap.NewNop())

	perms, err := cache.PermissionsForRole(context.Background(), roleID)
	require.NoError(t, err)
	assert.True(t, perms.Has("dashboard"))
}

// racingSource reports the old grants while an admin edits the role mid-load
type racingSource struct {
	cache *PermissionCache
	names []string
	calls int
}

func (s *racingSource) RouteNamesByRoleID(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	s.calls++
	read := s.names
	if s.calls == 1 {
		s.names = []string{"workshops.store"}
		if err := s.cache.Invalidate(ctx, roleID); err != nil {
			return nil, err
		}
	}
	return read, nil
}

func TestPermissionCache_InvalidateDuringLoad(t *testing.T) {
	caches := map[string]func(RolePermissionSource) *PermissionCache{
		"memory": func(src RolePermissionSource) *PermissionCache {
			return NewMemoryPermissionCache(src, time.Minute, zap.NewNop())
		},
		"redis": func(src RolePermissionSource) *PermissionCache {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisPermissionCache(src, client, time.Minute, zap.NewNop())
		},
	}
	for name, build := range caches {
		t.Run(name, func(t *testing.T) {
			roleID := uuid.New()
			src := &racingSource{names: []string{"workshops.index"}}
			cache := build(src)
			src.cache = cache
			ctx := context.Background()

			// the load that raced the edit still answers with what it read
			perms, err := cache.PermissionsForRole(ctx, roleID)
			require.NoError(t, err)
			assert.True(t, perms.Has("workshops.index"))

			perms, err = cache.PermissionsForRole(ctx, roleID)
			require.NoError(t, err)
			assert.True(t, perms.Has("workshops.store"))
			assert.False(t, perms.Has("workshops.index"))
			assert.Equal(t, 2, src.calls)

			_, err = cache.PermissionsForRole(ctx, roleID)
			require.NoError(t, err)
			assert.Equal(t, 2, src.calls)
		})
	}
}
