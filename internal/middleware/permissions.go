package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"workshopdesk/internal/routes"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RolePermissionSource is satisfied by repository.RoleRepository
type RolePermissionSource interface {
	RouteNamesByRoleID(ctx context.Context, roleID uuid.UUID) ([]string, error)
}

type permissionBackend interface {
	get(ctx context.Context, roleID uuid.UUID) ([]string, bool, error)
	set(ctx context.Context, roleID uuid.UUID, names []string) error
	del(ctx context.Context, roleID uuid.UUID) error
	// generation changes on every invalidation of the role
	generation(ctx context.Context, roleID uuid.UUID) (int64, error)
	bump(ctx context.Context, roleID uuid.UUID) error
}

// PermissionCache serves role permissions with a TTL, from process memory or Redis
type PermissionCache struct {
	source  RolePermissionSource
	backend permissionBackend
	logger  *zap.Logger
}

// NewMemoryPermissionCache keeps entries in this process only
func NewMemoryPermissionCache(source RolePermissionSource, ttl time.Duration, logger *zap.Logger) *PermissionCache {
	return &PermissionCache{
		source:  source,
		backend: &memoryBackend{ttl: ttl, now: time.Now},
		logger:  logger,
	}
}

// NewRedisPermissionCache shares entries between instances, so an invalidation on one
// instance is seen by all of them
func NewRedisPermissionCache(source RolePermissionSource, client *redis.Client, ttl time.Duration, logger *zap.Logger) *PermissionCache {
	return &PermissionCache{
		source:  source,
		backend: &redisBackend{client: client, ttl: ttl},
		logger:  logger,
	}
}

func (pc *PermissionCache) PermissionsForRole(ctx context.Context, roleID uuid.UUID) (routes.PermissionSet, error) {
	names, ok, err := pc.backend.get(ctx, roleID)
	if err != nil {
		pc.logger.Warn("Permission cache read failed, using database", zap.String("role_id", roleID.String()), zap.Error(err))
	}
	if ok {
		return routes.NewPermissionSet(names), nil
	}

	gen, genErr := pc.backend.generation(ctx, roleID)
	names, err = pc.source.RouteNamesByRoleID(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("load permissions of role %s: %w", roleID, err)
	}
	if genErr == nil {
		pc.store(ctx, roleID, gen, names)
	}
	return routes.NewPermissionSet(names), nil
}

// store caches names unless the role was invalidated while they were loaded
func (pc *PermissionCache) store(ctx context.Context, roleID uuid.UUID, gen int64, names []string) {
	if err := pc.backend.set(ctx, roleID, names); err != nil {
		pc.logger.Warn("Permission cache write failed", zap.String("role_id", roleID.String()), zap.Error(err))
		return
	}
	current, err := pc.backend.generation(ctx, roleID)
	if err == nil && current == gen {
		return
	}
	if err := pc.backend.del(ctx, roleID); err != nil {
		pc.logger.Warn("Permission cache could not drop a stale entry", zap.String("role_id", roleID.String()), zap.Error(err))
	}
}

// Invalidate drops the cached grants of a role. Loads already in flight will not cache
// what they read.
func (pc *PermissionCache) Invalidate(ctx context.Context, roleID uuid.UUID) error {
	if err := pc.backend.bump(ctx, roleID); err != nil {
		return err
	}
	return pc.backend.del(ctx, roleID)
}

type memoryEntry struct {
	names     []string
	expiresAt time.Time
}

type memoryBackend struct {
	entries     sync.Map // roleID -> memoryEntry
	generations sync.Map // roleID -> *atomic.Int64
	ttl         time.Duration
	now         func() time.Time
}

func (m *memoryBackend) get(_ context.Context, roleID uuid.UUID) ([]string, bool, error) {
	v, ok := m.entries.Load(roleID)
	if !ok {
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if !m.now().Before(entry.expiresAt) {
		m.entries.Delete(roleID)
		return nil, false, nil
	}
	return entry.names, true, nil
}

func (m *memoryBackend) set(_ context.Context, roleID uuid.UUID, names []string) error {
	m.entries.Store(roleID, memoryEntry{names: names, expiresAt: m.now().Add(m.ttl)})
	return nil
}

func (m *memoryBackend) del(_ context.Context, roleID uuid.UUID) error {
	m.entries.Delete(roleID)
	return nil
}

func (m *memoryBackend) counter(roleID uuid.UUID) *atomic.Int64 {
	v, _ := m.generations.LoadOrStore(roleID, new(atomic.Int64))
	return v.(*atomic.Int64)
}

func (m *memoryBackend) generation(_ context.Context, roleID uuid.UUID) (int64, error) {
	return m.counter(roleID).Load(), nil
}

func (m *memoryBackend) bump(_ context.Context, roleID uuid.UUID) error {
	m.counter(roleID).Add(1)
	return nil
}

type redisBackend struct {
	client *redis.Client
	ttl    time.Duration
}

func redisKey(roleID uuid.UUID) string {
	return "workshopdesk:role-permissions:" + roleID.String()
}

func redisGenerationKey(roleID uuid.UUID) string {
	return "workshopdesk:role-permissions-gen:" + roleID.String()
}

func (r *redisBackend) get(ctx context.Context, roleID uuid.UUID) ([]string, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(roleID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, false, err
	}
	return names, true, nil
}

func (r *redisBackend) set(ctx context.Context, roleID uuid.UUID, names []string) error {
	if names == nil {
		names = []string{}
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, redisKey(roleID), raw, r.ttl).Err()
}

func (r *redisBackend) del(ctx context.Context, roleID uuid.UUID) error {
	return r.client.Del(ctx, redisKey(roleID)).Err()
}

func (r *redisBackend) generation(ctx context.Context, roleID uuid.UUID) (int64, error) {
	gen, err := r.client.Get(ctx, redisGenerationKey(roleID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return gen, err
}

func (r *redisBackend) bump(ctx context.Context, roleID uuid.UUID) error {
	return r.client.Incr(ctx, redisGenerationKey(roleID)).Err()
}
