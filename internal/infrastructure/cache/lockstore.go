package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

const (
	userSyncLockPrefix = "quota:sync_lock:user:"
	taskLeaderPrefix   = "worker:leader:"
)

// LockStore provides short-TTL advisory locks in the shared cache. When the
// cache is unreachable locks are treated as acquired so a cache outage
// degrades to unsynchronized operation instead of a standstill.
type LockStore struct {
	kv  KV
	log logger.Interface
}

func NewLockStore(kv KV, log logger.Interface) *LockStore {
	return &LockStore{kv: kv, log: log.Named("locks")}
}

// AcquireUserSyncLock takes the per-user quota sync lock. The returned
// release func is a no-op when the lock was degraded-acquired.
func (s *LockStore) AcquireUserSyncLock(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, func()) {
	key := userSyncLockPrefix + userID.String()
	return s.acquire(ctx, key, ttl)
}

// AcquireTaskLeaderLock takes the single-leader lock for a scheduled task.
func (s *LockStore) AcquireTaskLeaderLock(ctx context.Context, task string, ttl time.Duration) (bool, func()) {
	key := taskLeaderPrefix + task
	return s.acquire(ctx, key, ttl)
}

func (s *LockStore) acquire(ctx context.Context, key string, ttl time.Duration) (bool, func()) {
	token := fmt.Sprintf("%d", time.Now().UnixNano())
	ok, err := s.kv.SetNX(ctx, key, token, ttl)
	if err != nil {
		s.log.Warnw("lock store unavailable, proceeding without lock", "key", key, "error", err)
		return true, func() {}
	}
	if !ok {
		return false, func() {}
	}
	return true, func() {
		if err := s.kv.Del(context.Background(), key); err != nil {
			s.log.Debugw("lock release failed, ttl will expire it", "key", key, "error", err)
		}
	}
}
