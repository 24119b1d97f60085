package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

const lastBytesPrefix = "quota:last_bytes:mac:"

// lastBytesTTL keeps baselines alive across several missed ticks without
// letting gone devices accumulate keys forever.
const lastBytesTTL = 24 * time.Hour

// LastBytesStore keeps the last observed byte total per MAC in the shared
// cache so delta accounting survives process restarts.
type LastBytesStore struct {
	kv  KV
	log logger.Interface
}

func NewLastBytesStore(kv KV, log logger.Interface) *LastBytesStore {
	return &LastBytesStore{kv: kv, log: log.Named("last_bytes")}
}

// Get returns the stored baseline for a MAC. ok is false on a miss or when
// the cache is unreachable; callers then fall back to the device row.
func (s *LastBytesStore) Get(ctx context.Context, mac string) (uint64, bool) {
	raw, err := s.kv.Get(ctx, lastBytesPrefix+mac)
	if err != nil {
		if err != ErrCacheMiss {
			s.log.Warnw("last-bytes read failed", "mac", mac, "error", err)
		}
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Set records a new baseline. Failures are logged; the device row keeps a
// copy so a lost write only costs one conservative tick.
func (s *LastBytesStore) Set(ctx context.Context, mac string, total uint64) {
	if err := s.kv.Set(ctx, lastBytesPrefix+mac, strconv.FormatUint(total, 10), lastBytesTTL); err != nil {
		s.log.Warnw("last-bytes write failed", "mac", mac, "error", err)
	}
}
