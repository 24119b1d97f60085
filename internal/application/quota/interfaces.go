package quota

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
)

// RouterSnapshots provides the two bulk reads one tick needs, plus the
// per-MAC IP lookup used as an address-list fallback.
type RouterSnapshots interface {
	GetHotspotHostUsageMap(ctx context.Context) (map[string]router.HostUsage, error)
	GetHotspotIPBindingUserMap(ctx context.Context) (map[string]router.BindingEntry, error)
	GetIPByMAC(ctx context.Context, mac string) (string, error)
}

// Coordinator is the slice of the binding coordinator the engine drives.
type Coordinator interface {
	ComputeTarget(u *user.User) binding.Target
	SetUserProfile(ctx context.Context, u *user.User, profile string) error
	SyncUserAddressList(ctx context.Context, u *user.User, ipHint string) error
}

// DeviceEnroller auto-enrolls devices discovered through managed bindings.
type DeviceEnroller interface {
	RegisterOrUpdateDevice(ctx context.Context, u *user.User, ip, userAgent, mac string, allowReplace bool) (string, *device.Device, error)
}

// Locks serializes per-user processing across engine instances.
type Locks interface {
	AcquireUserSyncLock(ctx context.Context, userID uuid.UUID, ttl time.Duration) (bool, func())
}

// Baselines stores the last observed byte total per MAC.
type Baselines interface {
	Get(ctx context.Context, mac string) (uint64, bool)
	Set(ctx context.Context, mac string, total uint64)
}
