package registry

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
)

// IdentityResolver resolves the MAC behind an IP through the layered cache.
type IdentityResolver interface {
	FindMACByIP(ctx context.Context, ip string, forceRefresh bool) (string, string, error)
}

// RouterLookup is the reverse lookup used when only a MAC is known.
type RouterLookup interface {
	GetIPByMAC(ctx context.Context, mac string) (string, error)
}

// BindingApplier is the coordinator surface the registry drives when
// devices appear, authorize, or leave.
type BindingApplier interface {
	ApplyGrantedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error
	ApplyBlockedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error
	RemoveDeviceFootprint(ctx context.Context, d *device.Device) error
}
