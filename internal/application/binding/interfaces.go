package binding

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
)

// RouterPort is the slice of the router gateway the coordinator mutates
// through. Tests substitute a mock.
type RouterPort interface {
	UpsertIPBinding(ctx context.Context, mac, bindingType, server, comment string) error
	RemoveManagedIPBinding(ctx context.Context, mac string) error

	UpsertAddressListEntry(ctx context.Context, list, address, comment string) error
	RemoveAddressListEntry(ctx context.Context, list, address string) error
	SyncAddressListForUser(ctx context.Context, username, targetList, comment string, otherLists []string) error
	CleanupAddressListsForIP(ctx context.Context, ip, keepList string, lists []string) error

	UpsertDhcpStaticLease(ctx context.Context, mac, address, comment string) error
	RemoveManagedLease(ctx context.Context, mac string) error

	UpsertHotspotUser(ctx context.Context, spec router.HotspotUserSpec) error
	SetHotspotUserProfile(ctx context.Context, username, profile string) error
	DeleteHotspotUser(ctx context.Context, username string) error

	GetIPByMAC(ctx context.Context, mac string) (string, error)
}
