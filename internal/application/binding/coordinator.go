package binding

import (
	"context"
	"strings"

	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// Target is the desired router state for one user at one moment.
type Target struct {
	Status      access.Status
	Profile     string
	List        string
	OtherLists  []string
	BindingType access.BindingType
}

// Coordinator owns every managed router object. All router writes for user
// access state flow through it so converging and removing footprints stays
// in one place.
type Coordinator struct {
	router    RouterPort
	policy    access.Policy
	deviceCfg *sharedConfig.DeviceConfig
	server    string
	log       logger.Interface
}

func NewCoordinator(
	routerPort RouterPort,
	policy access.Policy,
	deviceCfg *sharedConfig.DeviceConfig,
	accessCfg *sharedConfig.AccessConfig,
	log logger.Interface,
) *Coordinator {
	return &Coordinator{
		router:    routerPort,
		policy:    policy,
		deviceCfg: deviceCfg,
		server:    accessCfg.HotspotServer,
		log:       log.Named("binding"),
	}
}

// Policy exposes the access policy for collaborators that derive expected
// state, such as the parity auditor.
func (c *Coordinator) Policy() access.Policy {
	return c.policy
}

// ComputeTarget derives the full desired router state for a user.
func (c *Coordinator) ComputeTarget(u *user.User) Target {
	now := biztime.NowUTC()
	status := c.policy.ResolveStatus(u, now)
	return Target{
		Status:      status,
		Profile:     c.policy.ProfileFor(status),
		List:        c.policy.ListFor(status),
		OtherLists:  c.policy.OtherLists(status),
		BindingType: c.policy.ResolveBindingType(u, status),
	}
}

// comment renders the managed comment for a user in a given status,
// optionally embedding the device IP.
func (c *Coordinator) comment(u *user.User, status access.Status, ip string) string {
	return access.NewComment(status, u.ID().String(), string(u.Phone()), u.Role().String(), ip, biztime.NowUTC()).Encode()
}

// ApplyGrantedBinding writes the policy-derived binding for an authorized
// device and clears any blocked leftovers for its IP.
func (c *Coordinator) ApplyGrantedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error {
	if !c.deviceCfg.IPBindingEnabled {
		return nil
	}

	target := c.ComputeTarget(u)
	comment := c.comment(u, target.Status, ip)

	if err := c.router.UpsertIPBinding(ctx, mac.String(), bindingTypeName(c.deviceCfg, target.BindingType), c.server, comment); err != nil {
		return err
	}

	if ip != "" {
		blockedList := c.policy.ListFor(access.StatusBlocked)
		if blockedList != "" && blockedList != target.List {
			if err := c.router.RemoveAddressListEntry(ctx, blockedList, ip); err != nil {
				return err
			}
		}
		if target.List != "" {
			if err := c.router.UpsertAddressListEntry(ctx, target.List, ip, comment); err != nil {
				return err
			}
		}
	}

	return c.upsertLease(ctx, mac, ip, comment)
}

// ApplyBlockedBinding writes a blocked binding and address-list entry for a
// device that must not pass, e.g. over the device limit or pending
// authorization.
func (c *Coordinator) ApplyBlockedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error {
	if !c.deviceCfg.IPBindingEnabled {
		return nil
	}

	comment := c.comment(u, access.StatusBlocked, ip)
	if err := c.router.UpsertIPBinding(ctx, mac.String(), bindingTypeName(c.deviceCfg, c.policy.BlockedBindingType), c.server, comment); err != nil {
		return err
	}

	if ip != "" {
		if list := c.policy.ListFor(access.StatusBlocked); list != "" {
			if err := c.router.UpsertAddressListEntry(ctx, list, ip, comment); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveDeviceFootprint removes every managed router object belonging to a
// device: its ip-binding, static lease, and address-list rows for its last
// known IP.
func (c *Coordinator) RemoveDeviceFootprint(ctx context.Context, d *device.Device) error {
	if err := c.router.RemoveManagedIPBinding(ctx, d.MAC().String()); err != nil {
		return err
	}
	if err := c.router.RemoveManagedLease(ctx, d.MAC().String()); err != nil {
		return err
	}

	ip := d.IPAddress()
	if ip == "" {
		return nil
	}
	for _, s := range access.AllStatuses {
		list := c.policy.ListFor(s)
		if list == "" {
			continue
		}
		if err := c.router.RemoveAddressListEntry(ctx, list, ip); err != nil {
			return err
		}
	}
	return nil
}

// SyncUserAddressList converges the user's IP onto the list for their
// current status. When the router cannot see a live session for the user,
// ipHint (typically from the ip-binding map or get_ip_by_mac) is applied
// with a direct upsert instead.
func (c *Coordinator) SyncUserAddressList(ctx context.Context, u *user.User, ipHint string) error {
	target := c.ComputeTarget(u)
	if target.List == "" {
		return nil
	}
	comment := c.comment(u, target.Status, "")

	err := c.router.SyncAddressListForUser(ctx, string(u.Phone()), target.List, comment, target.OtherLists)
	if err == nil {
		return nil
	}
	if !errors.IsKind(err, errors.KindNotFound) || ipHint == "" {
		return err
	}

	// No live session visible; fall back to the hinted IP.
	c.log.Debugw("address-list sync falling back to hinted ip",
		"user_id", u.ID(), "ip", ipHint)
	if err := c.router.CleanupAddressListsForIP(ctx, ipHint, target.List, target.OtherLists); err != nil {
		return err
	}
	return c.router.UpsertAddressListEntry(ctx, target.List, ipHint, c.comment(u, target.Status, ipHint))
}

// SetUserProfile moves the user's hotspot account to the profile for their
// current status.
func (c *Coordinator) SetUserProfile(ctx context.Context, u *user.User, profile string) error {
	return c.router.SetHotspotUserProfile(ctx, string(u.Phone()), profile)
}

func (c *Coordinator) upsertLease(ctx context.Context, mac device.MAC, ip, comment string) error {
	if ip == "" {
		return nil
	}
	return c.router.UpsertDhcpStaticLease(ctx, mac.String(), ip, comment)
}

// bindingTypeName maps a policy binding type onto the configured router
// type names, which may deviate from the defaults per deployment.
func bindingTypeName(cfg *sharedConfig.DeviceConfig, t access.BindingType) string {
	switch t {
	case access.BindingBlocked:
		if cfg.IPBindingTypeBlocked != "" {
			return cfg.IPBindingTypeBlocked
		}
	case access.BindingRegular:
		if cfg.IPBindingTypeAllowed != "" {
			return cfg.IPBindingTypeAllowed
		}
	}
	return strings.ToLower(t.String())
}
