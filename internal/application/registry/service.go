package registry

import (
	"context"
	"net"
	"sort"
	"time"

	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// User-facing messages surfaced by the captive portal.
const (
	MsgDeviceLimitReached = "Limit perangkat tercapai"
	MsgDevicePendingAuth  = "Perangkat belum diotorisasi"
	MsgSkip               = "skip"
	MsgOK                 = "OK"
)

// Service is the device registry: the single owner of Device rows. It
// enforces the per-user device cap, explicit authorization, and cross-user
// MAC transfer rules.
type Service struct {
	devices  device.Repository
	identity IdentityResolver
	lookup   RouterLookup
	bindings BindingApplier
	cfg      *sharedConfig.DeviceConfig
	log      logger.Interface

	clientNets []*net.IPNet
}

func NewService(
	devices device.Repository,
	identity IdentityResolver,
	lookup RouterLookup,
	bindings BindingApplier,
	cfg *sharedConfig.DeviceConfig,
	log logger.Interface,
) *Service {
	var nets []*net.IPNet
	for _, cidr := range cfg.ClientIPCIDRs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			log.Warnw("ignoring invalid client cidr", "cidr", cidr, "error", err)
			continue
		}
		nets = append(nets, n)
	}
	return &Service{
		devices:    devices,
		identity:   identity,
		lookup:     lookup,
		bindings:   bindings,
		cfg:        cfg,
		log:        log.Named("registry"),
		clientNets: nets,
	}
}

// RegisterOrUpdateDevice upserts the (user, MAC) device row, resolving the
// MAC from the IP when not supplied. The returned message is user-facing.
func (s *Service) RegisterOrUpdateDevice(ctx context.Context, u *user.User, ip, userAgent, macStr string, allowReplace bool) (string, *device.Device, error) {
	mac, err := s.resolveMAC(ctx, ip, macStr)
	if err != nil {
		if s.cfg.IPBindingFailOpen {
			s.log.Debugw("mac unresolved, fail-open skip", "user_id", u.ID(), "ip", ip)
			return MsgSkip, nil, nil
		}
		return "", nil, err
	}

	// A MAC resolved through the router chain is trusted; a caller-supplied
	// one is not and can never trigger a cross-user transfer on its own.
	macTrusted := macStr == ""
	if err := s.checkCrossUserOwnership(ctx, u, mac, false, macTrusted); err != nil {
		return "", nil, err
	}

	now := biztime.NowUTC()

	existing, err := s.devices.GetByUserAndMAC(ctx, u.ID(), mac)
	if err == nil {
		existing.Touch(ip, userAgent, now)
		if err := s.devices.Update(ctx, existing); err != nil {
			return "", nil, err
		}
		return MsgOK, existing, nil
	}
	if !errors.IsNotFound(err) {
		return "", nil, err
	}

	if err := s.enforceDeviceCap(ctx, u, mac, ip, allowReplace, now); err != nil {
		if errors.IsKind(err, errors.KindDeviceLimit) {
			return MsgDeviceLimitReached, nil, err
		}
		return "", nil, err
	}

	d, err := device.NewDevice(u.ID(), mac, ip, userAgent, now)
	if err != nil {
		return "", nil, errors.NewValidation(err.Error())
	}
	if err := s.devices.Create(ctx, d); err != nil {
		return "", nil, err
	}

	s.log.Infow("device registered",
		"user_id", u.ID(), "mac", mac.String(), "ip", ip)
	return MsgOK, d, nil
}

// AuthorizeDevice grants a pending device and writes its router binding.
func (s *Service) AuthorizeDevice(ctx context.Context, u *user.User, d *device.Device) error {
	now := biztime.NowUTC()
	d.Authorize(now)
	if err := s.devices.Update(ctx, d); err != nil {
		return err
	}
	return s.bindings.ApplyGrantedBinding(ctx, u, d.MAC(), d.IPAddress())
}

// RevokeDevice clears the device's authorization and removes its entire
// router footprint.
func (s *Service) RevokeDevice(ctx context.Context, u *user.User, d *device.Device) error {
	d.Revoke(biztime.NowUTC())
	if err := s.devices.Update(ctx, d); err != nil {
		return err
	}
	s.log.Infow("device revoked", "user_id", u.ID(), "mac", d.MAC().String())
	return s.bindings.RemoveDeviceFootprint(ctx, d)
}

// CleanupStaleDevices deletes devices unseen past the configured stale
// window, clearing their router footprint first. Returns how many were
// removed.
func (s *Service) CleanupStaleDevices(ctx context.Context) (int, error) {
	if s.cfg.StaleDays <= 0 {
		return 0, nil
	}
	cutoff := biztime.NowUTC().AddDate(0, 0, -s.cfg.StaleDays)
	stale, err := s.devices.ListStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, d := range stale {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if err := s.bindings.RemoveDeviceFootprint(ctx, d); err != nil {
			s.log.Warnw("stale device footprint removal failed",
				"mac", d.MAC().String(), "error", err)
			continue
		}
		if err := s.devices.Delete(ctx, d.ID()); err != nil {
			s.log.Warnw("stale device delete failed",
				"device_id", d.ID(), "error", err)
			continue
		}
		removed++
		s.log.Infow("stale device removed",
			"user_id", d.UserID(), "mac", d.MAC().String(), "last_seen", d.LastSeen())
	}
	return removed, nil
}

// resolveMAC normalizes a supplied MAC or derives one from the IP.
func (s *Service) resolveMAC(ctx context.Context, ip, macStr string) (device.MAC, error) {
	if macStr != "" {
		mac, err := device.NormalizeMAC(macStr)
		if err != nil {
			return "", errors.NewValidation("invalid mac address")
		}
		return mac, nil
	}
	if ip == "" {
		return "", errors.NewIdentityUnresolved("no ip or mac supplied")
	}

	resolved, _, err := s.identity.FindMACByIP(ctx, ip, false)
	if err != nil {
		return "", err
	}
	if resolved == "" {
		return "", errors.NewIdentityUnresolved("no mac found for ip")
	}
	return device.MAC(resolved), nil
}

// checkCrossUserOwnership rejects a MAC already authorized under another
// user unless a transfer is explicitly allowed. The configuration flag only
// permits the transfer for a router-trusted MAC.
func (s *Service) checkCrossUserOwnership(ctx context.Context, u *user.User, mac device.MAC, allowTransfer, macTrusted bool) error {
	owner, err := s.devices.GetAuthorizedOwner(ctx, mac, u.ID())
	if errors.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if allowTransfer || (s.cfg.AllowCrossUserTransfer && macTrusted) {
		s.log.Infow("transferring device to new owner",
			"mac", mac.String(), "from_user", owner.UserID(), "to_user", u.ID())
		if err := s.bindings.RemoveDeviceFootprint(ctx, owner); err != nil {
			return err
		}
		return s.devices.Delete(ctx, owner.ID())
	}
	return errors.NewConflict("perangkat terdaftar pada pengguna lain")
}

// enforceDeviceCap makes room for one more device or fails with the limit
// error, writing a blocked binding for the attempting MAC. Stale devices
// are pruned first; auto-replace then evicts the least recently seen one.
func (s *Service) enforceDeviceCap(ctx context.Context, u *user.User, mac device.MAC, ip string, allowReplace bool, now time.Time) error {
	max := s.cfg.MaxDevicesPerUser
	if max <= 0 {
		return nil
	}

	list, err := s.devices.ListByUser(ctx, u.ID())
	if err != nil {
		return err
	}
	if len(list) < max {
		return nil
	}

	kept := list[:0]
	for _, d := range list {
		if d.IsStale(now, s.cfg.StaleDays) {
			s.log.Infow("pruning stale device",
				"user_id", u.ID(), "mac", d.MAC().String(), "last_seen", d.LastSeen())
			if err := s.bindings.RemoveDeviceFootprint(ctx, d); err != nil {
				return err
			}
			if err := s.devices.Delete(ctx, d.ID()); err != nil {
				return err
			}
			continue
		}
		kept = append(kept, d)
	}

	if len(kept) >= max && allowReplace && s.cfg.AutoReplaceEnabled {
		sort.Slice(kept, func(i, j int) bool {
			return kept[i].LastSeen().Before(kept[j].LastSeen())
		})
		victim := kept[0]
		s.log.Infow("auto-replacing least recent device",
			"user_id", u.ID(), "mac", victim.MAC().String())
		if err := s.bindings.RemoveDeviceFootprint(ctx, victim); err != nil {
			return err
		}
		if err := s.devices.Delete(ctx, victim.ID()); err != nil {
			return err
		}
		kept = kept[1:]
	}

	if len(kept) >= max {
		if err := s.bindings.ApplyBlockedBinding(ctx, u, mac, ip); err != nil {
			s.log.Warnw("failed to write blocked binding for over-limit device",
				"user_id", u.ID(), "mac", mac.String(), "error", err)
		}
		return errors.NewDeviceLimit(MsgDeviceLimitReached)
	}
	return nil
}
