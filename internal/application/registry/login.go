package registry

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

// ApplyDeviceBindingForLogin runs the full login-side binding workflow:
// canonicalize identity, register the device, then either write the
// policy-derived binding or a blocked one when explicit authorization is
// still pending. It returns the user-facing message and the resolved IP.
func (s *Service) ApplyDeviceBindingForLogin(
	ctx context.Context,
	u *user.User,
	clientIP, userAgent, clientMAC string,
	bypassExplicitAuth, allowCrossUserTransfer bool,
) (string, string, error) {
	bc := s.ResolveBindingContext(ctx, u, clientIP, clientMAC)
	if bc.ResolvedMAC == "" {
		if s.cfg.IPBindingFailOpen {
			return MsgSkip, bc.ResolvedIP, nil
		}
		return "", bc.ResolvedIP, errors.NewIdentityUnresolved(bc.MACMessage)
	}

	mac := device.MAC(bc.ResolvedMAC)
	if (allowCrossUserTransfer || s.cfg.AllowCrossUserTransfer) && bc.MACTrusted() {
		if err := s.checkCrossUserOwnership(ctx, u, mac, true, true); err != nil {
			return "", bc.ResolvedIP, err
		}
	}

	msg, d, err := s.RegisterOrUpdateDevice(ctx, u, bc.ResolvedIP, userAgent, bc.ResolvedMAC, true)
	if err != nil {
		return msg, bc.ResolvedIP, err
	}
	if d == nil {
		return msg, bc.ResolvedIP, nil
	}

	if s.cfg.RequireExplicitAuth && !d.IsAuthorized() && !bypassExplicitAuth {
		if err := s.bindings.ApplyBlockedBinding(ctx, u, d.MAC(), bc.ResolvedIP); err != nil {
			return "", bc.ResolvedIP, err
		}
		return MsgDevicePendingAuth, bc.ResolvedIP, errors.NewDevicePendingAuth(MsgDevicePendingAuth)
	}

	if err := s.bindings.ApplyGrantedBinding(ctx, u, d.MAC(), bc.ResolvedIP); err != nil {
		return "", bc.ResolvedIP, err
	}

	if !d.IsAuthorized() {
		d.Authorize(biztime.NowUTC())
		if err := s.devices.Update(ctx, d); err != nil {
			return "", bc.ResolvedIP, err
		}
	}
	return MsgOK, bc.ResolvedIP, nil
}
