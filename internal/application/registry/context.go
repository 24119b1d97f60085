package registry

import (
	"context"
	"net"

	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
)

// BindingContext is the canonicalized identity of a login attempt: which IP
// and MAC the system will act on, and where each came from.
type BindingContext struct {
	InputIP  string
	InputMAC string

	ResolvedIP string
	IPSource   string
	IPMessage  string

	ResolvedMAC string
	MACSource   string
	MACMessage  string
}

// MACTrusted reports whether the MAC came from the router rather than the
// client. Cross-user transfers require a trusted MAC.
func (b BindingContext) MACTrusted() bool {
	return b.MACSource == "router"
}

// ResolveBindingContext canonicalizes client-supplied IP and MAC. A client
// IP is only authoritative inside the configured hotspot CIDRs; a
// router-derived MAC always beats a client-supplied one, which is accepted
// only when explicitly configured.
func (s *Service) ResolveBindingContext(ctx context.Context, u *user.User, clientIP, clientMAC string) BindingContext {
	out := BindingContext{InputIP: clientIP, InputMAC: clientMAC}

	if clientIP != "" && s.ipAllowed(clientIP) {
		out.ResolvedIP = clientIP
		out.IPSource = "client"
		out.IPMessage = "client ip within hotspot range"
	} else if clientIP != "" {
		out.IPSource = "rejected"
		out.IPMessage = "client ip outside hotspot range"
	}

	// Router-derived MAC from the accepted IP wins over anything the
	// client claims.
	if out.ResolvedIP != "" {
		if mac, source, err := s.identity.FindMACByIP(ctx, out.ResolvedIP, false); err == nil && mac != "" {
			out.ResolvedMAC = mac
			out.MACSource = "router"
			out.MACMessage = source
		}
	}

	if out.ResolvedMAC == "" && clientMAC != "" && s.cfg.AcceptClientMAC {
		if mac, err := device.NormalizeMAC(clientMAC); err == nil && !mac.IsZero() {
			out.ResolvedMAC = mac.String()
			out.MACSource = "client"
			out.MACMessage = "client-supplied mac accepted by configuration"
		}
	}

	// With a trusted MAC but no usable IP, trace the IP back from the MAC.
	if out.ResolvedIP == "" && out.ResolvedMAC != "" {
		if ip, err := s.lookup.GetIPByMAC(ctx, out.ResolvedMAC); err == nil && ip != "" {
			out.ResolvedIP = ip
			out.IPSource = "router"
			out.IPMessage = "derived from mac"
		}
	}

	if out.ResolvedMAC == "" {
		out.MACSource = "none"
		out.MACMessage = "no mac could be resolved"
	}
	return out
}

func (s *Service) ipAllowed(ip string) bool {
	if len(s.clientNets) == 0 {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range s.clientNets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}
