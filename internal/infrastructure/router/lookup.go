package router

import (
	"context"
	"strings"

	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

// HostMACByIP resolves a MAC from the hotspot host table.
func (g *Gateway) HostMACByIP(ctx context.Context, ip string) (string, error) {
	reply, err := g.run(ctx,
		"/ip/hotspot/host/print",
		queryWord("address", ip),
		"=.proplist=mac-address",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if mac, err := device.NormalizeMAC(re.Map["mac-address"]); err == nil && !mac.IsZero() {
			return mac.String(), nil
		}
	}

	// Post-NAT hotspot addresses show up in to-address instead.
	reply, err = g.run(ctx,
		"/ip/hotspot/host/print",
		queryWord("to-address", ip),
		"=.proplist=mac-address",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if mac, err := device.NormalizeMAC(re.Map["mac-address"]); err == nil && !mac.IsZero() {
			return mac.String(), nil
		}
	}
	return "", errors.NewNotFound("no hotspot host for ip")
}

// LeaseMACByIP resolves a MAC from the DHCP lease table, accepting only
// bound or waiting leases.
func (g *Gateway) LeaseMACByIP(ctx context.Context, ip string) (string, error) {
	reply, err := g.run(ctx,
		"/ip/dhcp-server/lease/print",
		queryWord("address", ip),
		"=.proplist=mac-address,status",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		status := strings.ToLower(re.Map["status"])
		if status != "bound" && status != "waiting" {
			continue
		}
		if mac, err := device.NormalizeMAC(re.Map["mac-address"]); err == nil && !mac.IsZero() {
			return mac.String(), nil
		}
	}
	return "", errors.NewNotFound("no dhcp lease for ip")
}

// ArpMACByIP resolves a MAC from the ARP table.
func (g *Gateway) ArpMACByIP(ctx context.Context, ip string) (string, error) {
	reply, err := g.run(ctx,
		"/ip/arp/print",
		queryWord("address", ip),
		"=.proplist=mac-address",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if mac, err := device.NormalizeMAC(re.Map["mac-address"]); err == nil && !mac.IsZero() {
			return mac.String(), nil
		}
	}
	return "", errors.NewNotFound("no arp entry for ip")
}

// GetMACByIP chains host, lease and arp lookups in order of freshness.
func (g *Gateway) GetMACByIP(ctx context.Context, ip string) (string, error) {
	if mac, err := g.HostMACByIP(ctx, ip); err == nil {
		return mac, nil
	} else if errors.IsKind(err, errors.KindTransientRouter) {
		return "", err
	}
	if mac, err := g.LeaseMACByIP(ctx, ip); err == nil {
		return mac, nil
	} else if errors.IsKind(err, errors.KindTransientRouter) {
		return "", err
	}
	return g.ArpMACByIP(ctx, ip)
}

// GetIPByMAC resolves the current IP of a MAC, trying hotspot host, arp and
// finally bound DHCP leases.
func (g *Gateway) GetIPByMAC(ctx context.Context, mac string) (string, error) {
	normalized, err := device.NormalizeMAC(mac)
	if err != nil {
		return "", errors.NewValidation("invalid mac address")
	}

	reply, err := g.run(ctx,
		"/ip/hotspot/host/print",
		queryWord("mac-address", normalized.String()),
		"=.proplist=address,to-address",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if addr := re.Map["to-address"]; addr != "" {
			return addr, nil
		}
		if addr := re.Map["address"]; addr != "" {
			return addr, nil
		}
	}

	reply, err = g.run(ctx,
		"/ip/arp/print",
		queryWord("mac-address", normalized.String()),
		"=.proplist=address",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if addr := re.Map["address"]; addr != "" {
			return addr, nil
		}
	}

	reply, err = g.run(ctx,
		"/ip/dhcp-server/lease/print",
		queryWord("mac-address", normalized.String()),
		"=.proplist=address,status",
	)
	if err != nil {
		return "", err
	}
	for _, re := range reply.Re {
		if strings.ToLower(re.Map["status"]) != "bound" {
			continue
		}
		if addr := re.Map["address"]; addr != "" {
			return addr, nil
		}
	}
	return "", errors.NewNotFound("no ip for mac")
}
