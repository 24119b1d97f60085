package router

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
)

// UpsertDhcpStaticLease pins a MAC to an address as a static lease. Dynamic
// leases are converted with make-static first. Managed leases for the same
// MAC on other DHCP servers are removed so the client never holds two
// conflicting reservations.
func (g *Gateway) UpsertDhcpStaticLease(ctx context.Context, mac, address, comment string) error {
	if !g.cfg.DhcpStaticLeaseEnabled {
		return nil
	}
	normalized, err := device.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	leases, err := g.listLeases(ctx, queryWord("mac-address", normalized.String()))
	if err != nil {
		return err
	}

	server := g.cfg.DhcpLeaseServerName
	var keep *LeaseEntry
	for i := range leases {
		l := &leases[i]
		if keep == nil && (server == "" || l.Server == server || !g.cfg.PinLeaseServer) {
			keep = l
			continue
		}
		// Cross-server duplicate; only managed leases are cleared.
		if access.IsManaged(l.Comment) {
			g.log.Infow("removing duplicate managed lease",
				"mac", l.MAC, "server", l.Server)
			if err := g.removeLeaseByID(ctx, l.ID); err != nil {
				return err
			}
		}
	}

	if keep == nil {
		words := []string{
			"/ip/dhcp-server/lease/add",
			attrWord("mac-address", normalized.String()),
			attrWord("address", address),
			attrWord("comment", comment),
		}
		if server != "" && g.cfg.PinLeaseServer {
			words = append(words, attrWord("server", server))
		}
		_, err = g.runWithRetry(ctx, words...)
		return err
	}

	if keep.Dynamic {
		if _, err := g.runWithRetry(ctx,
			"/ip/dhcp-server/lease/make-static",
			attrWord(".id", keep.ID),
		); err != nil {
			return err
		}
	}

	words := []string{
		"/ip/dhcp-server/lease/set",
		attrWord(".id", keep.ID),
		attrWord("address", address),
		attrWord("comment", comment),
	}
	if server != "" && g.cfg.PinLeaseServer && keep.Server != server {
		words = append(words, attrWord("server", server))
	}
	_, err = g.runWithRetry(ctx, words...)
	return err
}

// RemoveManagedLease drops managed static leases for a MAC.
func (g *Gateway) RemoveManagedLease(ctx context.Context, mac string) error {
	normalized, err := device.NormalizeMAC(mac)
	if err != nil {
		return err
	}
	leases, err := g.listLeases(ctx, queryWord("mac-address", normalized.String()))
	if err != nil {
		return err
	}
	for _, l := range leases {
		if l.Dynamic || !access.IsManaged(l.Comment) {
			continue
		}
		if err := g.removeLeaseByID(ctx, l.ID); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) listLeases(ctx context.Context, filters ...string) ([]LeaseEntry, error) {
	words := append([]string{
		"/ip/dhcp-server/lease/print",
		"=.proplist=.id,mac-address,address,server,status,dynamic,comment",
	}, filters...)

	reply, err := g.run(ctx, words...)
	if err != nil {
		return nil, err
	}

	leases := make([]LeaseEntry, 0, len(reply.Re))
	for _, re := range reply.Re {
		lease := LeaseEntry{
			ID:      re.Map[".id"],
			Address: re.Map["address"],
			Server:  re.Map["server"],
			Status:  re.Map["status"],
			Dynamic: parseBool(re.Map["dynamic"]),
			Comment: re.Map["comment"],
		}
		if mac, err := device.NormalizeMAC(re.Map["mac-address"]); err == nil {
			lease.MAC = mac.String()
		}
		leases = append(leases, lease)
	}
	return leases, nil
}

func (g *Gateway) removeLeaseByID(ctx context.Context, id string) error {
	_, err := g.runWithRetry(ctx,
		"/ip/dhcp-server/lease/remove",
		attrWord(".id", id),
	)
	return err
}
