package router

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/shared/errors"
)

// GetAddressListEntries returns every row of one firewall address list.
func (g *Gateway) GetAddressListEntries(ctx context.Context, list string) ([]AddressListEntry, error) {
	reply, err := g.run(ctx,
		"/ip/firewall/address-list/print",
		queryWord("list", list),
		"=.proplist=.id,address,list,comment,dynamic,timeout",
	)
	if err != nil {
		return nil, err
	}

	entries := make([]AddressListEntry, 0, len(reply.Re))
	for _, re := range reply.Re {
		entries = append(entries, AddressListEntry{
			ID:      re.Map[".id"],
			Address: re.Map["address"],
			List:    re.Map["list"],
			Comment: re.Map["comment"],
			Dynamic: parseBool(re.Map["dynamic"]),
			Timeout: re.Map["timeout"],
		})
	}
	return entries, nil
}

// UpsertAddressListEntry converges one address onto a list with the given
// comment. Duplicate static rows for the address are collapsed to one.
func (g *Gateway) UpsertAddressListEntry(ctx context.Context, list, address, comment string) error {
	reply, err := g.run(ctx,
		"/ip/firewall/address-list/print",
		queryWord("list", list),
		queryWord("address", address),
		"=.proplist=.id,comment,dynamic",
	)
	if err != nil {
		return err
	}

	var keepID string
	for _, re := range reply.Re {
		if parseBool(re.Map["dynamic"]) {
			continue
		}
		if keepID == "" {
			keepID = re.Map[".id"]
			continue
		}
		if err := g.removeAddressListByID(ctx, re.Map[".id"]); err != nil {
			return err
		}
	}

	if keepID != "" {
		_, err = g.runWithRetry(ctx,
			"/ip/firewall/address-list/set",
			attrWord(".id", keepID),
			attrWord("comment", comment),
		)
		return err
	}

	_, err = g.runWithRetry(ctx,
		"/ip/firewall/address-list/add",
		attrWord("list", list),
		attrWord("address", address),
		attrWord("comment", comment),
	)
	return err
}

// RemoveAddressListEntry removes every static row for the address on the
// list. Missing rows are not an error.
func (g *Gateway) RemoveAddressListEntry(ctx context.Context, list, address string) error {
	reply, err := g.run(ctx,
		"/ip/firewall/address-list/print",
		queryWord("list", list),
		queryWord("address", address),
		"=.proplist=.id,dynamic",
	)
	if err != nil {
		return err
	}
	for _, re := range reply.Re {
		if parseBool(re.Map["dynamic"]) {
			continue
		}
		if err := g.removeAddressListByID(ctx, re.Map[".id"]); err != nil {
			return err
		}
	}
	return nil
}

// SyncAddressListForUser places the user's current IP on exactly one list.
// The IP is resolved live from the router; membership on every other
// managed list is removed first so a status flip never leaves both lists
// populated.
func (g *Gateway) SyncAddressListForUser(ctx context.Context, username, targetList, comment string, otherLists []string) error {
	ip, err := g.resolveUserIP(ctx, username)
	if err != nil {
		return err
	}

	for _, list := range otherLists {
		if list == "" || list == targetList {
			continue
		}
		if err := g.removeManagedAddressRows(ctx, list, ip); err != nil {
			return err
		}
	}
	return g.UpsertAddressListEntry(ctx, targetList, ip, comment)
}

// CleanupAddressListsForIP removes managed rows for an IP from every list
// except keepList.
func (g *Gateway) CleanupAddressListsForIP(ctx context.Context, ip, keepList string, lists []string) error {
	for _, list := range lists {
		if list == "" || list == keepList {
			continue
		}
		if err := g.removeManagedAddressRows(ctx, list, ip); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) removeManagedAddressRows(ctx context.Context, list, address string) error {
	reply, err := g.run(ctx,
		"/ip/firewall/address-list/print",
		queryWord("list", list),
		queryWord("address", address),
		"=.proplist=.id,comment,dynamic",
	)
	if err != nil {
		return err
	}
	for _, re := range reply.Re {
		if parseBool(re.Map["dynamic"]) || !access.IsManaged(re.Map["comment"]) {
			continue
		}
		if err := g.removeAddressListByID(ctx, re.Map[".id"]); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) removeAddressListByID(ctx context.Context, id string) error {
	_, err := g.runWithRetry(ctx,
		"/ip/firewall/address-list/remove",
		attrWord(".id", id),
	)
	return err
}

// resolveUserIP finds the live IP of a hotspot user, preferring the active
// session table, then the most recent managed binding's MAC traced through
// host, arp and lease tables.
func (g *Gateway) resolveUserIP(ctx context.Context, username string) (string, error) {
	reply, err := g.run(ctx,
		"/ip/hotspot/active/print",
		queryWord("user", username),
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

	has, mac, err := g.HasHotspotIPBindingForUser(ctx, "", username, "")
	if err != nil {
		return "", err
	}
	if has && mac != "" {
		if ip, err := g.GetIPByMAC(ctx, mac); err == nil {
			return ip, nil
		}
	}
	return "", errors.NewNotFound("no live ip for hotspot user")
}
