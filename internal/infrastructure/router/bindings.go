package router

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
)

// GetHotspotIPBindingUserMap returns ip-binding rows keyed by MAC. The
// managed comment's user token is extracted when present.
func (g *Gateway) GetHotspotIPBindingUserMap(ctx context.Context) (map[string]BindingEntry, error) {
	entries, err := g.listBindings(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]BindingEntry, len(entries))
	for _, e := range entries {
		if e.MAC == "" {
			continue
		}
		// Prefer managed entries when a MAC has duplicates.
		if prev, ok := out[e.MAC]; ok && access.IsManaged(prev.Comment) && !access.IsManaged(e.Comment) {
			continue
		}
		out[e.MAC] = e
	}
	return out, nil
}

func (g *Gateway) listBindings(ctx context.Context, filters ...string) ([]BindingEntry, error) {
	words := append([]string{
		"/ip/hotspot/ip-binding/print",
		"=.proplist=.id,mac-address,address,type,server,comment,disabled",
	}, filters...)

	reply, err := g.run(ctx, words...)
	if err != nil {
		return nil, err
	}

	entries := make([]BindingEntry, 0, len(reply.Re))
	for _, re := range reply.Re {
		entry := BindingEntry{
			ID:       re.Map[".id"],
			Address:  re.Map["address"],
			Type:     re.Map["type"],
			Server:   re.Map["server"],
			Comment:  re.Map["comment"],
			Disabled: parseBool(re.Map["disabled"]),
		}
		if mac, err := device.NormalizeMAC(re.Map["mac-address"]); err == nil && !mac.IsZero() {
			entry.MAC = mac.String()
		}
		entry.UserID = access.ExtractToken(entry.Comment, "uid", "user", "user_id")
		entries = append(entries, entry)
	}
	return entries, nil
}

// UpsertIPBinding converges the managed binding for a MAC to the desired
// type and comment. The client address is never written into the binding,
// so roaming clients keep working. A type change recreates the entry since
// RouterOS applies type only at creation for some versions.
func (g *Gateway) UpsertIPBinding(ctx context.Context, mac, bindingType, server, comment string) error {
	normalized, err := device.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	entries, err := g.listBindings(ctx, queryWord("mac-address", normalized.String()))
	if err != nil {
		return err
	}

	var keep *BindingEntry
	for i := range entries {
		e := &entries[i]
		switch {
		case keep == nil && access.IsManaged(e.Comment):
			keep = e
		case keep == nil && !access.IsManaged(e.Comment) && len(entries) == 1:
			// A single unmanaged entry is adopted rather than duplicated.
			keep = e
		default:
			if access.IsManaged(e.Comment) {
				g.log.Warnw("removing duplicate managed ip binding",
					"mac", e.MAC, "id", e.ID)
				if err := g.removeBindingByID(ctx, e.ID); err != nil {
					return err
				}
			}
		}
	}

	if keep != nil && keep.Type != bindingType {
		if err := g.removeBindingByID(ctx, keep.ID); err != nil {
			return err
		}
		keep = nil
	}

	if keep != nil {
		words := []string{
			"/ip/hotspot/ip-binding/set",
			attrWord(".id", keep.ID),
			attrWord("comment", comment),
			attrWord("disabled", "no"),
		}
		if server != "" && keep.Server != server {
			words = append(words, attrWord("server", server))
		}
		_, err = g.runWithRetry(ctx, words...)
		return err
	}

	words := []string{
		"/ip/hotspot/ip-binding/add",
		attrWord("mac-address", normalized.String()),
		attrWord("type", bindingType),
		attrWord("comment", comment),
	}
	if server != "" {
		words = append(words, attrWord("server", server))
	}
	_, err = g.runWithRetry(ctx, words...)
	return err
}

// RemoveManagedIPBinding removes every managed binding for a MAC. Unmanaged
// entries are left alone.
func (g *Gateway) RemoveManagedIPBinding(ctx context.Context, mac string) error {
	normalized, err := device.NormalizeMAC(mac)
	if err != nil {
		return err
	}

	entries, err := g.listBindings(ctx, queryWord("mac-address", normalized.String()))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !access.IsManaged(e.Comment) {
			continue
		}
		if err := g.removeBindingByID(ctx, e.ID); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) removeBindingByID(ctx context.Context, id string) error {
	_, err := g.runWithRetry(ctx,
		"/ip/hotspot/ip-binding/remove",
		attrWord(".id", id),
	)
	return err
}

// HasHotspotIPBindingForUser reports whether any managed binding belongs to
// the user, matched by uid token or by the phone token against the hotspot
// username. With a non-empty mac only that MAC's bindings are considered.
func (g *Gateway) HasHotspotIPBindingForUser(ctx context.Context, userID, username, mac string) (bool, string, error) {
	filters := []string{}
	if mac != "" {
		normalized, err := device.NormalizeMAC(mac)
		if err != nil {
			return false, "", err
		}
		filters = append(filters, queryWord("mac-address", normalized.String()))
	}

	entries, err := g.listBindings(ctx, filters...)
	if err != nil {
		return false, "", err
	}

	for _, e := range entries {
		if !access.IsManaged(e.Comment) {
			continue
		}
		if userID != "" && e.UserID == userID {
			return true, e.MAC, nil
		}
		if username != "" && access.ExtractToken(e.Comment, "phone") == username {
			return true, e.MAC, nil
		}
	}
	return false, "", nil
}
