package router

import (
	"context"

	"github.com/lpsaring/lpsaring/internal/domain/device"
)

// GetHotspotHostUsageMap returns one aggregated row per MAC from the
// hotspot host table. Rows whose MAC does not normalize are skipped; rows
// sharing a MAC have their byte counters summed.
func (g *Gateway) GetHotspotHostUsageMap(ctx context.Context) (map[string]HostUsage, error) {
	reply, err := g.run(ctx,
		"/ip/hotspot/host/print",
		"=.proplist=mac-address,address,to-address,server,bytes-in,bytes-out,authorized,bypassed",
	)
	if err != nil {
		return nil, err
	}

	out := make(map[string]HostUsage, len(reply.Re))
	for _, re := range reply.Re {
		mac, err := device.NormalizeMAC(re.Map["mac-address"])
		if err != nil || mac.IsZero() {
			continue
		}

		addr := re.Map["to-address"]
		if addr == "" {
			addr = re.Map["address"]
		}

		row := out[mac.String()]
		row.MAC = mac.String()
		if row.Address == "" {
			row.Address = addr
		}
		if row.Server == "" {
			row.Server = re.Map["server"]
		}
		row.BytesIn += parseUint(re.Map["bytes-in"])
		row.BytesOut += parseUint(re.Map["bytes-out"])
		row.Authorized = row.Authorized || parseBool(re.Map["authorized"])
		row.Bypassed = row.Bypassed || parseBool(re.Map["bypassed"])
		out[mac.String()] = row
	}
	return out, nil
}
