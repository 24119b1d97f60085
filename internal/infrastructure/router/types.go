package router

// HostUsage is an aggregated /ip/hotspot/host row keyed by MAC.
type HostUsage struct {
	MAC        string
	Address    string
	Server     string
	BytesIn    uint64
	BytesOut   uint64
	Authorized bool
	Bypassed   bool
}

// Total returns combined upload and download bytes.
func (h HostUsage) Total() uint64 {
	return h.BytesIn + h.BytesOut
}

// BindingEntry is a /ip/hotspot/ip-binding row.
type BindingEntry struct {
	ID       string
	MAC      string
	Address  string
	Type     string
	Server   string
	Comment  string
	Disabled bool
	// UserID is extracted from the managed comment's uid/user/user_id token.
	UserID string
}

// AddressListEntry is a /ip/firewall/address-list row.
type AddressListEntry struct {
	ID      string
	Address string
	List    string
	Comment string
	Dynamic bool
	Timeout string
}

// LeaseEntry is a /ip/dhcp-server/lease row.
type LeaseEntry struct {
	ID      string
	MAC     string
	Address string
	Server  string
	Status  string
	Dynamic bool
	Comment string
}

// HotspotUserSpec describes a managed /ip/hotspot/user entry.
type HotspotUserSpec struct {
	Username   string
	Password   string
	Profile    string
	Server     string
	Comment    string
	LimitBytes uint64
}
