package access

// Status is a user's access state as reflected in managed router objects.
type Status string

const (
	StatusActive    Status = "active"
	StatusFup       Status = "fup"
	StatusHabis     Status = "habis"
	StatusExpired   Status = "expired"
	StatusInactive  Status = "inactive"
	StatusBlocked   Status = "blocked"
	StatusUnlimited Status = "unlimited"
)

func (s Status) String() string {
	return string(s)
}

var AllStatuses = []Status{
	StatusActive,
	StatusFup,
	StatusHabis,
	StatusExpired,
	StatusInactive,
	StatusBlocked,
	StatusUnlimited,
}

// BindingType is the router ip-binding type applied to a MAC.
type BindingType string

const (
	BindingRegular  BindingType = "regular"
	BindingBypassed BindingType = "bypassed"
	BindingBlocked  BindingType = "blocked"
)

func (b BindingType) String() string {
	return string(b)
}
