package audit

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/lpsaring/lpsaring/internal/application/binding"
	"github.com/lpsaring/lpsaring/internal/domain/access"
	"github.com/lpsaring/lpsaring/internal/domain/device"
	"github.com/lpsaring/lpsaring/internal/domain/user"
	"github.com/lpsaring/lpsaring/internal/infrastructure/metrics"
	"github.com/lpsaring/lpsaring/internal/infrastructure/router"
	"github.com/lpsaring/lpsaring/internal/shared/biztime"
	"github.com/lpsaring/lpsaring/internal/shared/logger"
)

// Mismatch kinds.
const (
	KindBindingMissing        = "ip_binding_missing"
	KindBindingWrongType      = "ip_binding_wrong_type"
	KindAddressListMissing    = "address_list_missing"
	KindAddressListWrong      = "address_list_wrong_status"
	KindAddressListMultiState = "address_list_multi_status"
)

// Remediation action names.
const (
	ActionUpsertBinding   = "upsert_ip_binding_expected_type"
	ActionSyncAddressList = "sync_address_list_for_single_user"
	ActionCleanupLists    = "cleanup_extra_address_lists_for_ip"
	ActionResolveIP       = "resolve_ip_from_host_or_binding"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Action is one ordered remediation step for a mismatch.
type Action struct {
	Name        string
	Severity    Severity
	KeepList    string
	RemoveLists []string
}

// Item is one detected divergence between DB expectation and router state.
type Item struct {
	UserID        uuid.UUID
	Phone         string
	MAC           string
	IP            string
	Kind          string
	ExpectedType  string
	ObservedType  string
	ExpectedList  string
	ObservedLists []string
	Actions       []Action

	user   *user.User
	devMAC device.MAC
	target binding.Target
}

// Report is the result of one audit run.
type Report struct {
	GeneratedAt  time.Time
	UsersChecked int
	Items        []Item
}

// RouterState is the read slice of the gateway the auditor snapshots, plus
// the two targeted calls apply mode needs.
type RouterState interface {
	GetHotspotIPBindingUserMap(ctx context.Context) (map[string]router.BindingEntry, error)
	GetAddressListEntries(ctx context.Context, list string) ([]router.AddressListEntry, error)
	GetIPByMAC(ctx context.Context, mac string) (string, error)
	CleanupAddressListsForIP(ctx context.Context, ip, keepList string, lists []string) error
}

// Coordinator is the slice of the binding coordinator apply mode drives.
type Coordinator interface {
	Policy() access.Policy
	ComputeTarget(u *user.User) binding.Target
	ApplyGrantedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error
	ApplyBlockedBinding(ctx context.Context, u *user.User, mac device.MAC, ip string) error
	SyncUserAddressList(ctx context.Context, u *user.User, ipHint string) error
}

// Auditor diffs the expected router state of every quota-managed user
// against a single snapshot of the router's actual state.
type Auditor struct {
	users       user.Repository
	devices     device.Repository
	coordinator Coordinator
	state       RouterState
	metrics     *metrics.Metrics
	log         logger.Interface
	now         func() time.Time
}

func NewAuditor(
	users user.Repository,
	devices device.Repository,
	coordinator Coordinator,
	state RouterState,
	m *metrics.Metrics,
	log logger.Interface,
) *Auditor {
	return &Auditor{
		users:       users,
		devices:     devices,
		coordinator: coordinator,
		state:       state,
		metrics:     m,
		log:         log.Named("parity_audit"),
		now:         biztime.NowUTC,
	}
}

// managedLists returns every distinct address list the policy can place a
// user in, sorted for stable reports.
func (a *Auditor) managedLists() []string {
	seen := map[string]bool{}
	var lists []string
	for _, l := range a.coordinator.Policy().AddressLists {
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		lists = append(lists, l)
	}
	sort.Strings(lists)
	return lists
}

// BuildReport collects the router snapshot once and walks every managed
// user. It never writes to the router.
func (a *Auditor) BuildReport(ctx context.Context) (*Report, error) {
	report := &Report{GeneratedAt: a.now()}

	users, err := a.users.ListQuotaManaged(ctx)
	if err != nil {
		return nil, err
	}
	report.UsersChecked = len(users)
	if len(users) == 0 {
		return report, nil
	}

	bindings, err := a.state.GetHotspotIPBindingUserMap(ctx)
	if err != nil {
		return nil, err
	}

	lists := a.managedLists()
	ipLists := make(map[string][]string)
	for _, list := range lists {
		entries, err := a.state.GetAddressListEntries(ctx, list)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Dynamic {
				continue
			}
			ipLists[e.Address] = append(ipLists[e.Address], list)
		}
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		items, err := a.checkUser(ctx, u, bindings, ipLists)
		if err != nil {
			a.log.Warnw("user audit failed", "user_id", u.ID(), "error", err)
			continue
		}
		report.Items = append(report.Items, items...)
	}

	if n := len(report.Items); n > 0 {
		a.metrics.AuditMismatches.Add(float64(n))
		a.log.Infow("parity audit found mismatches",
			"users", report.UsersChecked, "mismatches", n)
	} else {
		a.log.Debugw("parity audit clean", "users", report.UsersChecked)
	}
	return report, nil
}

func (a *Auditor) checkUser(
	ctx context.Context,
	u *user.User,
	bindings map[string]router.BindingEntry,
	ipLists map[string][]string,
) ([]Item, error) {
	target := a.coordinator.ComputeTarget(u)
	userDevices, err := a.devices.ListByUser(ctx, u.ID())
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, d := range userDevices {
		mac := d.MAC().String()
		entry, bound := bindings[mac]

		ip := d.IPAddress()
		if bound && entry.Address != "" {
			ip = entry.Address
		}

		base := Item{
			UserID:       u.ID(),
			Phone:        string(u.Phone()),
			MAC:          mac,
			IP:           ip,
			ExpectedType: target.BindingType.String(),
			ExpectedList: target.List,
			user:         u,
			devMAC:       d.MAC(),
			target:       target,
		}

		if !bound {
			item := base
			item.Kind = KindBindingMissing
			item.Actions = a.bindingActions(item)
			items = append(items, item)
		} else if entry.Type != target.BindingType.String() || entry.Disabled {
			item := base
			item.Kind = KindBindingWrongType
			item.ObservedType = entry.Type
			item.Actions = a.bindingActions(item)
			items = append(items, item)
		}

		if target.List == "" {
			continue
		}
		if item, mismatched := a.checkAddressLists(base, ip, ipLists); mismatched {
			items = append(items, item)
		}
	}
	return items, nil
}

func (a *Auditor) bindingActions(item Item) []Action {
	actions := []Action{{Name: ActionUpsertBinding, Severity: SeverityHigh}}
	if item.IP == "" {
		actions = append(actions, Action{Name: ActionResolveIP, Severity: SeverityMedium})
	}
	return actions
}

func (a *Auditor) checkAddressLists(base Item, ip string, ipLists map[string][]string) (Item, bool) {
	if ip == "" {
		item := base
		item.Kind = KindAddressListMissing
		item.Actions = []Action{
			{Name: ActionResolveIP, Severity: SeverityMedium},
			{Name: ActionSyncAddressList, Severity: SeverityMedium},
		}
		return item, true
	}

	observed := ipLists[ip]
	switch {
	case len(observed) == 0:
		item := base
		item.Kind = KindAddressListMissing
		item.Actions = []Action{{Name: ActionSyncAddressList, Severity: SeverityHigh}}
		return item, true

	case len(observed) > 1:
		item := base
		item.Kind = KindAddressListMultiState
		item.ObservedLists = append([]string(nil), observed...)
		var remove []string
		for _, l := range observed {
			if l != base.ExpectedList {
				remove = append(remove, l)
			}
		}
		item.Actions = []Action{{
			Name:        ActionCleanupLists,
			Severity:    SeverityHigh,
			KeepList:    base.ExpectedList,
			RemoveLists: remove,
		}}
		return item, true

	case observed[0] != base.ExpectedList:
		item := base
		item.Kind = KindAddressListWrong
		item.ObservedLists = append([]string(nil), observed...)
		item.Actions = []Action{{Name: ActionSyncAddressList, Severity: SeverityHigh}}
		return item, true
	}
	return Item{}, false
}

// Run builds a report and, when apply is set, remediates it. This is the
// scheduled entry point.
func (a *Auditor) Run(ctx context.Context, apply bool) error {
	report, err := a.BuildReport(ctx)
	if err != nil {
		return err
	}
	if !apply || len(report.Items) == 0 {
		return nil
	}
	return a.Apply(ctx, report)
}

// Apply executes each item's action plan in order. A failed action stops
// the remaining plan for that user; other users still run.
func (a *Auditor) Apply(ctx context.Context, report *Report) error {
	failed := make(map[uuid.UUID]bool)

	for i := range report.Items {
		item := &report.Items[i]
		if failed[item.UserID] {
			continue
		}
		if err := a.applyItem(ctx, item); err != nil {
			failed[item.UserID] = true
			a.log.Errorw("remediation failed, skipping user's remaining actions",
				"user_id", item.UserID, "mac", item.MAC, "kind", item.Kind, "error", err)
		}
	}
	if len(failed) > 0 {
		a.log.Warnw("parity apply finished with failures", "failed_users", len(failed))
	}
	return nil
}

func (a *Auditor) applyItem(ctx context.Context, item *Item) error {
	for _, action := range item.Actions {
		switch action.Name {
		case ActionResolveIP:
			ip, err := a.state.GetIPByMAC(ctx, item.MAC)
			if err != nil {
				return err
			}
			item.IP = ip

		case ActionUpsertBinding:
			var err error
			if item.target.BindingType == access.BindingBlocked {
				err = a.coordinator.ApplyBlockedBinding(ctx, item.user, item.devMAC, item.IP)
			} else {
				err = a.coordinator.ApplyGrantedBinding(ctx, item.user, item.devMAC, item.IP)
			}
			if err != nil {
				return err
			}

		case ActionSyncAddressList:
			if err := a.coordinator.SyncUserAddressList(ctx, item.user, item.IP); err != nil {
				return err
			}

		case ActionCleanupLists:
			if item.IP == "" {
				continue
			}
			if err := a.state.CleanupAddressListsForIP(ctx, item.IP, action.KeepList, a.managedLists()); err != nil {
				return err
			}
		}
	}
	a.log.Infow("remediated parity mismatch",
		"user_id", item.UserID, "mac", item.MAC, "kind", item.Kind)
	return nil
}
