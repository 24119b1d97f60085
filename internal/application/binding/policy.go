package binding

import (
	"github.com/lpsaring/lpsaring/internal/domain/access"
	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
)

// NewPolicy assembles the access policy from configuration. Unknown status
// keys in the config maps are ignored; absent statuses simply resolve to no
// managed list or the active profile fallback.
func NewPolicy(
	accessCfg *sharedConfig.AccessConfig,
	deviceCfg *sharedConfig.DeviceConfig,
	quotaCfg *sharedConfig.QuotaConfig,
) access.Policy {
	profiles := make(map[access.Status]string, len(accessCfg.Profiles))
	lists := make(map[access.Status]string, len(accessCfg.AddressLists))
	for _, s := range access.AllStatuses {
		if name, ok := accessCfg.Profiles[s.String()]; ok {
			profiles[s] = name
		}
		if name, ok := accessCfg.AddressLists[s.String()]; ok {
			lists[s] = name
		}
	}

	allowed := access.BindingType(deviceCfg.IPBindingTypeAllowed)
	if allowed == "" {
		allowed = access.BindingRegular
	}
	blocked := access.BindingType(deviceCfg.IPBindingTypeBlocked)
	if blocked == "" {
		blocked = access.BindingBlocked
	}

	return access.Policy{
		FupThresholdPercent: quotaCfg.FupPercent,
		Profiles:            profiles,
		AddressLists:        lists,
		AllowedBindingType:  allowed,
		BlockedBindingType:  blocked,
	}
}
