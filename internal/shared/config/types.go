package config

import (
	"fmt"
	"time"
)

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`

	// Repetitive-error suppression applied at the router gateway boundary.
	SuppressionThreshold     int `mapstructure:"suppression_threshold"`
	SuppressionWindowSeconds int `mapstructure:"suppression_window_seconds"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// MikrotikConfig covers the RouterOS connection, pool sizing and lookup behavior.
type MikrotikConfig struct {
	Host                  string `mapstructure:"host"`
	Username              string `mapstructure:"username"`
	Password              string `mapstructure:"password"`
	Port                  int    `mapstructure:"port"`
	UseSSL                bool   `mapstructure:"use_ssl"`
	PlaintextLogin        bool   `mapstructure:"plaintext_login"`
	ConnectTimeoutSeconds int    `mapstructure:"connect_timeout_seconds"`
	ReadTimeoutSeconds    int    `mapstructure:"read_timeout_seconds"`
	PoolSize              int    `mapstructure:"pool_size"`
	LookupParallel        bool   `mapstructure:"lookup_parallel"`
	// AsyncMode is a legacy alias for LookupParallel kept for older
	// config files; either flag enables the parallel lookup chain.
	AsyncMode bool `mapstructure:"async_mode"`
	MaxErrors             int    `mapstructure:"max_errors"`
	CooldownBaseSeconds   int    `mapstructure:"cooldown_base_seconds"`
	CooldownMaxSeconds    int    `mapstructure:"cooldown_max_seconds"`

	DhcpStaticLeaseEnabled bool   `mapstructure:"dhcp_static_lease_enabled"`
	DhcpLeaseServerName    string `mapstructure:"dhcp_lease_server_name"`
	// PinLeaseServer pins managed static leases to DhcpLeaseServerName; when
	// false the lease floats and only cross-server duplicates are cleared.
	PinLeaseServer bool `mapstructure:"pin_lease_server"`
}

func (m *MikrotikConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", m.Host, m.Port)
}

func (m *MikrotikConfig) ConnectTimeout() time.Duration {
	return time.Duration(m.ConnectTimeoutSeconds) * time.Second
}

func (m *MikrotikConfig) ReadTimeout() time.Duration {
	return time.Duration(m.ReadTimeoutSeconds) * time.Second
}

// IdentityCacheConfig controls the layered IP-to-MAC cache.
type IdentityCacheConfig struct {
	PositiveGraceSeconds   int     `mapstructure:"positive_grace_seconds"`
	NegativeTTLSeconds     int     `mapstructure:"negative_ttl_seconds"`
	ArpTTLSeconds          int     `mapstructure:"arp_ttl_seconds"`
	LookupCacheTTLSeconds  int     `mapstructure:"lookup_cache_ttl_seconds"`
	GraceMinSeconds        int     `mapstructure:"grace_min_seconds"`
	GraceAdaptDecaySeconds int     `mapstructure:"grace_adapt_decay_seconds"`
	GraceForceWindowSecs   int     `mapstructure:"grace_force_window_seconds"`
	GraceMaxEntries        int     `mapstructure:"grace_max_entries"`
	LatencyBucketsMs       []int64 `mapstructure:"latency_buckets_ms"`
}

// DeviceConfig controls device-limit enforcement and binding trust.
type DeviceConfig struct {
	MaxDevicesPerUser      int      `mapstructure:"max_devices_per_user"`
	RequireExplicitAuth    bool     `mapstructure:"require_explicit_auth"`
	AutoReplaceEnabled     bool     `mapstructure:"auto_replace_enabled"`
	StaleDays              int      `mapstructure:"stale_days"`
	ClientIPCIDRs          []string `mapstructure:"client_ip_cidrs"`
	AcceptClientMAC        bool     `mapstructure:"accept_client_mac"`
	IPBindingEnabled       bool     `mapstructure:"ip_binding_enabled"`
	IPBindingTypeAllowed   string   `mapstructure:"ip_binding_type_allowed"`
	IPBindingTypeBlocked   string   `mapstructure:"ip_binding_type_blocked"`
	IPBindingFailOpen      bool     `mapstructure:"ip_binding_fail_open"`
	AllowCrossUserTransfer bool     `mapstructure:"allow_cross_user_transfer"`
}

// AccessConfig names the managed router objects per access status.
type AccessConfig struct {
	AddressLists  map[string]string `mapstructure:"address_lists"`
	Profiles      map[string]string `mapstructure:"profiles"`
	HotspotServer string            `mapstructure:"hotspot_server"`
}

type QuotaConfig struct {
	FupPercent          float64   `mapstructure:"fup_percent"`
	NotifyPercentages   []float64 `mapstructure:"notify_percentages"`
	ExpiryNotifyDays    []int     `mapstructure:"expiry_notify_days"`
	SyncIntervalMinutes int       `mapstructure:"sync_interval_minutes"`
	SyncLockTTLSeconds  int       `mapstructure:"sync_lock_ttl_seconds"`
}

// AuthConfig governs refresh-token issuance and rotation.
type AuthConfig struct {
	RefreshTokenTTLHours int `mapstructure:"refresh_token_ttl_hours"`
}

type WorkerConfig struct {
	WarmMacEnabled         bool   `mapstructure:"warm_mac_enabled"`
	WarmMacBatchSize       int    `mapstructure:"warm_mac_batch_size"`
	WarmMacIntervalMinutes int    `mapstructure:"warm_mac_interval_minutes"`
	AuditApply             bool   `mapstructure:"audit_apply"`
	Timezone               string `mapstructure:"timezone"`
	MetricsAddr            string `mapstructure:"metrics_addr"`
}
