package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/lpsaring/lpsaring/internal/shared/config"
)

type Config struct {
	Database sharedConfig.DatabaseConfig      `mapstructure:"database"`
	Logger   sharedConfig.LoggerConfig        `mapstructure:"logger"`
	Redis    sharedConfig.RedisConfig         `mapstructure:"redis"`
	Mikrotik sharedConfig.MikrotikConfig      `mapstructure:"mikrotik"`
	Identity sharedConfig.IdentityCacheConfig `mapstructure:"identity"`
	Device   sharedConfig.DeviceConfig        `mapstructure:"device"`
	Access   sharedConfig.AccessConfig        `mapstructure:"access"`
	Quota    sharedConfig.QuotaConfig         `mapstructure:"quota"`
	Auth     sharedConfig.AuthConfig          `mapstructure:"auth"`
	Worker   sharedConfig.WorkerConfig        `mapstructure:"worker"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../configs")
	viper.AddConfigPath("../../configs")

	viper.SetEnvPrefix("LPSARING")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// The whole surface has defaults; a missing file is not fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &config
	appConfigMu.Unlock()

	return &config, nil
}

// Get returns the loaded configuration.
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.username", "root")
	viper.SetDefault("database.password", "password")
	viper.SetDefault("database.database", "lpsaring")
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_open_conns", 100)
	viper.SetDefault("database.conn_max_lifetime", 60)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.suppression_threshold", 5)
	viper.SetDefault("logger.suppression_window_seconds", 60)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Router connection defaults
	viper.SetDefault("mikrotik.host", "192.168.88.1")
	viper.SetDefault("mikrotik.username", "admin")
	viper.SetDefault("mikrotik.password", "")
	viper.SetDefault("mikrotik.port", 8728)
	viper.SetDefault("mikrotik.use_ssl", false)
	viper.SetDefault("mikrotik.plaintext_login", true)
	viper.SetDefault("mikrotik.connect_timeout_seconds", 8)
	viper.SetDefault("mikrotik.read_timeout_seconds", 12)
	viper.SetDefault("mikrotik.pool_size", 2)
	viper.SetDefault("mikrotik.lookup_parallel", false)
	viper.SetDefault("mikrotik.async_mode", false)
	viper.SetDefault("mikrotik.max_errors", 5)
	viper.SetDefault("mikrotik.cooldown_base_seconds", 10)
	viper.SetDefault("mikrotik.cooldown_max_seconds", 300)
	viper.SetDefault("mikrotik.dhcp_static_lease_enabled", false)
	viper.SetDefault("mikrotik.dhcp_lease_server_name", "")
	viper.SetDefault("mikrotik.pin_lease_server", true)

	// Identity cache defaults
	viper.SetDefault("identity.positive_grace_seconds", 300)
	viper.SetDefault("identity.negative_ttl_seconds", 20)
	viper.SetDefault("identity.arp_ttl_seconds", 180)
	viper.SetDefault("identity.lookup_cache_ttl_seconds", 300)
	viper.SetDefault("identity.grace_min_seconds", 30)
	viper.SetDefault("identity.grace_adapt_decay_seconds", 30)
	viper.SetDefault("identity.grace_force_window_seconds", 300)
	viper.SetDefault("identity.grace_max_entries", 2000)
	viper.SetDefault("identity.latency_buckets_ms", []int64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000})

	// Device policy defaults
	viper.SetDefault("device.max_devices_per_user", 3)
	viper.SetDefault("device.require_explicit_auth", false)
	viper.SetDefault("device.auto_replace_enabled", true)
	viper.SetDefault("device.stale_days", 30)
	viper.SetDefault("device.client_ip_cidrs", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"})
	viper.SetDefault("device.accept_client_mac", false)
	viper.SetDefault("device.ip_binding_enabled", true)
	viper.SetDefault("device.ip_binding_type_allowed", "regular")
	viper.SetDefault("device.ip_binding_type_blocked", "blocked")
	viper.SetDefault("device.ip_binding_fail_open", true)
	viper.SetDefault("device.allow_cross_user_transfer", false)

	// Managed router object names
	viper.SetDefault("access.hotspot_server", "")
	viper.SetDefault("access.address_lists", map[string]string{
		"active":    "hotspot-active",
		"fup":       "hotspot-fup",
		"habis":     "hotspot-habis",
		"expired":   "hotspot-expired",
		"inactive":  "hotspot-inactive",
		"blocked":   "hotspot-blocked",
		"unlimited": "hotspot-unlimited",
	})
	viper.SetDefault("access.profiles", map[string]string{
		"active":    "AKTIF",
		"fup":       "FUP",
		"habis":     "HABIS",
		"expired":   "HABIS",
		"inactive":  "INACTIVE",
		"blocked":   "BLOKIR",
		"unlimited": "UNLIMITED",
	})

	// Quota defaults
	viper.SetDefault("quota.fup_percent", 80.0)
	viper.SetDefault("quota.notify_percentages", []float64{20, 10, 5})
	viper.SetDefault("quota.expiry_notify_days", []int{7, 3, 1})
	viper.SetDefault("quota.sync_interval_minutes", 5)
	viper.SetDefault("quota.sync_lock_ttl_seconds", 60)

	// Auth defaults
	viper.SetDefault("auth.refresh_token_ttl_hours", 720)

	// Worker defaults
	viper.SetDefault("worker.warm_mac_enabled", true)
	viper.SetDefault("worker.warm_mac_batch_size", 50)
	viper.SetDefault("worker.warm_mac_interval_minutes", 5)
	viper.SetDefault("worker.audit_apply", false)
	viper.SetDefault("worker.timezone", "Asia/Jakarta")
	viper.SetDefault("worker.metrics_addr", ":9090")
}
