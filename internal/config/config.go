// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// Mode is the operating mode the config was built from: strict or dev.
	Mode string `json:"mode"`

	// ExternalOrigin is the public origin (scheme + host + port) for this
	// instance. Notification action URLs are built from it.
	// Example: "https://localhost:9300"
	ExternalOrigin string `json:"external_origin"`

	// ExternalBasePath is the optional path prefix for app endpoints.
	// Example: "/prepshare" or empty string
	ExternalBasePath string `json:"external_base_path"`

	// ListenAddr is the address to listen on.
	// Example: ":9300"
	ListenAddr string `json:"listen_addr"`

	// Server holds server-level settings.
	Server ServerConfig `json:"server"`

	// Store holds persistence settings.
	Store StoreConfig `json:"store"`

	// Logging holds logging settings.
	Logging LoggingConfig `json:"logging"`

	// RateLimit holds rate limiting settings.
	RateLimit RateLimitConfig `json:"ratelimit"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is the list of CIDR ranges allowed to set
	// X-Forwarded-For headers.
	TrustedProxies []string `json:"trusted_proxies"`

	// BootstrapAdmin holds credentials for the admin user created at startup.
	BootstrapAdmin BootstrapAdmin `json:"bootstrap_admin"`
}

// BootstrapAdmin holds bootstrap admin credentials.
type BootstrapAdmin struct {
	Username string `json:"username"`
	Password string `json:"-"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// Driver is the store driver name: memory or sqlite.
	Driver string `json:"driver"`

	// DataDir is the directory for data files (sqlite db).
	DataDir string `json:"data_dir"`

	// Drivers carries driver-specific options, decoded per driver.
	Drivers map[string]any `json:"drivers,omitempty"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `json:"level"`
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	// LoginPerMinute is the login attempt budget per client IP per minute.
	LoginPerMinute int `json:"login_per_minute"`

	// LoginBurst is the extra burst allowance above the per-minute budget.
	LoginBurst int `json:"login_burst"`
}

// Redacted returns a copy of the config safe for logging.
func (c *Config) Redacted() Config {
	out := *c
	if out.Server.BootstrapAdmin.Password != "" {
		out.Server.BootstrapAdmin.Password = "[REDACTED]"
	}
	return out
}
