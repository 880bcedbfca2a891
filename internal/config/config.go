// Package config provides configuration management for the Cisco IOT
// onboarding tool. It uses Viper to load settings from files and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration.
type Config struct {
	// ── nG1 connection ────────────────────────────────────────────────────────
	NG1Host   string `mapstructure:"ng1_host"`
	NG1Port   int    `mapstructure:"ng1_port"`
	NG1Scheme string `mapstructure:"ng1_scheme"` // "https" in production, "http" against the emulator
	// Either a session token (sent as the NSSESSIONID cookie) or a
	// username/password pair. The token wins when both are set.
	NG1Token           string `mapstructure:"ng1_token"`
	NG1Username        string `mapstructure:"ng1_username"`
	NG1Password        string `mapstructure:"ng1_password"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"` // nG1 ships self-signed certs
	RequestTimeoutSecs int    `mapstructure:"request_timeout_seconds"`

	// ── Topology ──────────────────────────────────────────────────────────────
	AllowedDeviceTypes []string `mapstructure:"allowed_device_types"`

	// ── Catalogs & registry ───────────────────────────────────────────────────
	// Empty catalog paths select the embedded defaults.
	DatacenterCatalog  string `mapstructure:"datacenter_catalog"`
	ApplicationCatalog string `mapstructure:"application_catalog"`
	RegistryDir        string `mapstructure:"registry_dir"`
	RegistryPrefix     string `mapstructure:"registry_prefix"`

	// ── Emulator ──────────────────────────────────────────────────────────────
	EmulatorHost      string `mapstructure:"emulator_host"`
	EmulatorPort      int    `mapstructure:"emulator_port"`
	EmulatorDBPath    string `mapstructure:"emulator_db_path"`
	EmulatorUser      string `mapstructure:"emulator_user"`
	EmulatorPass      string `mapstructure:"emulator_pass"`
	EmulatorJWTSecret string `mapstructure:"emulator_jwt_secret"`
}

// Load reads config from file (./ciscoiot.yaml or ~/.ciscoiot/ciscoiot.yaml)
// and falls back to defaults. Environment variables with prefix CIOT_
// override file values.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("ciscoiot")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.ciscoiot")
	if err := v.ReadInConfig(); err != nil {
		// config file is optional; ignore "not found" errors
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	return finish(v)
}

// LoadFile reads config from an explicit path, still honouring CIOT_ env vars.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return finish(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ng1_host", "localhost")
	v.SetDefault("ng1_port", 443)
	v.SetDefault("ng1_scheme", "https")
	v.SetDefault("ng1_token", "")
	v.SetDefault("ng1_username", "")
	v.SetDefault("ng1_password", "")
	v.SetDefault("insecure_skip_verify", true)
	v.SetDefault("request_timeout_seconds", 30)

	v.SetDefault("allowed_device_types", []string{"InfiniStreamNG", "vSTREAM"})

	v.SetDefault("datacenter_catalog", "")
	v.SetDefault("application_catalog", "")
	v.SetDefault("registry_dir", ".")
	v.SetDefault("registry_prefix", "CiscoIOT-Customers")

	v.SetDefault("emulator_host", "127.0.0.1")
	v.SetDefault("emulator_port", 8443)
	v.SetDefault("emulator_db_path", "ng1-emulator.db")
	v.SetDefault("emulator_user", "admin")
	v.SetDefault("emulator_pass", "admin")
	v.SetDefault("emulator_jwt_secret", "ciot-emulator-change-me")
}

func finish(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CIOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// BaseURL is the scheme://host:port prefix of every nG1 call.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("%s://%s:%d", c.NG1Scheme, c.NG1Host, c.NG1Port)
}

// RequestTimeout is the per-call HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSecs) * time.Second
}
