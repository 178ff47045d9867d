package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/tidecms/tidecms/internal/database"
)

// Config represents the runtime configuration for the TideCMS platform core.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Auth         AuthConfig         `mapstructure:"auth"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for the platform catalog. The
// same credentials double as the runtime template for tenant databases; the
// admin pair, when set, is used only to create tenant databases during
// provisioning.
type DatabaseConfig struct {
	Driver        string            `mapstructure:"driver"`
	Path          string            `mapstructure:"path"`
	DSN           string            `mapstructure:"dsn"`
	Host          string            `mapstructure:"host"`
	Port          int               `mapstructure:"port"`
	User          string            `mapstructure:"user"`
	Password      string            `mapstructure:"password"`
	Name          string            `mapstructure:"name"`
	Options       map[string]string `mapstructure:"options"`
	AdminUser     string            `mapstructure:"admin_user"`
	AdminPassword string            `mapstructure:"admin_password"`
}

// ProvisioningConfig tunes the asynchronous tenant provisioning pipeline.
type ProvisioningConfig struct {
	QueueSize int           `mapstructure:"queue_size"`
	Sweeper   SweeperConfig `mapstructure:"sweeper"`
}

// SweeperConfig controls the optional retry job that re-enqueues suspended
// tenants.
type SweeperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// AuthConfig captures authentication-related settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// DatabaseConfig converts the loaded settings into the database package's
// connection configuration.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:        c.Database.Driver,
		Path:          c.Database.Path,
		DSN:           c.Database.DSN,
		Host:          c.Database.Host,
		Port:          c.Database.Port,
		User:          c.Database.User,
		Password:      c.Database.Password,
		Name:          c.Database.Name,
		Options:       c.Database.Options,
		AdminUser:     c.Database.AdminUser,
		AdminPassword: c.Database.AdminPassword,
	}
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("TIDECMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/tidecms.sqlite")
	v.SetDefault("database.name", "cms_platform")

	v.SetDefault("provisioning.queue_size", 16)
	v.SetDefault("provisioning.sweeper.enabled", false)
	v.SetDefault("provisioning.sweeper.schedule", "@every 5m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("auth.jwt.issuer", "tidecms")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
