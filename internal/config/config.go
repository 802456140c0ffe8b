// Package config loads server settings from settings.toml and SAFEMEET_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

type Config struct {
	Bind  string
	Debug bool
	Store StoreConfig
	Relay RelayConfig
	Meet  MeetConfig
}

type StoreConfig struct {
	Driver    string
	BadgerDir string
	DSN       string
}

type RelayConfig struct {
	WriteTimeout    time.Duration
	MaxMessageBytes int64
	PingInterval    time.Duration
}

type MeetConfig struct {
	CodePrefix    string
	MaxLifetime   time.Duration
	SweepSchedule string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bind", ":8080")
	v.SetDefault("debug", false)
	v.SetDefault("store.driver", StoreMemory)
	v.SetDefault("store.badger_dir", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("relay.write_timeout", "5s")
	v.SetDefault("relay.max_message_bytes", 64*1024)
	v.SetDefault("relay.ping_interval", "30s")
	v.SetDefault("meet.code_prefix", "sb-")
	v.SetDefault("meet.max_lifetime", "0s")
	v.SetDefault("meet.sweep_schedule", "@every 10m")
}

// Load reads settings.toml from the given directories (default "." and
// ".."). A missing file is not an error.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(paths) == 0 {
		paths = []string{".", ".."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("settings")
	v.SetConfigType("toml")

	v.SetEnvPrefix("SAFEMEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read settings: %w", err)
		}
	}

	cfg := Config{
		Bind:  v.GetString("bind"),
		Debug: v.GetBool("debug"),
		Store: StoreConfig{
			Driver:    strings.ToLower(v.GetString("store.driver")),
			BadgerDir: v.GetString("store.badger_dir"),
			DSN:       v.GetString("store.dsn"),
		},
		Relay: RelayConfig{
			WriteTimeout:    v.GetDuration("relay.write_timeout"),
			MaxMessageBytes: v.GetInt64("relay.max_message_bytes"),
			PingInterval:    v.GetDuration("relay.ping_interval"),
		},
		Meet: MeetConfig{
			CodePrefix:    v.GetString("meet.code_prefix"),
			MaxLifetime:   v.GetDuration("meet.max_lifetime"),
			SweepSchedule: v.GetString("meet.sweep_schedule"),
		},
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Store.Driver {
	case StoreMemory, StoreBadger:
	case StorePostgres:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Meet.CodePrefix == "" {
		return errors.New("meet.code_prefix must not be empty")
	}
	if c.Relay.MaxMessageBytes <= 0 {
		return errors.New("relay.max_message_bytes must be positive")
	}
	if c.Relay.WriteTimeout <= 0 {
		return errors.New("relay.write_timeout must be positive")
	}
	if c.Relay.PingInterval <= 0 {
		return errors.New("relay.ping_interval must be positive")
	}
	return nil
}
