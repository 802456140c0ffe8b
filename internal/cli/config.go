package cli

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Wyydra/safemeet/internal/client"
)

const DefaultServerURL = "http://localhost:8080"

// Config is the participant CLI configuration.
type Config struct {
	ServerURL   string
	UserID      string
	UserName    string
	STUNServers []string
}

type fileConfig struct {
	ServerURL   string   `toml:"server_url"`
	UserID      string   `toml:"user_id"`
	UserName    string   `toml:"user_name"`
	STUNServers []string `toml:"stun_servers"`
}

// LoadConfig reads $XDG_CONFIG_HOME/safemeet/config.toml when present and
// applies SAFEMEET_* environment overrides on top.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerURL: DefaultServerURL,
		UserName:  defaultUserName(),
	}

	if path := configFilePath(); path != "" {
		var fc fileConfig
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, err
		}
		if fc.ServerURL != "" {
			cfg.ServerURL = fc.ServerURL
		}
		if fc.UserID != "" {
			cfg.UserID = fc.UserID
		}
		if fc.UserName != "" {
			cfg.UserName = fc.UserName
		}
		cfg.STUNServers = fc.STUNServers
	}

	applyEnvOverrides(cfg)

	if cfg.UserID == "" {
		cfg.UserID = defaultUserID(cfg.UserName)
	}
	if len(cfg.STUNServers) == 0 {
		cfg.STUNServers = client.DefaultSTUNServers
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SAFEMEET_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("SAFEMEET_USER_ID"); v != "" {
		cfg.UserID = v
	}
	if v := os.Getenv("SAFEMEET_USER_NAME"); v != "" {
		cfg.UserName = v
	}
}

func configFilePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "safemeet")
	} else if home, err := os.UserHomeDir(); err == nil {
		configDir = filepath.Join(home, ".config", "safemeet")
	} else {
		return ""
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

func defaultUserName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "guest"
}

// defaultUserID is stable per host and name so that a restarted CLI is
// recognised as the same participant.
func defaultUserID(name string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return strings.ToLower(name + "@" + host)
}
