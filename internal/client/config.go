package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// config is the persisted client configuration. Chat history is deliberately
// not part of it; channels listed here are re-joined empty on startup.
type config struct {
	Nick         string        `json:"nick,omitempty"`
	Channels     []string      `json:"channels"`
	BlockedUsers []BlockedUser `json:"blocked_users"`
	// PrivateKey is only set by the file fallback of the keystore, on
	// platforms without a usable OS keyring.
	PrivateKey string `json:"private_key,omitempty"`

	path string `json:"-"`
}

func appConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not get user config directory: %w", err)
	}
	return filepath.Join(configDir, "geochat"), nil
}

func loadConfig() (*config, error) {
	dir, err := appConfigDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(dir, "config.json")

	conf := &config{path: configPath}

	file, err := os.Open(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return conf, conf.save()
		}
		return nil, fmt.Errorf("could not open config file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(conf); err != nil {
		return nil, fmt.Errorf("could not decode config file: %w", err)
	}
	conf.path = configPath

	return conf, nil
}

// save writes the current configuration back to the file.
func (c *config) save() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	file, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("could not create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("could not encode config file: %w", err)
	}

	return nil
}
