package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// UserConfig represents ~/.fogx/config.yaml.
type UserConfig struct {
	CurrentProfile string             `yaml:"current-profile"`
	Profiles       map[string]Profile `yaml:"profiles"`
}

// Profile represents a single named configuration profile.
type Profile struct {
	DatasetPath      string `yaml:"dataset-path,omitempty" json:"dataset_path,omitempty"`
	Source           string `yaml:"source,omitempty" json:"source,omitempty"`
	Version          string `yaml:"version,omitempty" json:"version,omitempty"`
	Output           string `yaml:"output,omitempty" json:"output,omitempty"`
	LogLevel         string `yaml:"log-level,omitempty" json:"log_level,omitempty"`
	GCSKeyFile       string `yaml:"gcs-key-file,omitempty" json:"gcs_key_file,omitempty"`
	AzureAccountName string `yaml:"azure-account-name,omitempty" json:"azure_account_name,omitempty"`
	AzureAccountKey  string `yaml:"azure-account-key,omitempty" json:"azure_account_key,omitempty"`
}

// ActiveProfile returns the profile to use based on the override or current-profile.
func (c *UserConfig) ActiveProfile(override string) Profile {
	name := c.CurrentProfile
	if override != "" {
		name = override
	}
	if p, ok := c.Profiles[name]; ok {
		return p
	}
	return Profile{}
}

// ConfigDir returns the path to ~/.fogx/.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".fogx")
}

// ConfigPath returns the path to ~/.fogx/config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// LoadUserConfig reads ~/.fogx/config.yaml.
func LoadUserConfig() (*UserConfig, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg UserConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return &cfg, nil
}

// SaveUserConfig writes ~/.fogx/config.yaml.
func SaveUserConfig(cfg *UserConfig) error {
	if err := os.MkdirAll(ConfigDir(), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(ConfigPath(), data, 0o600)
}

// loadDatasetList reads a YAML file holding either a list of dataset names
// or a mapping with a "datasets" list.
func loadDatasetList(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a user flag
	if err != nil {
		return nil, fmt.Errorf("read datasets file: %w", err)
	}
	var names []string
	if err := yaml.Unmarshal(data, &names); err == nil {
		return names, nil
	}
	var doc struct {
		Datasets []string `yaml:"datasets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse datasets file %s: %w", path, err)
	}
	return doc.Datasets, nil
}
