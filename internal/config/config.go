// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config for the telemetry agent
type Config struct {
	// Endpoint is the base URL of the collector; the daily report goes to
	// <endpoint>/connections/<developer_id>/report.
	Endpoint string `yaml:"endpoint"`
	// MirrorEndpoint is an optional secondary sink, attempted fire-and-forget
	// before the primary send.
	MirrorEndpoint string `yaml:"mirror_endpoint"`
	Token          string `yaml:"-"` // from env only

	DeveloperID string `yaml:"developer_id"`
	Email       string `yaml:"email"`
	Name        string `yaml:"name"`
	Hostname    string `yaml:"hostname"`

	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`

	StateDir string `yaml:"state_dir"`
	HomeDir  string `yaml:"home_dir"`

	// GitAuthor optionally filters git activity to commits whose author
	// name or email contains this string.
	GitAuthor string `yaml:"git_author"`
	// ScanRoots are the directories searched for repositories. Defaults to
	// the home directory.
	ScanRoots []string `yaml:"scan_roots"`
	ScanDepth int      `yaml:"scan_depth"`

	// AuditCommand is the OS command-audit query used as a fallback history
	// source for shells without per-entry timestamps. Empty disables it.
	AuditCommand []string `yaml:"audit_command"`

	MaxSendAttempts  int           `yaml:"max_send_attempts"`
	CollectorTimeout time.Duration `yaml:"collector_timeout"`
	TLSSkipVerify    bool          `yaml:"tls_skip_verify"`
}

// Load reads the agent config from a YAML file with env overrides and fills
// in defaults. A minted developer id is written back to the file so the host
// keeps a stable identity across runs.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Env overrides
	if token := os.Getenv("DEVTELEMETRY_TOKEN"); token != "" {
		cfg.Token = token
	}
	if endpoint := os.Getenv("DEVTELEMETRY_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = endpoint
	}
	if hostname := os.Getenv("DEVTELEMETRY_HOSTNAME"); hostname != "" {
		cfg.Hostname = hostname
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	// First run on this host: mint a stable id and persist it.
	if cfg.DeveloperID == "" {
		cfg.DeveloperID = uuid.NewString()
		if err := writeBackDeveloperID(path, data, cfg.DeveloperID); err != nil {
			return nil, fmt.Errorf("persist developer id: %w", err)
		}
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Hostname == "" {
		cfg.Hostname, _ = os.Hostname()
	}
	if cfg.HomeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.HomeDir = home
	}
	if cfg.StateDir == "" {
		cfg.StateDir = filepath.Join(cfg.HomeDir, ".devtelemetry")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if len(cfg.ScanRoots) == 0 {
		cfg.ScanRoots = []string{cfg.HomeDir}
	}
	if cfg.ScanDepth <= 0 {
		cfg.ScanDepth = 3
	}
	if cfg.MaxSendAttempts <= 0 {
		cfg.MaxSendAttempts = 4
	}
	if cfg.CollectorTimeout <= 0 {
		cfg.CollectorTimeout = 30 * time.Second
	}
	return nil
}

// writeBackDeveloperID rewrites the config file with the minted id while
// preserving every other configured value.
func writeBackDeveloperID(path string, original []byte, id string) error {
	var raw map[string]any
	if err := yaml.Unmarshal(original, &raw); err != nil {
		return err
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["developer_id"] = id

	out, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}
