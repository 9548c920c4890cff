package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/davidahmann/ledgerproof/internal/crypto"
	"github.com/davidahmann/ledgerproof/internal/ledger"
)

type Config struct {
	ListenAddr string        `yaml:"listen_addr"`
	Auth       AuthConfig    `yaml:"auth"`
	Verify     VerifyConfig  `yaml:"verify"`
	Batch      BatchConfig   `yaml:"batch"`
	Log        LogConfig     `yaml:"log"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Audit      AuditConfig   `yaml:"audit"`
}

type AuthConfig struct {
	DevToken string `yaml:"dev_token"`
}

type VerifyConfig struct {
	CheckValidity     bool     `yaml:"check_validity"`
	AllowedAlgorithms []string `yaml:"allowed_algorithms"`
}

type BatchConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// AuditConfig selects where the gateway records verification outcomes.
// An empty Driver disables the log.
type AuditConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Capacity int    `yaml:"capacity"`
}

const (
	AuditMemory   = "memory"
	AuditSQLite   = "sqlite"
	AuditPostgres = "postgres"
)

var logLevels = map[string]struct{}{"": {}, "debug": {}, "info": {}, "warn": {}, "error": {}}

func Load(path string) (Config, error) {
	// #nosec G304 -- path is operator-provided config path.
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	expanded := os.ExpandEnv(string(raw))
	expanded = strings.ReplaceAll(expanded, "\r\n", "\n")

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	for _, alg := range c.Verify.AllowedAlgorithms {
		if !knownAlgorithm(alg) {
			return fmt.Errorf("verify.allowed_algorithms: unknown algorithm %q", alg)
		}
	}

	if c.Batch.Concurrency < 0 {
		return fmt.Errorf("batch.concurrency must not be negative")
	}
	if c.Batch.Timeout != "" {
		d, err := time.ParseDuration(c.Batch.Timeout)
		if err != nil {
			return fmt.Errorf("batch.timeout: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("batch.timeout must not be negative")
		}
	}

	if _, ok := logLevels[strings.ToLower(c.Log.Level)]; !ok {
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}

	switch c.Audit.Driver {
	case "", AuditMemory:
	case AuditSQLite, AuditPostgres:
		if strings.TrimSpace(c.Audit.DSN) == "" {
			return fmt.Errorf("audit.dsn is required for driver %s", c.Audit.Driver)
		}
	default:
		return fmt.Errorf("audit.driver: unknown driver %q", c.Audit.Driver)
	}
	if c.Audit.Capacity < 0 {
		return fmt.Errorf("audit.capacity must not be negative")
	}

	return nil
}

// LedgerOptions translates the verify section into verification options.
func (c Config) LedgerOptions() ledger.Options {
	return ledger.Options{
		Cert: ledger.CertOptions{
			CheckValidity: c.Verify.CheckValidity,
			NewVerifier:   crypto.AllowOnly(crypto.NewVerifier, c.Verify.AllowedAlgorithms),
		},
	}
}

// BatchTimeout returns the configured batch deadline, or 0 for none.
func (c Config) BatchTimeout() time.Duration {
	if c.Batch.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Batch.Timeout)
	if err != nil {
		return 0
	}
	return d
}

func knownAlgorithm(name string) bool {
	for _, alg := range crypto.Algorithms {
		if alg == name {
			return true
		}
	}
	return false
}
