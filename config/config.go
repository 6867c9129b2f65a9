package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ambufleet/dispatch/api"
	"github.com/ambufleet/dispatch/core/dispatch"
	"github.com/ambufleet/dispatch/core/metrics"
	"github.com/ambufleet/dispatch/core/reconcile"
	"github.com/ambufleet/dispatch/infra/notify"
	"github.com/ambufleet/dispatch/infra/postgres"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Storage   string           `json:"storage"`
	API       api.Config       `json:"api"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Reconcile reconcile.Config `json:"reconcile"`
	Metrics   metrics.Config   `json:"metrics"`
	Notify    notify.Config    `json:"notify"`
	Postgres  postgres.Config  `json:"postgres"`
}

// Load reads the config file at path (yaml or json, by extension) and applies
// AMBU_-prefixed environment overrides ("__" separates nesting levels, so
// AMBU_DISPATCH__DAY_END_HOUR targets dispatch.day_end_hour).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides. The callback emits dot-separated keys,
	// so the provider delimiter must be "." for them to unflatten into the
	// nested sections before the merge.
	if err := k.Load(env.Provider("AMBU_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "ambu_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies defaults to every section.
func (c *Config) SetDefaults() {
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	c.API.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Reconcile.SetDefaults()
	c.Metrics.SetDefaults()
	c.Notify.SetDefaults()
	c.Postgres.SetDefaults()
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage)
	}
	if c.Storage == StoragePostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres storage selected but postgres.dsn is empty")
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	return c.Reconcile.Validate()
}
