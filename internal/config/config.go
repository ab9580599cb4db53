// Package config loads the optional godb.config.json file that sets
// buffer pool capacity, file-cache sizes, and the data directory root.
// The CLI's --config flag names the file; no flag overrides the values
// it sets.
package config

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"
)

// Config holds every knob the CLI can source from godb.config.json.
type Config struct {
	DataDir        string `json:"data_dir"`
	BufferPoolSize int    `json:"buffer_pool_size"`
	FileCacheSize  int    `json:"file_cache_size"`
	BatchFormat    string `json:"batch_format"` // "text" (default) or "json"
}

// Default returns the configuration godb runs with when no config file
// is present.
func Default() Config {
	return Config{
		DataDir:        "./data",
		BufferPoolSize: 6000,
		FileCacheSize:  10,
		BatchFormat:    "text",
	}
}

// Load reads path and overlays it onto Default(). A missing file is not
// an error: it just means the defaults stand.
func Load(path string) (Config, error) {
	cfg := Default()
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %q: %w", path, err)
	}
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, for tooling that wants to
// materialize the defaults into a starter file.
func Save(path string, cfg Config) error {
	buf, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}
