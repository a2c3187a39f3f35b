package puffin

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/scomesh/puffin/frame"
	"github.com/scomesh/puffin/history"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config enumerates the options from §6 Configuration.
type Config struct {
	ScopesOn         bool   `json:"scopes_on"`
	MaxRecent        int    `json:"max_recent"`
	MaxSlow          int    `json:"max_slow"`
	CompressionLevel int    `json:"compression_level"`
	ArchiveDir       string `json:"archive_dir,omitempty"`
}

// Configure applies cfg: the scopes-on flag, the lz4 compression level, and,
// since max_recent/max_slow are frame view constructor parameters rather
// than runtime-adjustable fields, a fresh GlobalFrameView sized accordingly,
// swapped in atomically for the previous one (§6).
func Configure(cfg Config) {
	SetScopesOn(cfg.ScopesOn)
	if cfg.CompressionLevel > 0 {
		frame.SetCompressionLevel(cfg.CompressionLevel)
	}
	resetGlobalView(history.Options{
		MaxRecent:  cfg.MaxRecent,
		MaxSlow:    cfg.MaxSlow,
		ArchiveDir: cfg.ArchiveDir,
	})
}

// ConfigureJSON unmarshals b as a Config via jsoniter and applies it.
func ConfigureJSON(b []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrap(err, "puffin: decode config")
	}
	Configure(cfg)
	return cfg, nil
}
