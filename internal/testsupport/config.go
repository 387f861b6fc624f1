package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"tabshot/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Capture waits are shortened so pipeline tests run quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Capture.SettleDelayMS = 0
	cfgVal.Capture.ActivateSettleMS = 0
	cfgVal.Capture.LoadTimeoutMS = 200
	cfgVal.Capture.VisibleTimeoutMS = 200
	cfgVal.Capture.InPageTimeoutMS = 200

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithExternalDir points the external storage tier at a fresh temp directory.
func WithExternalDir() ConfigOption {
	return func(b *configBuilder) {
		dir := filepath.Join(b.baseDir, "external")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			b.t.Fatalf("create external dir: %v", err)
		}
		b.cfg.Storage.ExternalDir = dir
	}
}

// WithCache configures the embedded asset read cache.
func WithCache(entries int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Storage.CacheEntries = entries
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
