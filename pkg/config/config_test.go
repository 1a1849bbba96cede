package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoadAppliesDefaults verifies that an almost empty file is completed by normalize.
func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Extraction.SampleRate != 16000 {
		t.Fatalf("sample rate = %d, want 16000", cfg.Extraction.SampleRate)
	}
	if cfg.Extraction.MaxChunkDuration != 5*time.Minute {
		t.Fatalf("max chunk = %s, want 5m", cfg.Extraction.MaxChunkDuration)
	}
	if cfg.Translation.MaxTextLength != 5000 || cfg.Translation.CacheCapacity != 1000 {
		t.Fatalf("translation defaults = %+v", cfg.Translation)
	}
	if cfg.Scheduler.SoftTimeout >= cfg.Scheduler.HardTimeout {
		t.Fatalf("soft timeout %s must be below hard timeout %s", cfg.Scheduler.SoftTimeout, cfg.Scheduler.HardTimeout)
	}
	if cfg.Result.Expiration != 24*time.Hour {
		t.Fatalf("result expiration = %s", cfg.Result.Expiration)
	}
}

// TestLoadProviders verifies provider list parsing and per-provider defaults.
func TestLoadProviders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
translation:
  providers:
    - kind: libretranslate
      endpoint: http://localhost:5000
      priority: 1
    - name: backup
      kind: mymemory
      priority: 2
      enabled: false
      rate_limit:
        requests: 5
        per: 10s
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Translation.Providers) != 2 {
		t.Fatalf("providers = %d, want 2", len(cfg.Translation.Providers))
	}
	first := cfg.Translation.Providers[0]
	if first.Name != "libretranslate" || !first.IsEnabled() || first.RateLimit.Requests != 2 {
		t.Fatalf("first provider = %+v", first)
	}
	second := cfg.Translation.Providers[1]
	if second.IsEnabled() || second.RateLimit.Per != 10*time.Second {
		t.Fatalf("second provider = %+v", second)
	}
}

// TestPoolSizeIsBounded verifies the worker pool stays in the 1..8 range.
func TestPoolSizeIsBounded(t *testing.T) {
	cfg := &Config{Worker: WorkerConfig{PoolSize: 64}}
	cfg.normalize()
	if cfg.Worker.PoolSize != 8 {
		t.Fatalf("pool size = %d, want 8", cfg.Worker.PoolSize)
	}
}
