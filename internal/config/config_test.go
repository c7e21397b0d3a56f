package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := []byte(`
server:
  port: "9999"
database:
  driver: sqlite
  path: ` + filepath.Join(dir, "test.db") + `
simulator:
  tick_millis: 100
`)
	if err := os.WriteFile(path, yaml, 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// File values
	if cfg.Server.Port != "9999" {
		t.Errorf("port = %q, expected 9999", cfg.Server.Port)
	}
	if cfg.Simulator.TickMillis != 100 {
		t.Errorf("tick_millis = %d, expected 100", cfg.Simulator.TickMillis)
	}
	if cfg.TickInterval() != 100*time.Millisecond {
		t.Errorf("TickInterval = %v, expected 100ms", cfg.TickInterval())
	}

	// Keys absent from the file keep their defaults
	if cfg.Simulator.SegmentMillis != 4200 {
		t.Errorf("segment_millis = %d, expected default 4200", cfg.Simulator.SegmentMillis)
	}
	if cfg.Simulator.PositionStride != 5 {
		t.Errorf("position_stride = %d, expected default 5", cfg.Simulator.PositionStride)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, expected sqlite", cfg.Database.Driver)
	}

	if got := GetCurrent(); got == nil || got.Server.Port != "9999" {
		t.Error("GetCurrent does not reflect the loaded config")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load with missing file: %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("expected a default port with no config file")
	}
	if cfg.SegmentTime() <= 0 {
		t.Error("expected a positive default segment time")
	}
}
