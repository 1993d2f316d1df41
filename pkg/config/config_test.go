package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func writeDefaultConfig(t *testing.T, dir string) {
	t.Helper()
	body := []byte(`
start_height: 1
rpc:
  bind_host: 127.0.0.1
  bind_port: 8645
storage:
  path: ./data
da:
  adapter: mock
sequencer:
  deferred_slots: 0
  max_batch_bytes: 65536
prover:
  num_threads: 4
  mode: skip
`)
	if err := os.WriteFile(filepath.Join(dir, "default.yaml"), body, 0o644); err != nil {
		t.Fatalf("write default.yaml: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeDefaultConfig(t, dir)
	viper.Reset()

	cfg, err := Load(dir, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StartHeight != 1 {
		t.Fatalf("StartHeight = %d, want 1", cfg.StartHeight)
	}
	if cfg.RPC.BindPort != 8645 {
		t.Fatalf("RPC.BindPort = %d, want 8645", cfg.RPC.BindPort)
	}
	if cfg.DA.Adapter != "mock" {
		t.Fatalf("DA.Adapter = %q, want mock", cfg.DA.Adapter)
	}
	if cfg.Prover.NumThreads != 4 {
		t.Fatalf("Prover.NumThreads = %d, want 4", cfg.Prover.NumThreads)
	}
}

func TestLoadMissingDir(t *testing.T) {
	viper.Reset()
	if _, err := Load(t.TempDir(), ""); err == nil {
		t.Fatal("expected error loading from empty directory")
	}
}
