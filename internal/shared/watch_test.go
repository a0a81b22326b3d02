package shared

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigWatcher(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := CreateConfigFile(configPath); err != nil {
		t.Fatalf("failed to create config file: %v", err)
	}

	reloaded := make(chan *Config, 16)
	w, err := NewConfigWatcher(configPath, NewLogger(io.Discard), func(c *Config) { reloaded <- c })
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(configPath, []byte("[log]\nlevel = \"debug\"\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	// a truncating write can surface as more than one event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloaded:
			if cfg.Log.Level == "debug" {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for config reload")
		}
	}
}
