package protocol

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watcher.yaml")
	if err := os.WriteFile(path, []byte("ports: {min: 20000, max: 20100}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) { changes <- cfg })
	}()

	// Give the watcher a moment to register
	time.Sleep(100 * time.Millisecond)

	// An invalid edit is dropped
	if err := os.WriteFile(path, []byte("ports: {min: 1, max: 2}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("ports: {min: 21000, max: 21100}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Ports.Min == 21000 {
				cancel()
				select {
				case err := <-done:
					if err != nil {
						t.Errorf("Watch returned %v", err)
					}
				case <-time.After(time.Second):
					t.Fatal("Watch did not stop after cancel")
				}
				return
			}
			if cfg.Ports.Min == 1 {
				t.Fatal("Invalid config should never be delivered")
			}
		case <-deadline:
			t.Fatal("Timed out waiting for reload")
		}
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "nope", "watcher.yaml"), func(*Config) {})
	if err == nil {
		t.Error("Expected an error watching a missing directory")
	}
}
