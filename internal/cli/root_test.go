package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MalekiRe/bevy-editor/pkg/errors"
	"github.com/MalekiRe/bevy-editor/pkg/protocol"
)

// execute runs the root command with args and resets flag state afterwards.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		cfgFile, logLevel, metricsAddr = "", "info", ""
		for _, name := range []string{"config", "log-level", "metrics-addr"} {
			if f := rootCmd.PersistentFlags().Lookup(name); f != nil {
				f.Changed = false
			}
		}
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	if rootCmd.Name() != "hotreload-watcher" {
		t.Errorf("Expected root command name hotreload-watcher, got %s", rootCmd.Name())
	}
	if len(rootCmd.Commands()) < 1 {
		t.Errorf("Expected at least 1 subcommand, got %d", len(rootCmd.Commands()))
	}
}

func TestRoot_RequiresOneDirectory(t *testing.T) {
	if _, err := execute(t); err == nil {
		t.Error("Expected an error without a project directory")
	}
	if _, err := execute(t, "a", "b"); err == nil {
		t.Error("Expected an error with two positional arguments")
	}
}

func TestRoot_RejectsMissingDirectory(t *testing.T) {
	_, err := execute(t, filepath.Join(t.TempDir(), "missing"))
	if errors.CodeOf(err) != errors.ErrCodeConfigInvalid {
		t.Errorf("Expected config invalid error, got %v", err)
	}
}

func TestShowConfig_Defaults(t *testing.T) {
	out, err := execute(t, "show-config")
	if err != nil {
		t.Fatalf("show-config failed: %v", err)
	}
	if !strings.Contains(out, "dexterous_developer_cli") {
		t.Errorf("Expected default command in output, got %q", out)
	}
	if _, err := protocol.Parse([]byte(out)); err != nil {
		t.Errorf("show-config output should load back, got %v", err)
	}
}

func TestShowConfig_FileAndFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watcher.yaml")
	if err := os.WriteFile(path, []byte("ports: {min: 30000, max: 31000}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "show-config", "--config", path, "--log-level", "debug", "--metrics-addr", "127.0.0.1:9100")
	if err != nil {
		t.Fatalf("show-config failed: %v", err)
	}
	cfg, err := protocol.Parse([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ports.Min != 30000 || cfg.Observability.LogLevel != "debug" || cfg.Observability.MetricsAddr != "127.0.0.1:9100" {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
}

func TestShowConfig_InvalidFlag(t *testing.T) {
	_, err := execute(t, "show-config", "--log-level", "loud")
	if errors.CodeOf(err) != errors.ErrCodeConfigInvalid {
		t.Errorf("Expected config invalid error, got %v", err)
	}
}
