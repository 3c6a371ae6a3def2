package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MalekiRe/bevy-editor/internal/monitor"
	"github.com/MalekiRe/bevy-editor/internal/orchestrator"
	"github.com/MalekiRe/bevy-editor/pkg/errors"
	"github.com/MalekiRe/bevy-editor/pkg/logger"
	"github.com/MalekiRe/bevy-editor/pkg/protocol"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	logLevel    string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "hotreload-watcher <project-dir>",
	Short: "Supervise a hot-reloading dev process and relay its output to the editor",
	Long: "Launches the project's development process, relays its combined output to the\n" +
		"editor over loopback TCP and relaunches it whenever it exits unclean, in UI-only\n" +
		"mode until the editor asks for normal mode again.",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir := args[0]
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return errors.New(errors.ErrCodeConfigInvalid, "Startup", dir+" is not a directory", err)
		}

		// 2. Init Logger & Metrics
		logger.InitLogger(cfg.Observability.LogLevel)
		monitor.InitMetrics(cfg.Observability.MetricsAddr)

		logger.Log.Info("Booting hot-reload watcher...", "dir", dir, "cmd", cfg.Child.Command)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		// 3. Start Engine
		engine := orchestrator.NewEngine(cfg, dir)
		if cfgFile != "" {
			go func() {
				if err := protocol.Watch(ctx, cfgFile, engine.UpdateConfig); err != nil {
					logger.Log.Warn("Config watch disabled", "err", err)
				}
			}()
		}
		return engine.Run(ctx)
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

// loadConfig reads --config if given, otherwise the defaults, then applies
// flag overrides and validates.
func loadConfig(cmd *cobra.Command) (*protocol.Config, error) {
	cfg := protocol.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = protocol.Load(cfgFile); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Observability.LogLevel = logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (YAML, reloaded on change)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	rootCmd.AddCommand(showConfigCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if logger.Log != nil {
			logger.Log.Error("Watcher fatal error", "err", err)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Personal.AI order the ending
