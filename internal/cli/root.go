// Package cli implements the clientpulse command line
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/existflow/clientpulse/internal/app"
	"github.com/existflow/clientpulse/internal/config"
	"github.com/existflow/clientpulse/internal/logger"
)

var (
	configPath string
	logLevel   string
	logFile    string
	logConsole bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "clientpulse",
	Short: "clientpulse - client, task and billing tracker",
	Long: `clientpulse tracks clients, tasks, timers and objectives and keeps
client counters and profitability consistent with the work recorded.

Run 'clientpulse serve' to start the HTTP API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path()
		if configPath != "" {
			path = configPath
		}

		loaded, err := config.LoadFile(path)
		if err != nil {
			return err
		}
		cfg = loaded

		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-file") {
			cfg.Log.File = logFile
		}
		if cmd.Flags().Changed("log-console") {
			cfg.Log.Console = logConsole
		}

		if err := logger.Init(cfg.LoggerConfig()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("clientpulse started", logger.F("command", cmd.Name()), logger.F("version", app.Version))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.clientpulse/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(ownerCmd)
	rootCmd.AddCommand(configCmd)
}

// openApp opens the configured store and engine for one command
func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, cfg, logger.Default())
}

func closeApp(a *app.App) {
	if err := a.Close(context.Background()); err != nil {
		logger.Warn("failed to close", logger.Err(err))
	}
}
