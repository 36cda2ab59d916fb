package cli

import (
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveReconcile bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API on the configured address. The store schema is
migrated first. With --reconcile the counter reconciler runs alongside.

Examples:
  clientpulse serve
  clientpulse serve --addr :9090 --reconcile`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveReconcile, "reconcile", false, "Run the counter reconciler")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveReconcile {
		cfg.Reconcile.Enabled = true
	}

	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	return a.Serve(ctx)
}
