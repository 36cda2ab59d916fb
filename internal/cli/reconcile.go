package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/existflow/clientpulse/internal/engine"
)

var reconcileWatch bool

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Recount client counters and repair drift",
	Long: `Recount every client's objective and task counters from the source
records and rewrite the ones that drifted.

Examples:
  clientpulse reconcile
  clientpulse reconcile --watch     # keep running on the configured interval`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVarP(&reconcileWatch, "watch", "w", false, "Keep reconciling on the configured interval")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if reconcileWatch {
		fmt.Fprintf(cmd.OutOrStdout(), "reconciling every %s, Ctrl+C to stop\n", cfg.Reconcile.Interval)
		r := engine.NewReconciler(a.Engine, cfg.Reconcile.Interval)
		r.Trigger()
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	report, err := a.Engine.ReconcileOnce(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}
	printReconcileReport(cmd.OutOrStdout(), report)
	if report.Failed > 0 {
		return fmt.Errorf("%d client(s) could not be reconciled", report.Failed)
	}
	return nil
}
