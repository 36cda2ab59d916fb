package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyOwner string

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Report counter drift for an owner without repairing it",
	Long: `Compare every client counter of an owner with a recount of its
objectives and tasks and print what disagrees. Nothing is written; run
'clientpulse reconcile' to repair.

Examples:
  clientpulse verify --owner 6f1c...`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyOwner, "owner", "", "Owner id to verify")
	_ = verifyCmd.MarkFlagRequired("owner")
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp(a)

	found, err := a.Engine.VerifyOwner(ctx, verifyOwner)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}
	printDrift(cmd.OutOrStdout(), found)
	if len(found) > 0 {
		return fmt.Errorf("%d drift warning(s)", len(found))
	}
	return nil
}
