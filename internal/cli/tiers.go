package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tiersDryRun bool

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Run a retention tier transition pass",
	Long: `Age stored memory through the retention tiers: hot memories past
their window lose nothing yet, warm ones drop their chunks, cold ones drop
their embedding. With --dry-run the pass reports what it would do without
touching anything.`,
	RunE: runTiers,
}

func init() {
	rootCmd.AddCommand(tiersCmd)

	tiersCmd.Flags().BoolVar(&tiersDryRun, "dry-run", false, "report transitions without applying them")
}

func runTiers(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := svc.TransitionTiers(cmd.Context(), tiersDryRun)
	if err != nil {
		return err
	}

	if tiersDryRun {
		fmt.Println("Dry run: no changes applied")
	}
	if report.Total() == 0 {
		fmt.Println("No memories eligible for transition")
		return nil
	}

	fmt.Printf("hot -> warm:    %d\n", report.HotToWarm)
	fmt.Printf("warm -> cold:   %d\n", report.WarmToCold)
	fmt.Printf("cold -> deleted: %d\n", report.ColdToDeleted)
	fmt.Printf("Bytes freed: %d\n", report.BytesFreed)
	fmt.Printf("Estimated monthly savings: $%.4f\n", report.MonthlyCostSavings)
	return nil
}
