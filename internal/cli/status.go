package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/pkg/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Long:  `Show stored memory counts per tier, job queue depth, and the active embedding provider.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := svc.GetStatus(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Items: %d\n", status.Items.TotalItems)
	fmt.Printf("  hot: %d  warm: %d  cold: %d  deleted: %d\n",
		status.Items.ItemsByTier[store.TierHot], status.Items.ItemsByTier[store.TierWarm],
		status.Items.ItemsByTier[store.TierCold], status.Items.ItemsByTier[store.TierDeleted])
	fmt.Printf("Chunks: %d\n", status.Items.TotalChunks)
	fmt.Printf("Jobs pending: %d\n", status.JobsPending)
	if status.JobsParked > 0 {
		fmt.Printf("Jobs parked after exhausting retries: %d\n", status.JobsParked)
	}
	fmt.Printf("Embedding provider: %s (dim %d)\n", status.Provider, status.StorageDim)
	return nil
}
