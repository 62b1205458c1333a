package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/pkg/refrag"
	"github.com/fikri/engram/pkg/store"
)

var (
	refragUser string
	refragOrg  string
)

var refragCmd = &cobra.Command{
	Use:   "refrag <query>",
	Short: "Chunk-level retrieval with selective expansion",
	Long: `Retrieve document chunks for a query, expanding only the most
relevant ones verbatim. The long tail is carried as vectors without text,
which is what saves tokens.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRefrag,
}

func init() {
	rootCmd.AddCommand(refragCmd)

	refragCmd.Flags().StringVar(&refragUser, "user", "", "restrict to one user id")
	refragCmd.Flags().StringVar(&refragOrg, "org", "", "restrict to one organization id")
}

func runRefrag(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.RefragRetrieve(cmd.Context(), refrag.Request{
		Query: strings.Join(args, " "),
		Filter: store.Filter{
			UserID: refragUser,
			OrgID:  refragOrg,
		},
	})
	if err != nil {
		return err
	}

	if len(result.Expanded) == 0 && len(result.Compressed) == 0 {
		fmt.Println("No relevant chunks found.")
		return nil
	}

	fmt.Print(result.Formatted)
	fmt.Printf("\n%d chunks expanded, %d compressed, %d of %d tokens saved (%.0f%%)\n",
		len(result.Expanded), len(result.Compressed),
		result.TokensSaved, result.TokensTotal, result.SavedPercent)
	return nil
}
