package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/pkg/retrieval"
	"github.com/fikri/engram/pkg/store"
)

var (
	searchUser         string
	searchOrg          string
	searchAgent        string
	searchConversation string
	searchLimit        int
	searchLLM          bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Retrieve relevant context for a query",
	Long: `Retrieve the memory items most relevant to a query, scored by
similarity and recency, deduplicated, and capped per relevance band.
With --llm the output is a compact context block trimmed to the token budget.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchUser, "user", "", "restrict to one user id")
	searchCmd.Flags().StringVar(&searchOrg, "org", "", "restrict to one organization id")
	searchCmd.Flags().StringVar(&searchAgent, "agent", "", "restrict to one agent id")
	searchCmd.Flags().StringVar(&searchConversation, "conversation", "", "restrict to one conversation id")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "maximum results (0 uses the configured limit)")
	searchCmd.Flags().BoolVar(&searchLLM, "llm", false, "render a token-budgeted context block for prompt injection")
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	mode := retrieval.ModeFull
	if searchLLM {
		mode = retrieval.ModeLLM
	}

	resp, err := svc.Search(cmd.Context(), retrieval.Request{
		Query: strings.Join(args, " "),
		Filter: store.Filter{
			UserID:         searchUser,
			OrgID:          searchOrg,
			AgentID:        searchAgent,
			ConversationID: searchConversation,
		},
		Limit: searchLimit,
		Mode:  mode,
	})
	if err != nil {
		return err
	}

	fmt.Print(resp.Formatted)
	if !searchLLM && len(resp.Results) > 0 {
		fmt.Printf("\n%d of %d candidates (%d below floor, %d duplicates), avg similarity %.2f\n",
			resp.Stats.Returned, resp.Stats.Total, resp.Stats.Filtered, resp.Stats.Deduped,
			resp.Stats.AvgSimilarity)
	}
	return nil
}
