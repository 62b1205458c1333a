package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fikri/engram/pkg/service"
)

var (
	storeUser         string
	storeOrg          string
	storeAgent        string
	storeConversation string
	storeType         string
	storeFile         string
	storeImportant    bool
)

var storeCmd = &cobra.Command{
	Use:   "store [content]",
	Short: "Store a memory item",
	Long: `Store one piece of context as an embedded memory item.
Content comes from the argument, or from a document with --file
(plain text, markdown, or PDF).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStore,
}

func init() {
	rootCmd.AddCommand(storeCmd)

	storeCmd.Flags().StringVar(&storeUser, "user", "", "user id the memory belongs to")
	storeCmd.Flags().StringVar(&storeOrg, "org", "", "organization id the memory belongs to")
	storeCmd.Flags().StringVar(&storeAgent, "agent", "", "agent id that produced the memory")
	storeCmd.Flags().StringVar(&storeConversation, "conversation", "", "conversation id the memory came from")
	storeCmd.Flags().StringVar(&storeType, "type", "", "content type label (default \"message\")")
	storeCmd.Flags().StringVar(&storeFile, "file", "", "ingest a document instead of inline content")
	storeCmd.Flags().BoolVar(&storeImportant, "important", false, "pin the memory as important")
}

func runStore(cmd *cobra.Command, args []string) error {
	if storeFile == "" && len(args) == 0 {
		return fmt.Errorf("provide content as an argument or a document with --file")
	}

	svc, cleanup, err := newService()
	if err != nil {
		return err
	}
	defer cleanup()

	req := service.StoreRequest{
		ContentType:    storeType,
		UserID:         storeUser,
		OrgID:          storeOrg,
		AgentID:        storeAgent,
		ConversationID: storeConversation,
		Important:      storeImportant,
	}

	ctx := cmd.Context()
	var result *service.StoreResult
	if storeFile != "" {
		data, readErr := os.ReadFile(storeFile)
		if readErr != nil {
			return fmt.Errorf("failed to read document: %w", readErr)
		}
		result, err = svc.IngestDocument(ctx, filepath.Base(storeFile), data, req)
	} else {
		req.Content = args[0]
		result, err = svc.StoreMemory(ctx, req)
	}
	if err != nil {
		return err
	}

	if result.Blocked {
		fmt.Printf("Blocked: %s\n", result.Reason)
		return nil
	}

	fmt.Printf("Stored: %s\n", result.ID)
	if result.PIIRedacted {
		fmt.Println("PII detected and redacted")
	}
	if result.ChunkJobQueued {
		fmt.Println("Chunk job queued (processed by 'engram serve')")
	}
	return nil
}
