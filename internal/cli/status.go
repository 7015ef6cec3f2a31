package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check what the document store holds",
	Long: `Print the number of stored chunks, a few sample titles and the results
of a test search, to confirm ingestion worked.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.retriever().Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("status check failed: %w", err)
	}

	fmt.Printf("Store backend: %s\n", cfg.Store.Backend)
	fmt.Printf("Total chunks:  %d\n", status.TotalChunks)

	if len(status.SampleTitles) > 0 {
		fmt.Println("\nSample titles:")
		for i, title := range status.SampleTitles {
			fmt.Printf("  %d. %s\n", i+1, title)
		}
	}

	fmt.Println("\nTest search for \"ALS\":")
	if len(status.TestResults) == 0 {
		fmt.Println("  no results")
	}
	for i, r := range status.TestResults {
		fmt.Printf("  %d. %s (similarity: %.4f)\n     %s\n", i+1, r.Chunk.Title, r.Similarity, r.Chunk.URL)
	}
	return nil
}
