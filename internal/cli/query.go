package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	queryText string
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search stored documentation",
	Long: `Embed the query and print the most similar stored chunks.

Examples:
  alsrag query -q "edaravone approval"
  alsrag query -q "respiratory support" --top-k 10 --json`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryText, "query", "q", "", "search query (required)")
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default from config)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output as JSON")
	queryCmd.MarkFlagRequired("query")
}

type queryResult struct {
	URL         string  `json:"url"`
	ChunkNumber int     `json:"chunk_number"`
	Title       string  `json:"title"`
	Similarity  float64 `json:"similarity"`
	Content     string  `json:"content"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	retriever := a.retriever()

	if !queryJSON {
		fmt.Println(retriever.Retrieve(ctx, queryText, queryTopK))
		return nil
	}

	chunks, err := retriever.Search(ctx, queryText, queryTopK)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	results := make([]queryResult, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, queryResult{
			URL:         c.Chunk.URL,
			ChunkNumber: c.Chunk.ChunkNumber,
			Title:       c.Chunk.Title,
			Similarity:  c.Similarity,
			Content:     c.Chunk.Content,
		})
	}
	output, _ := json.MarshalIndent(results, "", "  ")
	fmt.Println(string(output))
	return nil
}
