package cli

import (
	"fmt"
	"net/url"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <url>...",
	Short: "Fetch and ingest specific pages",
	Long: `Fetch the given pages, chunk and enrich them, and store the chunks.
Discovery and filtering are skipped.

Examples:
  alsrag ingest https://alsworldwide.org/what-is-als/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().IntVarP(&crawlLimit, "concurrency", "c", 0, "documents processed at once (default from config)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, raw := range args {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("not an http(s) URL: %s", raw)
		}
	}

	return ingestURLs(ctx, args)
}
