package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List stored documentation pages",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		pages := a.retriever().ListPages(cmd.Context())
		for _, p := range pages {
			fmt.Println(p)
		}
		fmt.Printf("\n%d pages\n", len(pages))
		return nil
	},
}

var pageCmd = &cobra.Command{
	Use:   "page <url>",
	Short: "Print a stored page reassembled from its chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fmt.Println(a.retriever().PageContent(cmd.Context(), args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	rootCmd.AddCommand(pageCmd)
}
