package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	promptQuery  string
	promptSystem bool
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the prompt the agent would send for a message",
	Long: `Render the agent's prompt for a message, including the retrieved
documentation, without calling the chat model. Useful for manual LLM
orchestration and for checking what context a question pulls in.

Examples:
  alsrag prompt -q "What does edaravone do?"
  alsrag prompt -q "ALS genetics" --system`,
	RunE: runPrompt,
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "message to build the prompt for (required)")
	promptCmd.Flags().BoolVar(&promptSystem, "system", false, "also print the system prompt")
	promptCmd.MarkFlagRequired("query")
}

func runPrompt(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	responder := a.responder()

	if promptSystem {
		system, err := responder.SystemPrompt()
		if err != nil {
			return err
		}
		fmt.Println(system)
		fmt.Println("\n---")
	}

	user, err := responder.UserPrompt(cmd.Context(), promptQuery)
	if err != nil {
		return err
	}
	fmt.Println(user)
	return nil
}
