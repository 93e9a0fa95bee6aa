package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/claimwise/internal/pipeline"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about the policy documents",
	Long: `Answers a question from the indexed policy clauses. Questions that mention
a claim or surgery are adjudicated as well unless --no-decision is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().String("user", "", "record the exchange in this user's conversation history")
	askCmd.Flags().Bool("clauses", false, "print the clauses the answer was based on")
	askCmd.Flags().Bool("no-decision", false, "never adjudicate, even for claim questions")
	askCmd.Flags().Bool("json", false, "output the full result as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	question := strings.Join(args, " ")

	user, _ := cmd.Flags().GetString("user")
	showClauses, _ := cmd.Flags().GetBool("clauses")
	noDecision, _ := cmd.Flags().GetBool("no-decision")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	req := pipeline.Request{UserID: user, Query: question}
	var res *pipeline.Result
	if noDecision {
		res, err = a.orch.Ask(ctx, req)
	} else {
		res, err = a.orch.HandleWithDecision(ctx, req)
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.Answer)
	if res.Summary != "" {
		fmt.Printf("\n%s\n", res.Summary)
	}
	if showClauses && len(res.Clauses) > 0 {
		fmt.Printf("\nClauses (%d):\n\n", len(res.Clauses))
		for i, c := range res.Clauses {
			fmt.Printf("  %d. [%.1f%%] %s\n", i+1, c.Similarity*100, c.Source)
			fmt.Printf("     %s\n\n", truncate(strings.Join(strings.Fields(c.Content), " "), 160))
		}
	}
	return nil
}
