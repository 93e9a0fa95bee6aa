package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/claimwise/internal/decision"
	"github.com/ziadkadry99/claimwise/internal/pipeline"
)

var claimCmd = &cobra.Command{
	Use:   "claim [description]",
	Short: "Adjudicate an insurance claim",
	Long: `Decides whether a claim is approved or rejected under the indexed policy.
Patient details are read from the description; flags override them.
With --batch, each non-empty line of the file is adjudicated as its own
claim and the results are printed as a table.`,
	Example: `  claimwise claim "46M, knee surgery in Pune, 3-month policy"
  claimwise claim "cataract surgery" --age 62 --duration 30
  claimwise claim --batch claims.txt`,
	RunE: runClaim,
}

func init() {
	f := claimCmd.Flags()
	f.Int("age", 0, "patient age in years")
	f.String("gender", "", "patient gender (M or F)")
	f.String("procedure", "", "procedure being claimed")
	f.String("location", "", "city of treatment")
	f.Int("duration", 0, "policy duration in months")
	f.Bool("emergency", false, "treat the claim as an emergency")
	f.String("user", "", "record the claim in this user's conversation history")
	f.String("batch", "", "file with one claim description per line")
	f.Bool("json", false, "output decisions as JSON")
	rootCmd.AddCommand(claimCmd)
}

func runClaim(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	f := cmd.Flags()
	batchFile, _ := f.GetString("batch")
	jsonOutput, _ := f.GetBool("json")

	if batchFile == "" && len(args) == 0 {
		return fmt.Errorf("a claim description or --batch file is required")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if batchFile != "" {
		queries, err := readLines(batchFile)
		if err != nil {
			return err
		}
		results, err := a.orch.Batch(ctx, queries)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(results)
		}
		printDecisionTable(results, a.orch.Currency())
		return nil
	}

	age, _ := f.GetInt("age")
	duration, _ := f.GetInt("duration")
	gender, _ := f.GetString("gender")
	procedure, _ := f.GetString("procedure")
	location, _ := f.GetString("location")
	emergency, _ := f.GetBool("emergency")
	user, _ := f.GetString("user")

	overrides, err := parseOverrides(age, duration, gender, procedure, location, emergency, f.Changed)
	if err != nil {
		return err
	}

	res, err := a.orch.Adjudicate(ctx, pipeline.Request{
		UserID:    user,
		Query:     strings.Join(args, " "),
		Overrides: overrides,
	})
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(res.Decision)
	}
	printDecision(res)
	return nil
}

func printDecision(res *pipeline.Result) {
	d := res.Decision
	fmt.Println(res.Summary)
	fmt.Println()
	fmt.Printf("  Coverage:      %s\n", d.CoverageStatus)
	if len(d.RiskFactors) > 0 {
		fmt.Printf("  Risk factors:  %s\n", strings.Join(d.RiskFactors, ", "))
	}
	if len(d.RuleOverrides) > 0 {
		fmt.Printf("  Rules applied: %s\n", strings.Join(d.RuleOverrides, ", "))
	}
	fmt.Printf("  Clauses used:  %d\n", d.SourceClauseCount)
}

func printDecisionTable(results []*pipeline.Result, currency string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Claim", "Decision", "Amount", "Coverage", "Rules"})
	for i, r := range results {
		d := r.Decision
		amount := "-"
		if d.Amount != nil {
			amount = decision.FormatAmount(*d.Amount, currency)
		}
		tw.AppendRow(table.Row{i + 1, truncate(r.Query, 48), d.Outcome, amount, d.CoverageStatus, strings.Join(d.RuleOverrides, ", ")})
	}
	tw.Render()
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening batch file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" && !strings.HasPrefix(line, "#") {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("batch file %s has no claims", path)
	}
	return lines, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
