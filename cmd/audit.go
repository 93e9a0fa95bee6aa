package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/claimwise/internal/audit"
	"github.com/ziadkadry99/claimwise/internal/config"
	"github.com/ziadkadry99/claimwise/internal/db"
	"github.com/ziadkadry99/claimwise/internal/decision"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recorded claim decisions",
	RunE:  runAuditList,
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete audit entries older than a given age",
	RunE:  runAuditPrune,
}

func init() {
	auditCmd.Flags().String("user", "", "only show decisions for this user")
	auditCmd.Flags().String("decision", "", "only show APPROVED or REJECTED decisions")
	auditCmd.Flags().String("rule", "", "only show decisions corrected by this rule")
	auditCmd.Flags().Int("limit", 20, "maximum number of entries to show")
	auditCmd.Flags().Bool("json", false, "output entries as JSON")

	auditPruneCmd.Flags().Duration("older-than", 90*24*time.Hour, "delete entries older than this")

	auditCmd.AddCommand(auditPruneCmd)
	rootCmd.AddCommand(auditCmd)
}

func openAuditStore(cfg *config.Config) (*audit.Store, *db.DB, error) {
	database, err := db.Open(databasePath(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return audit.NewStore(database), database, nil
}

func runAuditList(cmd *cobra.Command, args []string) error {
	user, _ := cmd.Flags().GetString("user")
	outcome, _ := cmd.Flags().GetString("decision")
	rule, _ := cmd.Flags().GetString("rule")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	filter := audit.QueryFilter{UserID: user, Rule: rule, Limit: limit}
	if outcome != "" {
		o := decision.Outcome(strings.ToUpper(outcome))
		if o != decision.Approved && o != decision.Rejected {
			return fmt.Errorf("unknown decision %q (use APPROVED or REJECTED)", outcome)
		}
		filter.Outcome = o
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, database, err := openAuditStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	entries, err := store.Query(context.Background(), filter)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries found.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"When", "User", "Claim", "Decision", "Amount", "Rules"})
	for _, e := range entries {
		amount := "-"
		if e.Amount != nil {
			amount = decision.FormatAmount(*e.Amount, cfg.Rules.Currency)
		}
		tw.AppendRow(table.Row{
			humanize.Time(e.Timestamp),
			e.UserID,
			truncate(e.Query, 40),
			e.Outcome,
			amount,
			strings.Join(e.RuleOverrides, ", "),
		})
	}
	tw.Render()
	return nil
}

func runAuditPrune(cmd *cobra.Command, args []string) error {
	olderThan, _ := cmd.Flags().GetDuration("older-than")
	if olderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, database, err := openAuditStore(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := store.DeleteBefore(context.Background(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d audit entr%s older than %s\n", n, plural(n, "y", "ies"), olderThan)
	return nil
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
