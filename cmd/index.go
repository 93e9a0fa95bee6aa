package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/claimwise/internal/ingest"
	"github.com/ziadkadry99/claimwise/internal/progress"
)

var indexCmd = &cobra.Command{
	Use:   "index [paths...]",
	Short: "Index policy documents for retrieval",
	Long: `Reads .txt and .md policy documents from the given files and directories,
splits them into overlapping chunks and stores them in the configured clause
index. Re-indexing a document replaces its previous chunks.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().Int("chunk-size", 0, "maximum chunk length in characters (default from config)")
	indexCmd.Flags().Int("chunk-overlap", -1, "characters shared by consecutive chunks (default from config)")
	indexCmd.Flags().Bool("no-progress", false, "disable the progress bar")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer syncLogger(logger)

	store, err := openVectorStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	opts := ingest.Options{
		Include:      cfg.Ingest.Include,
		Exclude:      cfg.Ingest.Exclude,
		ChunkSize:    cfg.Ingest.ChunkSize,
		ChunkOverlap: cfg.Ingest.ChunkOverlap,
		PersistDir:   vectorDir(cfg),
	}
	if n, _ := cmd.Flags().GetInt("chunk-size"); n > 0 {
		opts.ChunkSize = n
	}
	if n, _ := cmd.Flags().GetInt("chunk-overlap"); n >= 0 {
		opts.ChunkOverlap = n
	}

	var reporter progress.Reporter
	if noProgress, _ := cmd.Flags().GetBool("no-progress"); !noProgress {
		reporter = progress.NewReporter(os.Stderr)
	}

	stats, err := ingest.NewIndexer(store, opts, reporter, logger).Index(ctx, args)
	fmt.Printf("Indexed %d document(s) into %d chunk(s)", stats.Files, stats.Chunks)
	if stats.Skipped > 0 {
		fmt.Printf(", skipped %d", stats.Skipped)
	}
	fmt.Println()

	if err != nil {
		if stats.Files == 0 {
			return err
		}
		warnf("some documents were not indexed:\n%v", err)
	}
	return nil
}
