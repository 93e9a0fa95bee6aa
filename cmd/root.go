package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimwise/internal/config"
)

var (
	cfgFile string
	envFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "claimwise",
	Short: "Insurance policy question answering and claim adjudication",
	Long: `claimwise indexes insurance policy documents and answers questions
about them. Claim descriptions are parsed into structured patient details,
matched against the relevant policy clauses, and adjudicated under hard
coverage rules such as waiting periods.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "file of environment variables such as API keys")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// loadEnvFile loads path into the environment when it exists. Variables
// already set take precedence.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// syncLogger flushes buffered log entries, ignoring the error zap returns
// for unsyncable terminals.
func syncLogger(l *zap.Logger) {
	_ = l.Sync()
}
