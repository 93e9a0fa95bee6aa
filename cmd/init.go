package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/claimwise/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize claimwise configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to choose the LLM provider, clause index and coverage rules, and writes a .claimwise.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
