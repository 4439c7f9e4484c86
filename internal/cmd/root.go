package cmd

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for the nota CLI
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nota",
		Short: "Voice notes into a Logseq graph",
		Long:  "Nota Scribe - turns voice recordings into structured Logseq pages linked from the daily journal",
	}

	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewVoiceCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}
