package cmd

import (
	"fmt"

	"github.com/TechnicallyShaun/nota-scribe/internal/vault"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <name>",
		Short: "Initialize a new vault",
		Long: `Initialize a vault in the current directory with the specified name.

Creates the Logseq folders (pages, journals), one inbox per built-in note type
under inboxes/, the archive folder and the note type configurations in
.nota/types. Running it again only adds what is missing.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			result, err := vault.Init(".", name)
			if err != nil {
				return err
			}

			if result.AlreadyExisted {
				if len(result.FoldersCreated) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Vault already initialized. Created missing folders: %v\n", result.FoldersCreated)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Vault already initialized\n")
				}
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Initialized vault '%s'\n", name)
			}
			return nil
		},
	}
}
