package cli

import "github.com/spf13/cobra"

// commanderCmd mirrors the original's start_commander.py by name — see
// player.go's doc comment for why it runs the same wiring.
var commanderCmd = &cobra.Command{
	Use:   "commander",
	Short: "Run the appliance (logged under the commander component name)",
	Run: func(cmd *cobra.Command, args []string) {
		runAppliance("commander")
	},
}

func init() {
	rootCmd.AddCommand(commanderCmd)
}
