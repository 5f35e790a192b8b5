package cli

import "github.com/spf13/cobra"

// playerCmd mirrors the original's start_player.py by name. Because
// this module's bus is in-process (see the package doc), it runs the
// full appliance like run does; only the default logger's "component"
// field differs.
var playerCmd = &cobra.Command{
	Use:   "player",
	Short: "Run the appliance (logged under the player component name)",
	Run: func(cmd *cobra.Command, args []string) {
		runAppliance("player")
	},
}

func init() {
	rootCmd.AddCommand(playerCmd)
}
