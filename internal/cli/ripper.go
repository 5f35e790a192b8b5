package cli

import "github.com/spf13/cobra"

// ripperCmd mirrors the original's start_ripper.py by name — see
// player.go's doc comment for why it runs the same wiring.
var ripperCmd = &cobra.Command{
	Use:   "ripper",
	Short: "Run the appliance (logged under the ripper component name)",
	Run: func(cmd *cobra.Command, args []string) {
		runAppliance("ripper")
	},
}

func init() {
	rootCmd.AddCommand(ripperCmd)
}
