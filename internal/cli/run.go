package cli

import "github.com/spf13/cobra"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run Player, Ripper, and Commander together",
	Run: func(cmd *cobra.Command, args []string) {
		runAppliance("appliance")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
