// Package cli wires spec.md's four components (Player, Ripper,
// Commander, Audio Sink) together behind a cobra command tree, grounded
// on the teacher's cmd/root.go + cmd/player.go split.
//
// spec.md §5 describes Player, Ripper, and Commander as three
// independent OS processes talking over a ZeroMQ bus. No ZeroMQ (or any
// other cross-process pub/sub) binding exists anywhere in this
// module's dependency corpus — internal/bus's Topic and Queue are
// in-process goroutines and channels, which cannot be shared across a
// fork/exec boundary. Rather than fabricate a wire protocol this corpus
// has no library for, cdplayerd's player/ripper/commander subcommands
// all build and run the same in-process appliance; the subcommand name
// only changes which component name is attached to the process's
// default logger. A combined "run" subcommand exists for the common
// case of wanting all of it without picking one. See DESIGN.md.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "cdplayerd",
	Short: "Networked CD-player appliance daemon",
	Long: `cdplayerd drives a networked CD-player appliance: on disc insertion it
identifies the disc, looks up metadata (locally for known discs, online
or from the disc's own table of contents otherwise), plays it back
gaplessly, and rips it in parallel to a permanent on-disk library so
later insertions of the same disc play straight from the library.

Commands:
  - run:       start Player, Ripper, and Commander together (the usual way to run it)
  - player:    start the appliance with the Player component's logger identity
  - ripper:    start the appliance with the Ripper component's logger identity
  - commander: start the appliance with the Commander component's logger identity`,
}

// Execute adds all child commands to the root command and parses
// flags. Called once by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file (defaults built in if omitted)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "run in the foreground with debug-level logs to stderr")
}
