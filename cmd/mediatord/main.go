// Mediatord screens co-parenting messages before they are sent and offers
// sender-perspective rewrites when a message is likely to escalate.
//
// Usage:
//
//	# Start the HTTP API
//	mediatord serve
//
//	# Inspect a message locally
//	mediatord analyze "You never pay on time."
//	echo "I understand you're upset" | mediatord validate -
//
// Configuration is read from ~/.config/mediatord/config.yaml and
// MEDIATORD_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "mediatord",
		Short:         "Co-parenting message mediation service",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/mediatord/config.yaml)")

	root.AddCommand(
		newServeCmd(&configPath),
		newAnalyzeCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mediatord by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
			return nil
		},
	}
}
