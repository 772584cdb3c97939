// cti-webhook relays inferred OpenCTI incidents to an HTTP webhook.
//
// Usage:
//
//	cti-webhook run --config config.yml
//	cti-webhook statuses -o json
//	cti-webhook version
package main

import (
	"fmt"
	"os"

	"github.com/bissquit/cti-webhook/internal/version"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "cti-webhook",
		Short: "Relay OpenCTI incidents to a webhook",
		Long: `cti-webhook subscribes to the OpenCTI live stream, enriches new inferred
incidents with their indicator, observables and reports, and posts them to
a webhook. Incident deletions are forwarded as delete notices.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runBridge,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yml", "Path to YAML config file")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(statusesCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
