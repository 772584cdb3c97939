package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/bissquit/cti-webhook/internal/app"
	"github.com/bissquit/cti-webhook/internal/config"
	"github.com/bissquit/cti-webhook/internal/statuses"
	"github.com/spf13/cobra"
)

func statusesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "statuses",
		Short: "Print the workflow statuses known to the platform",
		Long: `Fetch entity subtypes and their workflow statuses from the platform and
print the id to name mapping used to classify incidents.

Examples:
  # Table output
  cti-webhook statuses

  # JSON output
  cti-webhook statuses -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			client, err := app.NewPlatformClient(cfg.Platform)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			dir, err := statuses.Load(ctx, client)
			if err != nil {
				return err
			}

			return printStatuses(cmd.OutOrStdout(), dir, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table, json")
	return cmd
}

func printStatuses(w io.Writer, dir *statuses.Directory, output string) error {
	switch output {
	case "json":
		all := make(map[string]map[string]string)
		for _, label := range dir.Labels() {
			all[label] = dir.Statuses(label)
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(all)

	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tSTATUS ID\tNAME")
		for _, label := range dir.Labels() {
			byID := dir.Statuses(label)
			ids := make([]string, 0, len(byID))
			for id := range byID {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", label, id, byID[id])
			}
		}
		return tw.Flush()

	default:
		return fmt.Errorf("unsupported output format %q", output)
	}
}
