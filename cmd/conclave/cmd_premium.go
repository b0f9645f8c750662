package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-conclave/internal/llm/admission"
	"github.com/ahrav/go-conclave/internal/worker"
)

func newPremiumCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "premium",
		Short: "Inspect the premium model table",
		Long: `Inspect the table of premium request multipliers that the admission gate
uses to refuse premium models when premium use is not allowed.`,
	}
	cmd.AddCommand(newPremiumListCommand(a))
	cmd.AddCommand(newPremiumRefreshCommand(a))
	return cmd
}

func newPremiumListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List premium and free models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := worker.NewRuntime(a.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, status, err := rt.Client.Gate().Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			return printPremiumTable(cmd.OutOrStdout(), snap, status.String())
		},
	}
}

func newPremiumRefreshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the premium table from its source now",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := worker.NewRuntime(a.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			snap, err := rt.Client.Gate().Refresh(cmd.Context())
			if err != nil {
				return fmt.Errorf("refreshing premium table: %w", err)
			}
			return printPremiumTable(cmd.OutOrStdout(), snap, "refreshed")
		},
	}
}

func printPremiumTable(w io.Writer, c admission.PremiumModelCache, status string) error {
	fmt.Fprintf(w, "source: %s  status: %s  fetched: %s  hash: %.12s\n\n",
		c.Source, status, formatFetched(c.FetchedAt), c.ContentHash)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tMULTIPLIER\tPREMIUM")

	premium := c.PremiumModels()
	names := make([]string, 0, len(premium))
	for name := range premium {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%gx\tyes\n", name, premium[name])
	}
	for _, name := range c.FreeModels() {
		fmt.Fprintf(tw, "%s\t0x\tno\n", name)
	}
	return tw.Flush()
}

func formatFetched(t time.Time) string {
	if t.IsZero() {
		return "never (built-in table)"
	}
	return t.UTC().Format(time.RFC3339)
}
