package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/worker"
)

func newModelsCommand(a *app) *cobra.Command {
	var strict bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the endpoint serves",
		Long: `Fetch the model list from the provider endpoint and mark the models the
configuration uses: the evaluator model, the panel default model and every
roster persona's model. Configured models the endpoint does not serve are
listed after the table. With --strict they fail the command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := worker.NewRuntime(a.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			available, err := rt.Client.Models(contextOrBackground(cmd.Context()))
			if err != nil {
				return fmt.Errorf("listing models from %s: %w", a.cfg.Provider.BaseURL, err)
			}
			configured := llm.ConfiguredModels(a.cfg)
			missing := llm.MissingModels(available, configured)
			if err := printModelTable(cmd.OutOrStdout(), available, configured, missing); err != nil {
				return err
			}
			if strict && len(missing) > 0 {
				return llm.UnknownModelsError(missing)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when a configured model is not served")
	return cmd
}

func printModelTable(w io.Writer, available, configured, missing []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tCONFIGURED")
	for _, m := range available {
		used := "no"
		if slices.Contains(configured, m) {
			used = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\n", m, used)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(missing) > 0 {
		fmt.Fprintf(w, "\nconfigured but not served: %v\n", missing)
	}
	return nil
}
