package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/worker"
	"github.com/ahrav/go-conclave/internal/workflow"
)

func newSubmitCommand(a *app) *cobra.Command {
	var (
		input string
		mode  string
		wait  bool
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Start an evaluation workflow on Temporal",
		Long: `Start EvaluationWorkflow on the configured task queue. With --wait the
command blocks until the workflow finishes and prints the outcome as JSON;
otherwise it prints the workflow and run IDs.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := readRequest(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			resolveMode(&req, mode, cmd.Flags().Changed("mode"))
			if err := req.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := worker.DialTemporal(a.cfg.Temporal)
			if err != nil {
				return err
			}
			defer c.Close()

			run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
				ID:        fmt.Sprintf("conclave-%s-%s", req.Task.ID, uuid.NewString()),
				TaskQueue: a.cfg.Temporal.TaskQueue,
			}, workflow.EvaluationWorkflow, req)
			if err != nil {
				return fmt.Errorf("starting workflow: %w", err)
			}
			if !wait {
				fmt.Fprintf(cmd.OutOrStdout(), "workflow_id=%s run_id=%s\n", run.GetID(), run.GetRunID())
				return nil
			}

			var out domain.EvaluationOutcome
			if err := run.Get(ctx, &out); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Request file (YAML or JSON); - reads stdin")
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModeInterview), "Evaluation mode: interview or panel; overrides the request file")
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the outcome")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// resolveMode lets an explicit --mode win over the request file. The flag
// default only fills a request that names no mode.
func resolveMode(req *domain.EvaluationRequest, flag string, changed bool) {
	if changed || req.Mode == "" {
		req.Mode = domain.EvaluationMode(flag)
	}
}
