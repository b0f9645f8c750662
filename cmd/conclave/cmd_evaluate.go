package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-conclave/internal/domain"
	"github.com/ahrav/go-conclave/internal/llm"
	"github.com/ahrav/go-conclave/internal/worker"
)

type evaluateFlags struct {
	input        string
	allowPremium bool
}

func newInterviewCommand(a *app) *cobra.Command {
	f := &evaluateFlags{}
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Rank candidates by interviewing each one",
		Long: `Interview every candidate with the same questions, score each transcript
with the evaluator model and print the ranking as JSON.

The input file is YAML or JSON with a task, candidates and optional weights.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLocal(cmd, a, f, domain.ModeInterview)
		},
	}
	f.register(cmd)
	return cmd
}

func newPanelCommand(a *app) *cobra.Command {
	f := &evaluateFlags{}
	cmd := &cobra.Command{
		Use:   "panel",
		Short: "Decide between candidates by panel vote",
		Long: `Have a roster of personas question and score every candidate, then vote.
Ties go to further rounds on the tied candidates before falling back to the
summed composite and finally input order. Prints the decision as JSON.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLocal(cmd, a, f, domain.ModePanel)
		},
	}
	f.register(cmd)
	return cmd
}

func (f *evaluateFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Request file (YAML or JSON); - reads stdin")
	cmd.Flags().BoolVar(&f.allowPremium, "allow-premium", false, "Allow premium models for this session")
	_ = cmd.MarkFlagRequired("input")
}

// runLocal evaluates in-process, without Temporal.
func runLocal(cmd *cobra.Command, a *app, f *evaluateFlags, mode domain.EvaluationMode) error {
	req, err := readRequest(cmd.InOrStdin(), f.input)
	if err != nil {
		return err
	}
	req.Mode = mode
	req.AllowPremium = req.AllowPremium || f.allowPremium

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := worker.NewRuntime(a.cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if _, err := rt.Client.ValidateModels(ctx, llm.ConfiguredModels(a.cfg, candidateModels(req)...)); err != nil {
		return err
	}

	acts := rt.NewActivities()
	var result any
	switch mode {
	case domain.ModePanel:
		result, err = acts.RunPanel(ctx, req)
	default:
		result, err = acts.RunInterview(ctx, req)
	}
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), result)
}

func candidateModels(req domain.EvaluationRequest) []string {
	models := make([]string, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		models = append(models, c.Model)
	}
	return models
}

func readRequest(stdin io.Reader, path string) (domain.EvaluationRequest, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return domain.EvaluationRequest{}, fmt.Errorf("reading request: %w", err)
	}

	var req domain.EvaluationRequest
	if err := yaml.Unmarshal(data, &req); err != nil {
		return domain.EvaluationRequest{}, fmt.Errorf("parsing request: %w", err)
	}
	return req, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// contextOrBackground returns ctx, or a background context when cobra ran
// without one.
func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
