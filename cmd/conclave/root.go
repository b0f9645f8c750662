package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahrav/go-conclave/internal/llm/configuration"
)

var version = "dev"

// app carries state resolved by the root command for its subcommands.
type app struct {
	configPath string
	logLevel   string
	cfg        *configuration.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "conclave",
		Short: "Conclave - pick the best agent for a task by interview or panel vote",
		Long: `Conclave evaluates candidate agents for a task.

The interview command questions every candidate and ranks them by a weighted
composite score. The panel command has a roster of personas score and vote.
Every model call goes through a rate-limited, retrying invocation layer that
refuses premium models unless explicitly allowed.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	cmd.AddCommand(newInterviewCommand(a))
	cmd.AddCommand(newPanelCommand(a))
	cmd.AddCommand(newSubmitCommand(a))
	cmd.AddCommand(newPremiumCommand(a))
	cmd.AddCommand(newModelsCommand(a))
	cmd.AddCommand(newWorkerCommand(a))

	return cmd
}

// load reads configuration and installs the process logger.
func (a *app) load() error {
	cfg, err := configuration.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Observability.LogLevel = a.logLevel
	}
	a.cfg = cfg

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.Observability.LogLevel)})
	slog.SetDefault(slog.New(handler))
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func execute() error {
	return newRootCommand().Execute()
}
