package main

import (
	"errors"
	"fmt"
	"os"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

// Exit codes for different failure modes.
const (
	ExitSuccess          = 0
	ExitEvaluationFailed = 1 // The session ran but produced no decision
	ExitError            = 2 // Configuration or runtime error
)

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, llmerrors.ErrEvaluationFailed), llmerrors.KindOf(err) == llmerrors.KindEvaluationFailed:
		return ExitEvaluationFailed
	default:
		return ExitError
	}
}
