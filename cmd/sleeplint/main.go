// Command sleeplint runs the sleepcheck analyzer over the packages named on
// the command line, test files included.
//
//	go run ./cmd/sleeplint ./...
package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/ahrav/go-conclave/internal/lint/sleepcheck"
)

func main() { singlechecker.Main(sleepcheck.Analyzer) }
