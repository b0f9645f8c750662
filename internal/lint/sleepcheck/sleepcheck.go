// Package sleepcheck reports wall-clock waits in test files.
//
// Tests in this module drive time through clock.Fake so that limiter, retry
// and admission behavior stays deterministic. A test that calls time.Sleep or
// arms a real timer is flagged unless the file runs under testing/synctest.
package sleepcheck

import (
	"go/ast"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/tools/go/analysis"
)

// Analyzer is the sleepcheck pass.
var Analyzer = &analysis.Analyzer{
	Name: "sleepcheck",
	Doc:  "reports time.Sleep and real timers in tests that do not use a fake clock or synctest",
	Run:  run,
}

// blocking lists the time functions that wait on the wall clock.
var blocking = map[string]bool{
	"Sleep":     true,
	"After":     true,
	"Tick":      true,
	"NewTimer":  true,
	"NewTicker": true,
}

// Finding is one reported call.
type Finding struct {
	Pos  token.Pos
	Func string
}

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		name := pass.Fset.Position(file.Pos()).Filename
		if !strings.HasSuffix(name, "_test.go") {
			continue
		}
		for _, f := range Check(file) {
			pass.Report(analysis.Diagnostic{
				Pos:      f.Pos,
				Category: "sleepcheck",
				Message: "test calls time." + f.Func + "; advance a clock.Fake instead " +
					"or run the test under testing/synctest",
			})
		}
	}
	return nil, nil
}

// Check returns the wall-clock waits in file. Files importing testing/synctest
// are exempt.
func Check(file *ast.File) []Finding {
	timeName := ""
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			continue
		}
		switch path {
		case "testing/synctest":
			return nil
		case "time":
			timeName = "time"
			if imp.Name != nil {
				timeName = imp.Name.Name
			}
		}
	}
	if timeName == "" || timeName == "_" {
		return nil
	}

	var out []Finding
	ast.Inspect(file, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		if id, ok := sel.X.(*ast.Ident); ok && id.Name == timeName && blocking[sel.Sel.Name] {
			out = append(out, Finding{Pos: call.Pos(), Func: sel.Sel.Name})
		}
		return true
	})
	return out
}
