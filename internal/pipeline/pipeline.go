// Package pipeline wires C1 through C8 into the single entry point both
// `cmd/morty`'s CLI and `morty serve`'s MCP tool call: load bundles, parse,
// index, build the usage graph, prune, plan renames, and emit. Keeping one
// orchestration function means the CLI and the MCP surface can never drift
// in behavior.
package pipeline

import (
	"context"

	"github.com/pulp-platform/morty/internal/bundle"
	"github.com/pulp-platform/morty/internal/diag"
	"github.com/pulp-platform/morty/internal/emit"
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/parse"
	"github.com/pulp-platform/morty/internal/prune"
	"github.com/pulp-platform/morty/internal/rename"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/usage"
)

// Request bundles every knob the pipeline needs, independent of how the
// caller collected them (CLI flags, MCP tool arguments, or `.morty.toml`
// defaults).
type Request struct {
	Bundles     []bundle.Bundle
	LibraryDirs []string

	ExtraDefines      map[string]string
	PropagateDefines  bool
	NoParallel        bool
	IgnoreUnparseable bool

	Policy sv.RenamePolicy

	TopModule string
	Preserve  map[string]bool

	StripComments bool
	KeepDefines   bool
	KeepTimescale bool

	NoHeader     bool
	PrintSources bool

	SuppressUndefined map[string]bool
}

// Response is everything a caller might want to report back: the pickled
// (or --print-sources) bytes, the retained-file manifest, and the
// diagnostics collected along the way.
type Response struct {
	Output    []byte
	Manifest  emit.Manifest
	Warnings  []diag.Warning
	Undefined int
}

// Run executes C1 through C7 end to end and collects C8 diagnostics.
// Parse/input errors are returned as-is (fatal); everything
// else is folded into Response.Warnings.
func Run(ctx context.Context, req Request) (*Response, error) {
	jobs, err := bundle.BuildJobs(req.Bundles, req.LibraryDirs, bundle.Options{
		ExtraDefines:      req.ExtraDefines,
		Propagate:         req.PropagateDefines,
		IgnoreUnparseable: req.IgnoreUnparseable,
	})
	if err != nil {
		return nil, err
	}

	grammar := parse.NewGrammar()
	parseResult, err := parse.Run(ctx, grammar, jobs, parse.Options{
		PropagateDefines:  req.PropagateDefines,
		NoParallel:        req.NoParallel,
		IgnoreUnparseable: req.IgnoreUnparseable,
	})
	if err != nil {
		return nil, err
	}

	table := index.Build(parseResult.Files)
	usages := usage.Build(parseResult.Files, table)

	pruneResult := prune.Prune(table, usages, prune.Options{
		TopModule: req.TopModule,
		Preserve:  req.Preserve,
		Exclude:   req.Policy.Exclude,
	})

	edits := rename.Plan(parseResult.Files, table, usages, pruneResult.Retained, req.Policy, rename.StripOptions{
		StripComments: req.StripComments,
		KeepDefines:   req.KeepDefines,
		KeepTimescale: req.KeepTimescale,
	})

	retainedFiles := pruneResult.RetainedFiles(table)
	output, retainedPaths := emit.Run(parseResult.Files, edits, retainedFiles, emit.Options{
		NoHeader:     req.NoHeader,
		PrintSources: req.PrintSources,
	})

	warnings := diag.Collect(table, usages, parseResult.Warnings, pruneResult.Retained, diag.Options{SuppressUndefined: req.SuppressUndefined})

	manifest := emit.Manifest{
		Files:       retainedPaths,
		IncludeDirs: collectIncludeDirs(req.Bundles, req.LibraryDirs),
		Defines:     collectDefines(req.Bundles, req.ExtraDefines),
	}

	return &Response{
		Output:    output,
		Manifest:  manifest,
		Warnings:  warnings,
		Undefined: len(usages.Undefined),
	}, nil
}

func collectIncludeDirs(bundles []bundle.Bundle, libraryDirs []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range bundles {
		for _, d := range b.IncludeDirs {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	for _, d := range libraryDirs {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func collectDefines(bundles []bundle.Bundle, extra map[string]string) map[string]string {
	out := map[string]string{}
	for _, b := range bundles {
		for k, v := range b.Defines {
			out[k] = v
		}
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
