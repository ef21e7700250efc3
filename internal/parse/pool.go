package parse

import (
	"context"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pulp-platform/morty/internal/debug"
	mortyerrors "github.com/pulp-platform/morty/internal/errors"
	"github.com/pulp-platform/morty/internal/sv"
)

// Options configures the parallel parser.
type Options struct {
	// PropagateDefines serializes parsing so each job's effective defines
	// include every prior job's DefinesOut.
	PropagateDefines bool
	// NoParallel collapses the worker pool to one in-flight job, e.g. for
	// stack-limited environments where the grammar's recursion is deep.
	NoParallel bool
	// IgnoreUnparseable demotes parse failures to warnings and drops the
	// job's declarations instead of aborting the run.
	IgnoreUnparseable bool
}

// Result is the outcome of running the pool over a job list: the ordered
// ParsedFiles plus any non-fatal warnings collected along the way.
type Result struct {
	Files    []*sv.ParsedFile
	Warnings []error
}

// Run executes C2 over jobs, preserving input order in Result.Files
// regardless of scheduling.
func Run(ctx context.Context, grammar *Grammar, jobs []sv.ParseJob, opts Options) (*Result, error) {
	for i := range jobs {
		jobs[i].OrderIndex = i
	}

	var files []*sv.ParsedFile
	var warnings []error
	var err error

	if opts.PropagateDefines || opts.NoParallel {
		files, warnings, err = runSerial(ctx, grammar, jobs, opts)
	} else {
		files, warnings, err = runParallel(ctx, grammar, jobs, opts)
	}
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Job.OrderIndex < files[j].Job.OrderIndex
	})
	for i, f := range files {
		f.FileID = sv.FileID(i)
	}

	return &Result{Files: files, Warnings: warnings}, nil
}

// runSerial parses jobs one at a time, threading DefinesOut from job N into
// job N+1's seed defines when propagation is enabled.
func runSerial(ctx context.Context, grammar *Grammar, jobs []sv.ParseJob, opts Options) ([]*sv.ParsedFile, []error, error) {
	var files []*sv.ParsedFile
	var warnings []error
	carried := map[string]string{}

	for _, job := range jobs {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		seed := job.Defines
		if opts.PropagateDefines {
			seed = mergeDefines(carried, job.Defines)
		}

		pf, err := parseOne(job, grammar, seed)
		if err == nil && pf.ParseFailed {
			err = mortyerrors.NewParseError(job.Path, 0, 0, pf.ParseFailureError)
		}
		if err != nil {
			if opts.IgnoreUnparseable {
				warnings = append(warnings, err)
				debug.LogParse("dropping %s: %v", job.Path, err)
				continue
			}
			return nil, nil, err
		}
		files = append(files, pf)
		if opts.PropagateDefines {
			carried = pf.DefinesOut
		}
	}
	return files, warnings, nil
}

// runParallel uses a bounded errgroup worker pool for structured concurrency
// with backpressure (errgroup.WithContext + SetLimit).
func runParallel(ctx context.Context, grammar *Grammar, jobs []sv.ParseJob, opts Options) ([]*sv.ParsedFile, []error, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerLimit())

	results := make([]*sv.ParsedFile, len(jobs))
	warnOuts := make([][]error, len(jobs))

	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			pf, err := parseOne(job, grammar, job.Defines)
			if err == nil && pf.ParseFailed {
				err = mortyerrors.NewParseError(job.Path, 0, 0, pf.ParseFailureError)
			}
			if err != nil {
				if opts.IgnoreUnparseable {
					warnOuts[i] = []error{err}
					debug.LogParse("dropping %s: %v", job.Path, err)
					return nil
				}
				return err
			}
			results[i] = pf
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var files []*sv.ParsedFile
	var warnings []error
	for i := range results {
		if results[i] != nil {
			files = append(files, results[i])
		}
		warnings = append(warnings, warnOuts[i]...)
	}
	return files, warnings, nil
}

func parseOne(job sv.ParseJob, grammar *Grammar, seed map[string]string) (*sv.ParsedFile, error) {
	src, err := os.ReadFile(job.Path)
	if err != nil {
		return nil, mortyerrors.NewInputError(job.Path, err)
	}

	pp := NewPreprocessor(job.IncludeDirs, seed)
	text, definesOut, err := pp.Run(job.Path, src)
	if err != nil {
		return nil, mortyerrors.NewParseError(job.Path, 0, 0, err)
	}

	cst, parseErr := grammar.Parse(text)
	pf := &sv.ParsedFile{
		Job:              job,
		PreprocessedText: text,
		CST:              cst,
		DefinesOut:       definesOut,
	}
	if parseErr != nil {
		pf.ParseFailed = true
		pf.ParseFailureError = parseErr
	}
	return pf, nil
}

func mergeDefines(upstream, local map[string]string) map[string]string {
	merged := make(map[string]string, len(upstream)+len(local))
	for k, v := range upstream {
		merged[k] = v
	}
	for k, v := range local {
		merged[k] = v
	}
	return merged
}

func workerLimit() int {
	n := runtime.NumCPU()
	if n < 1 {
		n = 1
	}
	return n
}
