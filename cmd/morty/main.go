// Command morty pickles a SystemVerilog source set into one renamed,
// source-faithful file. Flag parsing and subcommand dispatch
// follow urfave/cli/v2 root-flags-plus-subcommand shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pulp-platform/morty/internal/bundle"
	"github.com/pulp-platform/morty/internal/config"
	"github.com/pulp-platform/morty/internal/debug"
	"github.com/pulp-platform/morty/internal/emit"
	mortymcp "github.com/pulp-platform/morty/internal/mcp"
	"github.com/pulp-platform/morty/internal/pipeline"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "morty",
		Usage:                  "pickle SystemVerilog sources into one renamed file",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Value: ".morty.toml", Usage: "Project defaults file"},
			&cli.StringFlag{Name: "prefix", Aliases: []string{"p"}, Usage: "Rename prefix"},
			&cli.StringFlag{Name: "suffix", Aliases: []string{"s"}, Usage: "Rename suffix"},
			&cli.StringSliceFlag{Name: "exclude-rename", Usage: "Retain unit but skip renaming (repeatable)"},
			&cli.StringSliceFlag{Name: "exclude", Usage: "Remove unit entirely (repeatable)"},
			&cli.StringSliceFlag{Name: "preserve", Usage: "Force retention under top-module pruning (repeatable)"},
			&cli.StringFlag{Name: "top-module", Usage: "Prune to units reachable from this module"},
			&cli.StringSliceFlag{Name: "library-file", Usage: "Parse as library: declarations only (repeatable)"},
			&cli.StringSliceFlag{Name: "library-dir", Usage: "Parse every SV file under dir as library (repeatable)"},
			&cli.StringSliceFlag{Name: "I", Usage: "Include directory (repeatable)"},
			&cli.StringSliceFlag{Name: "D", Usage: "Preprocessor define NAME[=VAL] (repeatable)"},
			&cli.StringSliceFlag{Name: "f", Usage: "JSON manifest or flist bundle file (repeatable)"},
			&cli.BoolFlag{Name: "strip-comments", Usage: "Strip non-documentation comments"},
			&cli.BoolFlag{Name: "keep-defines", Usage: "Do not strip `define/`undef directives"},
			&cli.BoolFlag{Name: "keep-timescale", Usage: "Do not strip `timescale/timeunit/timeprecision"},
			&cli.BoolFlag{Name: "propagate-defines", Usage: "Carry defines across files (forces serial parsing)"},
			&cli.BoolFlag{Name: "no-parallel", Usage: "Force single-threaded parsing"},
			&cli.BoolFlag{Name: "ignore-unparseable", Aliases: []string{"i"}, Usage: "Demote parse/input failures to warnings"},
			&cli.StringFlag{Name: "o", Usage: "Output file path (default stdout)"},
			&cli.StringFlag{Name: "manifest", Usage: "Write retained-file manifest to path"},
			&cli.BoolFlag{Name: "print-sources", Usage: "Print retained source paths instead of pickled text"},
			&cli.StringSliceFlag{Name: "suppress-undefined-warnings", Usage: "Silence a specific undefined-module name (repeatable)"},
			&cli.BoolFlag{Name: "no-header", Usage: "Disable the provenance header", Hidden: true},
			&cli.BoolFlag{Name: "v", Usage: "Verbose diagnostic tracing"},
			&cli.BoolFlag{Name: "q", Usage: "Silence warnings"},
			&cli.StringFlag{Name: "profile-cpu", Hidden: true, Usage: "Write a CPU profile to path"},
			&cli.StringFlag{Name: "profile-mem", Hidden: true, Usage: "Write a heap profile to path"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run morty as an MCP server exposing the `pickle` tool over stdio",
				Action: func(c *cli.Context) error {
					return runServe(c.Context)
				},
			},
		},
		Action: runPickle,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "morty: "+err.Error())
		os.Exit(exitCodeFor(err))
	}
}

// usageError marks an error as a CLI usage mistake
// rather than a pipeline failure (exit code 1).
type usageError struct{ error }

func exitCodeFor(err error) int {
	if _, ok := err.(usageError); ok {
		return 2
	}
	return 1
}

func runServe(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return mortymcp.NewServer().Run(ctx)
}

func runPickle(c *cli.Context) error {
	if c.Bool("v") {
		debug.SetOutput(os.Stderr)
	}
	if c.Bool("q") {
		debug.SetOutput(nil)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	req, err := buildRequest(c, cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resp, err := pipeline.Run(ctx, req)
	if err != nil {
		return err
	}

	if err := emit.Write(c.String("o"), resp.Output); err != nil {
		return err
	}
	if manifestPath := c.String("manifest"); manifestPath != "" {
		if err := emit.WriteManifest(manifestPath, resp.Manifest); err != nil {
			return err
		}
	}

	if !c.Bool("q") {
		for _, w := range resp.Warnings {
			fmt.Fprintln(os.Stderr, w.String())
		}
	}

	return nil
}

func buildRequest(c *cli.Context, cfg *config.File) (pipeline.Request, error) {
	prefix := firstNonEmpty(c.String("prefix"), cfg.Prefix)
	suffix := firstNonEmpty(c.String("suffix"), cfg.Suffix)
	topModule := firstNonEmpty(c.String("top-module"), cfg.TopModule)

	bundles, err := collectBundles(c, cfg)
	if err != nil {
		return pipeline.Request{}, err
	}

	extraDefines := map[string]string{}
	for k, v := range cfg.Defines {
		extraDefines[k] = v
	}
	for _, d := range c.StringSlice("D") {
		name, value, _ := strings.Cut(d, "=")
		extraDefines[name] = value
	}

	req := pipeline.Request{
		Bundles:           bundles,
		LibraryDirs:       append(append([]string{}, cfg.LibraryDirs...), c.StringSlice("library-dir")...),
		ExtraDefines:      extraDefines,
		PropagateDefines:  c.Bool("propagate-defines") || cfg.PropagateDefines,
		NoParallel:        c.Bool("no-parallel") || cfg.NoParallel,
		IgnoreUnparseable: c.Bool("ignore-unparseable") || cfg.IgnoreUnparseable,
		Policy: sv.RenamePolicy{
			Prefix:        prefix,
			Suffix:        suffix,
			RenameExclude: toSet(c.StringSlice("exclude-rename")),
			Exclude:       toSet(c.StringSlice("exclude")),
			Preserve:      toSet(c.StringSlice("preserve")),
		},
		TopModule:         topModule,
		Preserve:          toSet(c.StringSlice("preserve")),
		StripComments:     c.Bool("strip-comments") || cfg.StripComments,
		KeepDefines:       c.Bool("keep-defines") || cfg.KeepDefines,
		KeepTimescale:     c.Bool("keep-timescale") || cfg.KeepTimescale,
		NoHeader:          c.Bool("no-header"),
		PrintSources:      c.Bool("print-sources"),
		SuppressUndefined: toSet(c.StringSlice("suppress-undefined-warnings")),
	}
	return req, nil
}

// collectBundles merges the positional source files and explicit
// --library-file entries (as one implicit bundle, always first), followed
// by every -f manifest/flist bundle in the order the -f flags were given.
func collectBundles(c *cli.Context, cfg *config.File) ([]bundle.Bundle, error) {
	var bundles []bundle.Bundle

	includeDirs := append(append([]string{}, cfg.IncludeDirs...), c.StringSlice("I")...)

	if positional := c.Args().Slice(); len(positional) > 0 || len(c.StringSlice("library-file")) > 0 {
		bundles = append(bundles, bundle.Bundle{
			IncludeDirs:  includeDirs,
			Files:        positional,
			LibraryFiles: c.StringSlice("library-file"),
		})
	}

	for _, path := range c.StringSlice("f") {
		if strings.HasSuffix(path, ".json") {
			manifestBundles, err := bundle.LoadManifest(path)
			if err != nil {
				return nil, err
			}
			bundles = append(bundles, manifestBundles...)
			continue
		}
		flistBundle, err := bundle.LoadFlist(path)
		if err != nil {
			return nil, err
		}
		bundles = append(bundles, flistBundle)
	}

	return bundles, nil
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, item := range items {
		s[item] = true
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
