// Package bundle implements the file bundle loader: normalizing
// manifest/flist/CLI input into an ordered list of ParseJobs and expanding
// --library-dir globs. BuildJobs does not read Options.Propagate: define
// propagation across jobs happens in the parser.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/pulp-platform/morty/internal/debug"
	mortyerrors "github.com/pulp-platform/morty/internal/errors"
	"github.com/pulp-platform/morty/internal/sv"
)

// Bundle is one `{include_dirs, defines, files[], library_files[]}` group,
// matching the manifest format.
type Bundle struct {
	IncludeDirs  []string          `json:"include_dirs"`
	Defines      map[string]string `json:"defines"`
	Files        []string          `json:"files"`
	LibraryFiles []string          `json:"library_files,omitempty"`
}

// libraryGlobs are the extensions --library-dir expands recursively,
// matched with doublestar the same way a file watcher would match an
// include/exclude glob list.
var libraryGlobs = []string{"**/*.sv", "**/*.svh", "**/*.v"}

var manifestSchema = &jsonschema.Schema{
	Type: "array",
	Items: &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"include_dirs":  {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"defines":       {Type: "object"},
			"files":         {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"library_files": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
	},
}

// LoadManifest validates and decodes a JSON manifest file, validating the
// raw document against manifestSchema before unmarshaling into typed
// Bundles.
func LoadManifest(path string) ([]Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mortyerrors.NewInputError(path, err)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, mortyerrors.NewInputError(path, fmt.Errorf("malformed manifest JSON: %w", err))
	}
	resolved, err := manifestSchema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("morty: internal manifest schema error: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, mortyerrors.NewInputError(path, fmt.Errorf("manifest does not match expected shape: %w", err))
	}

	var bundles []Bundle
	if err := json.Unmarshal(data, &bundles); err != nil {
		return nil, mortyerrors.NewInputError(path, err)
	}
	debug.LogBundle("loaded manifest %s: %d bundle(s)", path, len(bundles))
	return bundles, nil
}

// LoadFlist parses a whitespace-token `+incdir+`/`+define+` flist file.
func LoadFlist(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, mortyerrors.NewInputError(path, err)
	}

	b := Bundle{Defines: map[string]string{}}
	for _, line := range strings.Split(string(data), "\n") {
	tokens:
		for _, tok := range strings.Fields(line) {
			switch {
			case strings.HasPrefix(tok, "+incdir+"):
				b.IncludeDirs = append(b.IncludeDirs, strings.TrimPrefix(tok, "+incdir+"))
			case strings.HasPrefix(tok, "+define+"):
				def := strings.TrimPrefix(tok, "+define+")
				name, value, _ := strings.Cut(def, "=")
				b.Defines[name] = value
			case strings.HasPrefix(tok, "//"):
				// flist files permit trailing line comments; anything after
				// "//" on a line is not a token.
				break tokens
			default:
				b.Files = append(b.Files, tok)
			}
		}
	}
	debug.LogBundle("loaded flist %s: %d file(s), %d include dir(s)", path, len(b.Files), len(b.IncludeDirs))
	return b, nil
}

// Options configures job construction.
type Options struct {
	ExtraDefines      map[string]string
	Propagate         bool
	IgnoreUnparseable bool
}

// BuildJobs flattens an ordered bundle list into ParseJobs, expanding
// --library-dir entries via recursive doublestar globs and applying the
// global extra-defines list to every job.
func BuildJobs(bundles []Bundle, libraryDirs []string, opts Options) ([]sv.ParseJob, error) {
	var jobs []sv.ParseJob

	appendJob := func(path string, includeDirs []string, defines map[string]string, isLibrary bool) error {
		if _, err := os.Stat(path); err != nil {
			if opts.IgnoreUnparseable {
				debug.LogBundle("dropping missing file %s: %v", path, err)
				return nil
			}
			return mortyerrors.NewInputError(path, err)
		}
		merged := make(map[string]string, len(defines)+len(opts.ExtraDefines))
		for k, v := range defines {
			merged[k] = v
		}
		for k, v := range opts.ExtraDefines {
			merged[k] = v
		}
		jobs = append(jobs, sv.ParseJob{
			Path:        path,
			IncludeDirs: includeDirs,
			Defines:     merged,
			IsLibrary:   isLibrary,
		})
		return nil
	}

	for _, b := range bundles {
		for _, f := range b.Files {
			if err := appendJob(f, b.IncludeDirs, b.Defines, false); err != nil {
				return nil, err
			}
		}
		for _, f := range b.LibraryFiles {
			if err := appendJob(f, b.IncludeDirs, b.Defines, true); err != nil {
				return nil, err
			}
		}
	}

	for _, dir := range libraryDirs {
		files, err := expandLibraryDir(dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if err := appendJob(f, nil, nil, true); err != nil {
				return nil, err
			}
		}
	}

	for i := range jobs {
		jobs[i].OrderIndex = i
	}
	return jobs, nil
}

// expandLibraryDir recursively globs dir for SV source files using
// doublestar.
func expandLibraryDir(dir string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, pattern := range libraryGlobs {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("morty: --library-dir %s: %w", dir, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}
