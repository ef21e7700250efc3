// Package emit implements C7: applying the rename planner's Edits to each
// file's preprocessed text, concatenating the results in bundle order, and
// writing the pickled output plus an optional manifest.
package emit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pulp-platform/morty/internal/debug"
	mortyerrors "github.com/pulp-platform/morty/internal/errors"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/version"
)

// Options configures C7.
type Options struct {
	// NoHeader disables the provenance header.
	NoHeader bool
	// PrintSources emits the ordered retained source paths instead of the
	// pickled text.
	PrintSources bool
}

// Manifest is the optional retained-file manifest.
type Manifest struct {
	Files       []string          `json:"files"`
	IncludeDirs []string          `json:"include_dirs"`
	Defines     map[string]string `json:"defines"`
}

// ApplyFile walks a single file's sorted, conflict-resolved Edit list and
// returns the transformed byte string, copying unedited bytes verbatim.
func ApplyFile(pf *sv.ParsedFile, edits []sv.Edit) []byte {
	text := pf.PreprocessedText
	sorted := make([]sv.Edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Span.Start < sorted[j].Span.Start })

	var out bytes.Buffer
	out.Grow(len(text))
	cursor := uint32(0)
	for _, e := range sorted {
		if e.Span.Start < cursor {
			continue // already covered by a preceding edit; defensive only
		}
		out.Write(text[cursor:e.Span.Start])
		out.Write(e.Replacement)
		cursor = e.Span.End
	}
	if int(cursor) < len(text) {
		out.Write(text[cursor:])
	}
	return out.Bytes()
}

// isEmitted reports whether a file's transformed text should appear in the
// pickle at all: library files are declarations-only and are dropped
// unless at least one of their declared units was retained.
func isEmitted(pf *sv.ParsedFile, retainedHere map[sv.FileID]bool) bool {
	if pf.ParseFailed {
		return false
	}
	if !pf.Job.IsLibrary {
		return true
	}
	return retainedHere[pf.FileID]
}

// Run produces the final pickled byte string (or, under PrintSources, the
// ordered list of retained paths) for the given files and their Edit sets.
// retainedByFile marks which FileIDs contributed at least one retained
// DesignUnit, used to decide whether a library file is emitted at all.
func Run(files []*sv.ParsedFile, edits map[sv.FileID][]sv.Edit, retainedByFile map[sv.FileID]bool, opts Options) ([]byte, []string) {
	var retainedPaths []string
	var out bytes.Buffer

	if !opts.NoHeader && !opts.PrintSources {
		out.WriteString(ProvenanceHeader())
		out.WriteByte('\n')
	}

	first := true
	for _, pf := range files {
		if !isEmitted(pf, retainedByFile) {
			continue
		}
		retainedPaths = append(retainedPaths, pf.Job.Path)
		if opts.PrintSources {
			continue
		}
		if !first {
			out.WriteByte('\n')
		}
		first = false
		out.Write(ApplyFile(pf, edits[pf.FileID]))
	}

	if opts.PrintSources {
		var sb bytes.Buffer
		for _, p := range retainedPaths {
			sb.WriteString(p)
			sb.WriteByte('\n')
		}
		return sb.Bytes(), retainedPaths
	}
	return out.Bytes(), retainedPaths
}

// ProvenanceHeader returns the top-of-output comment.
func ProvenanceHeader() string {
	return fmt.Sprintf("// Compiled by morty %s at %s", version.Version, time.Now().Format("2006-01-02T15:04:05-07:00"))
}

// Write sends the final bytes to path, or stdout when path is empty,
// writing through a temporary file and renaming into place so a
// mid-write cancellation never leaves a partial file at path.
func Write(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		if err != nil {
			return mortyerrors.NewOutputError("<stdout>", err)
		}
		return nil
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".morty-*.tmp")
	if err != nil {
		return mortyerrors.NewOutputError(path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return mortyerrors.NewOutputError(path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return mortyerrors.NewOutputError(path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return mortyerrors.NewOutputError(path, err)
	}
	debug.LogEmit("wrote %d bytes to %s", len(data), path)
	return nil
}

// WriteManifest writes the retained-file manifest as JSON, atomically like
// Write.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return mortyerrors.NewOutputError(path, err)
	}
	return Write(path, data)
}
