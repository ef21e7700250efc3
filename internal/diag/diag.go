// Package diag implements C8: collecting and formatting the diagnostics
// the pipeline produces (undefined modules, duplicate declarations, parse
// failures) without ever stopping the run over a resolve/conflict finding.
package diag

import (
	"fmt"
	"sort"

	"github.com/hbollon/go-edlib"

	mortyerrors "github.com/pulp-platform/morty/internal/errors"
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/usage"
)

// Warning is one non-fatal diagnostic line.
type Warning struct {
	Message string
	Path    string
	Line    int
	Column  int
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("morty: warning: %s", w.Message)
	}
	if w.Line == 0 {
		return fmt.Sprintf("morty: warning: %s (%s)", w.Message, w.Path)
	}
	return fmt.Sprintf("morty: warning: %s (%s:%d:%d)", w.Message, w.Path, w.Line, w.Column)
}

// Options controls which diagnostics this run suppresses.
type Options struct {
	// SuppressUndefined silences specific undefined-module names.
	SuppressUndefined map[string]bool
}

// fuzzyThreshold is the minimum go-edlib similarity score (0..1) before a
// nearest-name suggestion is considered close enough to surface; below
// this the two names are probably unrelated.
const fuzzyThreshold = 0.6

// Collect gathers every C8 diagnostic into one ordered Warning list: parse
// warnings first (they explain why declarations might be missing),
// duplicate-declaration conflicts next, undefined-module references last.
// retained is the pruned set of surviving DesignUnit names (C5's output):
// an undefined instantiation whose owning DesignUnit was pruned away is
// dropped, since a unit that no longer exists in the pickle can't warrant a
// warning about what it references. A nil retained disables this filter.
func Collect(table *index.Table, usages *usage.Result, parseWarnings []error, retained map[string]bool, opts Options) []Warning {
	var warnings []Warning

	for _, pw := range parseWarnings {
		warnings = append(warnings, Warning{Message: pw.Error()})
	}

	for _, c := range table.Conflicts {
		warnings = append(warnings, Warning{Message: c.Error(), Path: c.LaterPath})
	}

	names := knownNames(table)
	for _, u := range usages.Undefined {
		if opts.SuppressUndefined[u.Name] {
			continue
		}
		if owner := table.OwnerOf(u.FileID, u.Span); retained != nil && owner != nil && !retained[owner.Name] {
			continue
		}
		msg := fmt.Sprintf("instantiation of undefined module %q", u.Name)
		if suggestion, ok := nearestName(u.Name, names); ok {
			msg += fmt.Sprintf(" (did you mean %q?)", suggestion)
		}
		warnings = append(warnings, Warning{Message: msg, Path: u.Path, Line: u.Line, Column: u.Column})
	}

	return warnings
}

// AsMultiError packages collected warnings as a *mortyerrors.MultiError for
// callers that want a single error value to log or return.
func AsMultiError(warnings []Warning) error {
	if len(warnings) == 0 {
		return nil
	}
	errs := make([]error, len(warnings))
	for i, w := range warnings {
		errs[i] = fmt.Errorf("%s", w.String())
	}
	return mortyerrors.NewMultiError(errs)
}

func knownNames(table *index.Table) []string {
	names := make([]string, 0, len(table.ByName))
	for name := range table.ByName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// nearestName finds the known DesignUnit name most similar to target by
// Jaro-Winkler similarity, using go-edlib for "did you mean" suggestions
// over symbol names.
func nearestName(target string, names []string) (string, bool) {
	best := ""
	bestScore := float32(-1)
	for _, n := range names {
		score, err := edlib.StringsSimilarity(target, n, edlib.JaroWinkler)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = n
		}
	}
	if bestScore < fuzzyThreshold {
		return "", false
	}
	return best, true
}
