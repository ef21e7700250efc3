// Package usage implements C4, the usage graph builder: the Usage list
// and undefined-module diagnostics from which C5 builds its reachability
// graph.
package usage

import (
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/sv"
)

// Undefined is one module-instantiation reference that did not resolve to
// any known DesignUnit. Line/Column are 1-based.
type Undefined struct {
	FileID FileID
	Path   string
	Name   string
	Span   sv.Span
	Line   int
	Column int
}

// FileID re-exported for readability in this package's exported API.
type FileID = sv.FileID

// Result is C4's output: every occurrence found across all files, plus
// undefined-module diagnostics.
type Result struct {
	Usages    []sv.Usage
	Undefined []Undefined
}

// globalImport records an `import pkg::*|item;` seen outside any
// DesignUnit's outer span — an ambient, file-root scope that applies to
// every DesignUnit declared later in the same file.
type globalImport struct {
	fileID   sv.FileID
	span     sv.Span
	pkg      string
	wildcard bool
}

// Build runs C4 over every parsed file against the declaration table C3
// produced.
func Build(files []*sv.ParsedFile, table *index.Table) *Result {
	res := &Result{}
	var globals []globalImport

	for _, pf := range files {
		if pf.ParseFailed {
			continue
		}
		fileUsages, fileGlobals, undefined := scanFile(pf, table)
		res.Usages = append(res.Usages, fileUsages...)
		res.Undefined = append(res.Undefined, undefined...)
		globals = append(globals, fileGlobals...)
	}

	// End-label usages, one per DesignUnit that has one.
	for _, du := range table.All {
		if !du.HasEndLabel {
			continue
		}
		res.Usages = append(res.Usages, sv.Usage{
			FileID:  du.FileID,
			Span:    du.EndLabelSpan,
			Target:  sv.UsageTarget{Kind: sv.TargetEndLabel, Name: du.Name},
			Context: "end label for " + du.Kind.String() + " " + du.Name,
		})
	}

	// Propagate each global import to every DesignUnit declared later in
	// the same file.
	for _, g := range globals {
		for _, du := range table.All {
			if du.FileID != g.fileID || du.OuterSpan.Start <= g.span.Start {
				continue
			}
			kind := sv.TargetImportItem
			if g.wildcard {
				kind = sv.TargetImportWildcard
			}
			res.Usages = append(res.Usages, sv.Usage{
				FileID:  g.fileID,
				Span:    g.span,
				Target:  sv.UsageTarget{Kind: kind, Name: g.pkg},
				Context: "global import into " + du.Kind.String() + " " + du.Name,
			})
		}
	}

	return res
}
