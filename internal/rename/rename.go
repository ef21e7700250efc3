// Package rename implements C6, the rename planner: turning the retained
// DesignUnit set, the usage graph, and a RenamePolicy into a sorted,
// non-overlapping list of byte-range Edits per file.
package rename

import (
	"regexp"
	"sort"

	"github.com/pulp-platform/morty/internal/debug"
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/usage"
)

// StripOptions configures the optional deletion passes.
type StripOptions struct {
	StripComments bool
	KeepDefines   bool
	KeepTimescale bool
}

// Plan runs C6 over every parsed file and returns each file's Edit list,
// already sorted and conflict-resolved.
func Plan(files []*sv.ParsedFile, table *index.Table, usages *usage.Result, retained map[string]bool, policy sv.RenamePolicy, strip StripOptions) map[sv.FileID][]sv.Edit {
	out := make(map[sv.FileID][]sv.Edit, len(files))

	deletionSpans := make(map[sv.FileID][]sv.Span)
	for _, du := range table.All {
		// Only the first-seen unit (the one table.ByName/retained track) is
		// subject to pruning; shadowed duplicates never reach emission
		// either way, but we still delete their text so a library stub
		// doesn't leak into the pickle.
		first := table.ByName[du.Name] == du
		if first && retained[du.Name] {
			continue
		}
		out[du.FileID] = append(out[du.FileID], sv.Edit{FileID: du.FileID, Span: du.OuterSpan})
		deletionSpans[du.FileID] = append(deletionSpans[du.FileID], du.OuterSpan)
	}

	for name, du := range table.ByName {
		if !retained[name] || !policy.Renamed(name) {
			continue
		}
		newName := []byte(policy.NewName(name))
		out[du.FileID] = append(out[du.FileID], sv.Edit{FileID: du.FileID, Span: du.NameSpan, Replacement: newName})
		if du.HasEndLabel {
			out[du.FileID] = append(out[du.FileID], sv.Edit{FileID: du.FileID, Span: du.EndLabelSpan, Replacement: newName})
		}
	}

	for _, u := range usages.Usages {
		du, known := table.ByName[u.Target.Name]
		if !known || !retained[du.Name] || !policy.Renamed(du.Name) {
			continue
		}
		out[u.FileID] = append(out[u.FileID], sv.Edit{FileID: u.FileID, Span: u.Span, Replacement: []byte(policy.NewName(du.Name))})
	}

	for _, pf := range files {
		if pf.ParseFailed {
			continue
		}
		if strip.StripComments {
			out[pf.FileID] = append(out[pf.FileID], commentStripEdits(pf)...)
		}
		if !strip.KeepDefines || !strip.KeepTimescale {
			out[pf.FileID] = append(out[pf.FileID], directiveStripEdits(pf, strip)...)
		}
	}

	for _, pf := range files {
		out[pf.FileID] = resolveConflicts(pf.FileID, out[pf.FileID], deletionSpans[pf.FileID])
	}

	return out
}

// resolveConflicts sorts a file's edits by start offset and applies
// deletion-dominance: an edit strictly contained in a deletion span is
// dropped ("deletion dominates renaming"), and any residual
// non-containing overlap — which should never happen if the indexer held
// its non-straddling invariant — is resolved defensively by dropping the
// later edit rather than corrupting the output.
func resolveConflicts(fileID sv.FileID, edits []sv.Edit, deletions []sv.Span) []sv.Edit {
	filtered := edits[:0:0]
	for _, e := range edits {
		dominated := false
		for _, d := range deletions {
			if d == e.Span {
				continue // this is the deletion edit itself
			}
			if d.Contains(e.Span) {
				dominated = true
				break
			}
		}
		if !dominated {
			filtered = append(filtered, e)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Span.Start < filtered[j].Span.Start })

	result := filtered[:0:0]
	for _, e := range filtered {
		if len(result) == 0 {
			result = append(result, e)
			continue
		}
		last := result[len(result)-1]
		if e.Span.Overlaps(last.Span) {
			debug.LogRename("dropping overlapping edit in file %d at %d..%d (conflicts with %d..%d)",
				fileID, e.Span.Start, e.Span.End, last.Span.Start, last.Span.End)
			continue
		}
		if last.Span.Contains(e.Span) {
			continue
		}
		result = append(result, e)
	}
	return result
}

// commentStripEdits deletes every comment token whose text is not a
// documentation comment. A line comment is kept when
// it starts with "////", "///", or "//!"; a block comment is kept when it
// starts with "/***" (the block equivalent of the four-slash rule).
func commentStripEdits(pf *sv.ParsedFile) []sv.Edit {
	var edits []sv.Edit
	sc := index.NewScanner(pf.PreprocessedText)
	for {
		tok, ok := sc.Next()
		if !ok {
			break
		}
		if tok.Kind != index.TokComment {
			continue
		}
		if isDocComment(tok.Text) {
			continue
		}
		edits = append(edits, sv.Edit{FileID: pf.FileID, Span: sv.Span{Start: tok.Span.Start, End: tok.Span.End}})
	}
	return edits
}

func isDocComment(text string) bool {
	switch {
	case len(text) >= 4 && text[:4] == "////":
		return true
	case len(text) >= 3 && text[:3] == "///":
		return true
	case len(text) >= 3 && text[:3] == "//!":
		return true
	case len(text) >= 4 && text[:4] == "/***":
		return true
	}
	return false
}

var (
	// defineDirectiveRe matches `define/`undef/`timescale directives,
	// including any backslash-newline continuation lines so that a
	// multi-line `define is stripped entirely.
	defineDirectiveRe = regexp.MustCompile("(?m)^[ \t]*`(define|undef|timescale)\\b.*(?:\\\\\r?\n.*)*$")
	timeDeclRe        = regexp.MustCompile(`(?m)\b(timeunit|timeprecision)\b[^;]*;`)
	trailingBlankRe   = regexp.MustCompile(`\A\r?\n`)
)

// directiveStripEdits deletes `define/`undef/`timescale/timeunit/
// timeprecision directive spans. Stripping a `timescale directive also
// consumes the single blank line immediately following it, since that
// blank line exists only to visually separate the directive from the
// code it used to precede (see DESIGN.md for this decision).
func directiveStripEdits(pf *sv.ParsedFile, strip StripOptions) []sv.Edit {
	var edits []sv.Edit
	text := pf.PreprocessedText

	if !strip.KeepDefines {
		for _, loc := range defineDirectiveRe.FindAllIndex(text, -1) {
			start, end := uint32(loc[0]), uint32(loc[1])
			word := string(defineDirectiveRe.FindSubmatch(text[loc[0]:loc[1]])[1])
			if word == "timescale" {
				if strip.KeepTimescale {
					continue
				}
				end = consumeTrailingBlankLine(text, end)
			}
			edits = append(edits, sv.Edit{FileID: pf.FileID, Span: sv.Span{Start: start, End: end}})
		}
	} else if !strip.KeepTimescale {
		for _, loc := range defineDirectiveRe.FindAllIndex(text, -1) {
			m := defineDirectiveRe.FindSubmatch(text[loc[0]:loc[1]])
			if string(m[1]) != "timescale" {
				continue
			}
			end := consumeTrailingBlankLine(text, uint32(loc[1]))
			edits = append(edits, sv.Edit{FileID: pf.FileID, Span: sv.Span{Start: uint32(loc[0]), End: end}})
		}
	}

	if !strip.KeepTimescale {
		for _, loc := range timeDeclRe.FindAllIndex(text, -1) {
			edits = append(edits, sv.Edit{FileID: pf.FileID, Span: sv.Span{Start: uint32(loc[0]), End: uint32(loc[1])}})
		}
	}

	return edits
}

func consumeTrailingBlankLine(text []byte, end uint32) uint32 {
	rest := text[end:]
	// Skip the directive's own line terminator first.
	if loc := trailingBlankRe.FindIndex(rest); loc != nil {
		rest = rest[loc[1]:]
		end += uint32(loc[1])
	} else {
		return end
	}
	if loc := trailingBlankRe.FindIndex(rest); loc != nil {
		end += uint32(loc[1])
	}
	return end
}
