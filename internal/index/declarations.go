package index

import (
	mortyerrors "github.com/pulp-platform/morty/internal/errors"
	"github.com/pulp-platform/morty/internal/sv"
)

// Table is the declaration table C3 produces: every DesignUnit and
// package-scoped Symbol seen across the whole parsed-file set, plus the
// conflict warnings produced by the duplicate-name policy.
//
// Duplicate-name policy: morty keeps first-seen-wins for resolution and emission —
// the earliest DesignUnit with a given name is what usages resolve to and
// what survives pruning/renaming — while still recording every later
// same-name declaration in Table.All, where the rename planner finds the
// shadowed duplicates and deletes their text. Two units may share a name across files without a
// conflict warning only when at least one of them is library-only.
type Table struct {
	// ByName holds, per name, the first-seen DesignUnit (the one usages
	// resolve to and the one that gets pruned/renamed).
	ByName map[string]*sv.DesignUnit
	// All holds every DesignUnit seen, including shadowed duplicates, in
	// declaration order — used by the rename planner and the usage
	// builder, which need every declaration rather than only the first.
	All []*sv.DesignUnit
	// Symbols holds package-scoped symbols keyed by "pkg.name".
	Symbols map[string]*sv.Symbol

	Conflicts []*mortyerrors.ConflictError

	// PathByFile maps each FileID to its source path, for diagnostics.
	PathByFile map[sv.FileID]string
}

// OwnerOf finds the tightest first-seen DesignUnit whose outer span
// contains the given file/span, i.e. the unit that "owns" a usage or
// diagnostic found at that location. Returns nil when the location falls
// outside every known DesignUnit (e.g. file-root scope).
func (t *Table) OwnerOf(fileID sv.FileID, span sv.Span) *sv.DesignUnit {
	var best *sv.DesignUnit
	for _, du := range t.ByName {
		if du.FileID != fileID || !du.OuterSpan.Contains(span) {
			continue
		}
		if best == nil || du.OuterSpan.Len() < best.OuterSpan.Len() {
			best = du
		}
	}
	return best
}

func newTable() *Table {
	return &Table{
		ByName:     make(map[string]*sv.DesignUnit),
		Symbols:    make(map[string]*sv.Symbol),
		PathByFile: make(map[sv.FileID]string),
	}
}

// Build runs C3 over every parsed file, in file order, and returns the
// combined declaration table.
func Build(files []*sv.ParsedFile) *Table {
	t := newTable()
	for _, pf := range files {
		t.PathByFile[pf.FileID] = pf.Job.Path
		if pf.ParseFailed {
			continue
		}
		indexFile(t, pf)
	}
	return t
}

type openUnit struct {
	kind      sv.DesignUnitKind
	nameToken Token
	start     uint32
}

func indexFile(t *Table, pf *sv.ParsedFile) {
	sc := NewScanner(pf.PreprocessedText)
	var stack []*openUnit
	var pending *openUnit // unit keyword seen, awaiting its name token
	var currentPkg string // name of the innermost open package, for symbol qualification

	for {
		tok, ok := sc.Next()
		if !ok {
			break
		}
		if tok.Kind != TokIdent {
			// `: name` end-label handling needs punctuation context, done below.
			continue
		}

		if pending != nil {
			pending.nameToken = tok
			stack = append(stack, pending)
			if pending.kind == sv.KindPackage {
				currentPkg = tok.Text
			}
			pending = nil
			continue
		}

		if endKw, isUnit := unitKeywords[tok.Text]; isUnit {
			pending = &openUnit{kind: kindForKeyword(tok.Text), start: tok.Span.Start}
			_ = endKw
			continue
		}

		if top := topOfStack(stack); endKeywordFor(top) == tok.Text {
			unit := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			end := tok.Span.End
			nameSpan := sv.Span{Start: unit.nameToken.Span.Start, End: unit.nameToken.Span.End}
			du := &sv.DesignUnit{
				Name:      unit.nameToken.Text,
				Kind:      unit.kind,
				FileID:    pf.FileID,
				OuterSpan: sv.Span{Start: unit.start, End: end},
				NameSpan:  nameSpan,
				IsLibraryOnly: pf.Job.IsLibrary,
				DeclOrder: len(t.All),
			}

			// Optional `: name` end label.
			if endLabel, found := scanEndLabel(sc); found {
				du.HasEndLabel = true
				du.EndLabelSpan = sv.Span{Start: endLabel.Span.Start, End: endLabel.Span.End}
				du.OuterSpan.End = endLabel.Span.End
			}

			addUnit(t, du)
			if du.Kind == sv.KindPackage {
				currentPkg = ""
			}
			continue
		}

		if currentPkg != "" && len(stack) > 0 && topOfStack(stack).kind == sv.KindPackage {
			maybeIndexSymbol(t, pf, sc, currentPkg, tok)
		}
	}
}

func topOfStack(stack []*openUnit) *openUnit {
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}

func endKeywordFor(u *openUnit) string {
	if u == nil {
		return ""
	}
	switch u.kind {
	case sv.KindModule:
		return "endmodule"
	case sv.KindInterface:
		return "endinterface"
	case sv.KindPackage:
		return "endpackage"
	case sv.KindProgram:
		return "endprogram"
	case sv.KindChecker:
		return "endchecker"
	}
	return ""
}

func kindForKeyword(kw string) sv.DesignUnitKind {
	switch kw {
	case "module":
		return sv.KindModule
	case "interface":
		return sv.KindInterface
	case "package":
		return sv.KindPackage
	case "program":
		return sv.KindProgram
	case "checker":
		return sv.KindChecker
	}
	return sv.KindModule
}

// scanEndLabel peeks for `: identifier` immediately after an end keyword.
// It consumes those tokens from sc when found so the main loop doesn't
// re-process them; when the pattern doesn't match it rewinds sc to where
// it started, so the main loop sees those tokens itself.
func scanEndLabel(sc *Scanner) (Token, bool) {
	save := sc.pos
	for {
		tok, ok := sc.Next()
		if !ok {
			sc.pos = save
			return Token{}, false
		}
		if tok.Kind == TokComment {
			continue
		}
		if tok.Kind == TokPunct && tok.Text == ":" {
			for {
				next, ok := sc.Next()
				if !ok {
					sc.pos = save
					return Token{}, false
				}
				if next.Kind == TokComment {
					continue
				}
				if next.Kind == TokIdent {
					return next, true
				}
				sc.pos = save
				return Token{}, false
			}
		}
		sc.pos = save
		return Token{}, false
	}
}

func addUnit(t *Table, du *sv.DesignUnit) {
	t.All = append(t.All, du)

	existing, ok := t.ByName[du.Name]
	if !ok {
		t.ByName[du.Name] = du
		return
	}
	if existing.IsLibraryOnly || du.IsLibraryOnly {
		// A library declaration never conflicts with a non-library one or
		// another library declaration of the same name.
		if existing.IsLibraryOnly && !du.IsLibraryOnly {
			t.ByName[du.Name] = du // non-library wins over a library stub
		}
		return
	}
	t.Conflicts = append(t.Conflicts, mortyerrors.NewConflictError(du.Name, t.PathByFile[existing.FileID], t.PathByFile[du.FileID]))
}

// maybeIndexSymbol recognizes package-scoped typedef/parameter/localparam/
// function/task/net declarations so their names resolve as pkg::name
// usages elsewhere.
func maybeIndexSymbol(t *Table, pf *sv.ParsedFile, sc *Scanner, pkg string, tok Token) {
	var kind sv.SymbolKind
	switch tok.Text {
	case "typedef":
		kind = sv.SymbolType
	case "parameter", "localparam":
		kind = sv.SymbolParam
	case "function":
		kind = sv.SymbolFunction
	case "task":
		kind = sv.SymbolTask
	default:
		return
	}

	name, ok := nextDeclName(sc, kind)
	if !ok {
		return
	}
	sym := &sv.Symbol{Qualifier: pkg, Name: name.Text, Kind: kind, FileID: pf.FileID,
		Span: sv.Span{Start: name.Span.Start, End: name.Span.End}}
	t.Symbols[pkg+"."+name.Text] = sym
}

// nextDeclName scans forward for the identifier that names a typedef,
// parameter, function, or task declaration, skipping type tokens.
func nextDeclName(sc *Scanner, kind sv.SymbolKind) (Token, bool) {
	var last Token
	haveLast := false
	for {
		tok, ok := sc.Next()
		if !ok {
			return Token{}, false
		}
		if tok.Kind == TokComment {
			continue
		}
		if tok.Kind == TokPunct {
			switch tok.Text {
			case ";":
				return last, haveLast
			case "=", "(":
				return last, haveLast
			}
			continue
		}
		if tok.Kind != TokIdent {
			continue
		}
		if kind == sv.SymbolFunction || kind == sv.SymbolTask {
			// Declaration reads `function <type>? NAME (`; take the
			// identifier immediately preceding '('.
			last, haveLast = tok, true
			continue
		}
		// typedef/parameter: the declared name is the last identifier
		// before `;` or `=`.
		last, haveLast = tok, true
	}
}
