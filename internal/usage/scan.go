package usage

import (
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/sv"
)

// scannerTok mirrors index.Token; re-declared via the exported scanner API
// so this package only depends on index.NewScanner/index.Token directly.
type scannerTok = index.Token

// scanFile recovers package references, imports, parameter-type
// qualifiers, and heuristic module instantiations from one parsed file's
// preprocessed text.
func scanFile(pf *sv.ParsedFile, table *index.Table) ([]sv.Usage, []globalImport, []Undefined) {
	var usages []sv.Usage
	var globals []globalImport
	var undefined []Undefined

	sc := index.NewScanner(pf.PreprocessedText)

	// unitAt reports the DesignUnit (if any) whose outer span contains
	// offset, used only to decide whether an import is file-root/global.
	unitAt := func(offset uint32) *sv.DesignUnit {
		for _, du := range table.All {
			if du.FileID == pf.FileID && du.OuterSpan.Contains(sv.Span{Start: offset, End: offset + 1}) {
				return du
			}
		}
		return nil
	}

	var prevSignificant scannerTok
	havePrev := false

	for {
		tok, ok := sc.Next()
		if !ok {
			break
		}
		if tok.Kind == index.TokComment || tok.Kind == index.TokString {
			continue
		}

		if tok.Kind == index.TokIdent && tok.Text == "import" {
			if pkg, item, wildcard, ok := scanImport(sc); ok {
				kind := sv.TargetImportItem
				if wildcard {
					kind = sv.TargetImportWildcard
				}
				_ = item
				span := sv.Span{Start: pkg.Span.Start, End: pkg.Span.End}
				if unitAt(tok.Span.Start) == nil {
					globals = append(globals, globalImport{fileID: pf.FileID, span: span, pkg: pkg.Text, wildcard: wildcard})
				} else {
					usages = append(usages, sv.Usage{FileID: pf.FileID, Span: span,
						Target: sv.UsageTarget{Kind: kind, Name: pkg.Text}, Context: "import"})
				}
			}
			prevSignificant, havePrev = tok, true
			continue
		}

		if tok.Kind == index.TokIdent && tok.Text == "parameter" {
			if u, ok := scanParamType(sc); ok {
				usages = append(usages, sv.Usage{FileID: pf.FileID, Span: u,
					Target: sv.UsageTarget{Kind: sv.TargetParamType, Name: u.Text(pf.PreprocessedText)}})
			}
			prevSignificant, havePrev = tok, true
			continue
		}

		if tok.Kind == index.TokIdent {
			if nextTok, isScope := peekScope(sc); isScope {
				// `pkg::ident` outside of a parameter type position is a
				// plain package reference.
				if du, known := table.ByName[tok.Text]; known && du.Kind == sv.KindPackage {
					usages = append(usages, sv.Usage{FileID: pf.FileID,
						Span:   sv.Span{Start: tok.Span.Start, End: tok.Span.End},
						Target: sv.UsageTarget{Kind: sv.TargetPackageRef, Name: tok.Text}})
				}
				_ = nextTok
				prevSignificant, havePrev = tok, true
				continue
			}

			if du, isIface := table.ByName[tok.Text]; isIface && du.Kind == sv.KindInterface &&
				(looksLikeInstantiationStart(havePrev, prevSignificant) || looksLikePortListPosition(havePrev, prevSignificant)) {
				if modport, inst, ok := scanInterfacePort(sc); ok {
					usages = append(usages, sv.Usage{FileID: pf.FileID,
						Span:   sv.Span{Start: tok.Span.Start, End: tok.Span.End},
						Target: sv.UsageTarget{Kind: sv.TargetInterfacePort, Name: tok.Text, ModportName: modport},
						Context: "interface port " + inst})
					prevSignificant, havePrev = tok, true
					continue
				}
			}

			if du, isModule := table.ByName[tok.Text]; isModule && !reservedIdent(tok.Text) &&
				(du.Kind == sv.KindModule || du.Kind == sv.KindInterface || du.Kind == sv.KindChecker) &&
				looksLikeInstantiationStart(havePrev, prevSignificant) {
				if inst, ok := scanInstantiation(sc); ok {
					usages = append(usages, sv.Usage{FileID: pf.FileID,
						Span:   sv.Span{Start: tok.Span.Start, End: tok.Span.End},
						Target: sv.UsageTarget{Kind: sv.TargetModuleInst, Name: tok.Text},
						Context: "instance " + inst})
				}
			} else if !reservedIdent(tok.Text) && looksLikeInstantiationStart(havePrev, prevSignificant) {
				if inst, ok := scanInstantiation(sc); ok {
					line, col := lineCol(pf.PreprocessedText, tok.Span.Start)
					undefined = append(undefined, Undefined{FileID: pf.FileID, Path: pf.Job.Path,
						Name: tok.Text, Span: sv.Span{Start: tok.Span.Start, End: tok.Span.End},
						Line: line, Column: col})
					_ = inst
				}
			}
		}

		if tok.Kind == index.TokPunct && (tok.Text == ";" || tok.Text == "}" || tok.Text == "{") {
			prevSignificant, havePrev = tok, true
			continue
		}
		if tok.Kind == index.TokIdent && tok.Text == "begin" {
			prevSignificant, havePrev = tok, true
			continue
		}
		prevSignificant, havePrev = tok, true
	}

	return usages, globals, undefined
}

func reservedIdent(name string) bool {
	return reservedKeywordSet[name]
}

// looksLikeInstantiationStart approximates "statement start" well enough to
// avoid treating most expressions/declarations as instantiations: the
// previous significant token must end a prior statement/block or begin one.
func looksLikeInstantiationStart(havePrev bool, prev scannerTok) bool {
	if !havePrev {
		return true
	}
	if prev.Kind == index.TokPunct && (prev.Text == ";" || prev.Text == "{" || prev.Text == "}") {
		return true
	}
	if prev.Kind == index.TokIdent && prev.Text == "begin" {
		return true
	}
	return false
}

// looksLikePortListPosition reports whether prev leaves the scanner sitting
// at the start of an ANSI port-list entry, e.g. `module m (bus_if.master bus,
// ...)`: the token before an interface-typed port is `(` (first port) or `,`
// (a later port), neither of which looksLikeInstantiationStart accepts since
// those punctuation marks also appear mid-expression elsewhere.
func looksLikePortListPosition(havePrev bool, prev scannerTok) bool {
	if !havePrev {
		return false
	}
	return prev.Kind == index.TokPunct && (prev.Text == "(" || prev.Text == ",")
}

// scanImport parses the tail of `import` : `pkg::*` or `pkg::item`.
func scanImport(sc *index.Scanner) (pkgTok scannerTok, item string, wildcard bool, ok bool) {
	pkg, okTok := nextSignificant(sc)
	if !okTok || pkg.Kind != index.TokIdent {
		return scannerTok{}, "", false, false
	}
	scopeTok, okTok2 := nextSignificant(sc)
	if !okTok2 || scopeTok.Text != "::" {
		return scannerTok{}, "", false, false
	}
	rest, okTok3 := nextSignificant(sc)
	if !okTok3 {
		return scannerTok{}, "", false, false
	}
	if rest.Kind == index.TokPunct && rest.Text == "*" {
		return pkg, "*", true, true
	}
	if rest.Kind == index.TokIdent {
		return pkg, rest.Text, false, true
	}
	return scannerTok{}, "", false, false
}

// scanParamType parses `parameter` followed by `pkg::Type` when present,
// returning the span over `pkg` only.
func scanParamType(sc *index.Scanner) (sv.Span, bool) {
	save := sc.Pos()
	first, ok := nextSignificant(sc)
	if !ok || first.Kind != index.TokIdent {
		sc.SetPos(save)
		return sv.Span{}, false
	}
	scopeTok, ok2 := nextSignificant(sc)
	if !ok2 || scopeTok.Text != "::" {
		sc.SetPos(save)
		return sv.Span{}, false
	}
	typeTok, ok3 := nextSignificant(sc)
	if !ok3 || typeTok.Kind != index.TokIdent {
		sc.SetPos(save)
		return sv.Span{}, false
	}
	return sv.Span{Start: first.Span.Start, End: first.Span.End}, true
}

// peekScope looks ahead for a `::` token immediately following the current
// identifier, restoring position either way.
func peekScope(sc *index.Scanner) (scannerTok, bool) {
	save := sc.Pos()
	tok, ok := nextSignificant(sc)
	if ok && tok.Kind == index.TokPunct && tok.Text == "::" {
		return tok, true
	}
	sc.SetPos(save)
	return scannerTok{}, false
}

// scanInstantiation confirms `IDENT (#(...))? IDENT (...)` and returns the
// instance name for diagnostics context. Restores position and reports
// false if the pattern does not hold (so a plain function call or type
// name isn't misreported).
func scanInstantiation(sc *index.Scanner) (string, bool) {
	save := sc.Pos()

	tok, ok := nextSignificant(sc)
	if !ok {
		sc.SetPos(save)
		return "", false
	}
	if tok.Kind == index.TokPunct && tok.Text == "#" {
		if !skipParenGroup(sc) {
			sc.SetPos(save)
			return "", false
		}
		tok, ok = nextSignificant(sc)
		if !ok {
			sc.SetPos(save)
			return "", false
		}
	}
	if tok.Kind != index.TokIdent {
		sc.SetPos(save)
		return "", false
	}
	instName := tok.Text

	next, ok := nextSignificant(sc)
	if !ok {
		sc.SetPos(save)
		return "", false
	}
	if next.Kind == index.TokPunct && next.Text == "[" {
		if !skipBracketGroup(sc) {
			sc.SetPos(save)
			return "", false
		}
		next, ok = nextSignificant(sc)
		if !ok {
			sc.SetPos(save)
			return "", false
		}
	}
	if next.Kind != index.TokPunct || next.Text != "(" {
		sc.SetPos(save)
		return "", false
	}
	return instName, true
}

// scanInterfacePort recognizes an interface used as a port type:
// `IfaceName[.modport] instName` not followed by `(`, distinguishing it
// from a plain interface instantiation which scanInstantiation handles.
// Restores position and reports false when the shape doesn't match, so
// the caller can still try the ordinary instantiation heuristic.
func scanInterfacePort(sc *index.Scanner) (modport, instName string, ok bool) {
	save := sc.Pos()

	tok, got := nextSignificant(sc)
	if !got {
		sc.SetPos(save)
		return "", "", false
	}

	if tok.Kind == index.TokPunct && tok.Text == "." {
		mp, got2 := nextSignificant(sc)
		if !got2 || mp.Kind != index.TokIdent {
			sc.SetPos(save)
			return "", "", false
		}
		modport = mp.Text
		tok, got = nextSignificant(sc)
		if !got {
			sc.SetPos(save)
			return "", "", false
		}
	}

	if tok.Kind != index.TokIdent {
		sc.SetPos(save)
		return "", "", false
	}
	instName = tok.Text

	next, got3 := nextSignificant(sc)
	if !got3 {
		sc.SetPos(save)
		return "", "", false
	}
	if next.Kind == index.TokPunct && (next.Text == "," || next.Text == ")" || next.Text == ";") {
		sc.SetPos(save)
		return modport, instName, true
	}
	sc.SetPos(save)
	return "", "", false
}

func skipParenGroup(sc *index.Scanner) bool {
	open, ok := nextSignificant(sc)
	if !ok || open.Text != "(" {
		return false
	}
	depth := 1
	for depth > 0 {
		tok, ok := nextSignificant(sc)
		if !ok {
			return false
		}
		if tok.Text == "(" {
			depth++
		} else if tok.Text == ")" {
			depth--
		}
	}
	return true
}

func skipBracketGroup(sc *index.Scanner) bool {
	depth := 1
	for depth > 0 {
		tok, ok := nextSignificant(sc)
		if !ok {
			return false
		}
		if tok.Text == "[" {
			depth++
		} else if tok.Text == "]" {
			depth--
		}
	}
	return true
}

// lineCol converts a byte offset into 1-based line/column for diagnostics.
func lineCol(src []byte, offset uint32) (line, col int) {
	line, col = 1, 1
	for i := uint32(0); i < offset && int(i) < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

func nextSignificant(sc *index.Scanner) (scannerTok, bool) {
	for {
		tok, ok := sc.Next()
		if !ok {
			return scannerTok{}, false
		}
		if tok.Kind == index.TokComment {
			continue
		}
		return tok, true
	}
}

var reservedKeywordSet = buildReservedSet()

func buildReservedSet() map[string]bool {
	return index.ReservedNotInstance()
}
