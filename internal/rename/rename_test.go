package rename

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulp-platform/morty/internal/emit"
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/prune"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/usage"
)

func parsedFile(id sv.FileID, path, src string) *sv.ParsedFile {
	return &sv.ParsedFile{Job: sv.ParseJob{Path: path}, FileID: id, PreprocessedText: []byte(src)}
}

func buildAll(files []*sv.ParsedFile) (*index.Table, *usage.Result) {
	table := index.Build(files)
	usages := usage.Build(files, table)
	return table, usages
}

// S1 — prefix renaming of a module declaration and its instantiation.
func TestPlanPrefixRenaming(t *testing.T) {
	src := "module foo; endmodule\nmodule bar; foo i(); endmodule\n"
	pf := parsedFile(0, "s1.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	retained := map[string]bool{"foo": true, "bar": true}
	policy := sv.RenamePolicy{Prefix: "pfx_", RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}

	edits := Plan(files, table, usages, retained, policy, StripOptions{KeepDefines: true, KeepTimescale: true})
	out := emit.ApplyFile(pf, edits[pf.FileID])

	require.Contains(t, string(out), "module pfx_foo")
	require.Contains(t, string(out), "module pfx_bar")
	require.Contains(t, string(out), "pfx_foo i()")
}

// S2 — end-label rename stays in lockstep with the declaration rename.
func TestPlanEndLabelRename(t *testing.T) {
	src := "module foo; endmodule : foo\n"
	pf := parsedFile(0, "s2.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	retained := map[string]bool{"foo": true}
	policy := sv.RenamePolicy{Prefix: "p_", RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}

	edits := Plan(files, table, usages, retained, policy, StripOptions{KeepDefines: true, KeepTimescale: true})
	out := string(emit.ApplyFile(pf, edits[pf.FileID]))

	require.Contains(t, out, "module p_foo")
	require.Contains(t, out, "endmodule : p_foo")
}

// S3 — a package-qualified reference renames the package name only.
func TestPlanPackageQualifiedReference(t *testing.T) {
	src := "package pkg; typedef int T; endpackage\nmodule m; pkg::T x; endmodule\n"
	pf := parsedFile(0, "s3.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	retained := map[string]bool{"pkg": true, "m": true}
	policy := sv.RenamePolicy{Prefix: "q_", RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}

	edits := Plan(files, table, usages, retained, policy, StripOptions{KeepDefines: true, KeepTimescale: true})
	out := string(emit.ApplyFile(pf, edits[pf.FileID]))

	require.Contains(t, out, "package q_pkg")
	require.Contains(t, out, "q_pkg::T")
	require.NotContains(t, out, "q_pkg::q_T")
}

// S4 — a parameter declared with a package-qualified type renames both
// `pkg` occurrences (declaration-site type and default-value expression).
func TestPlanParamTypeQualifier(t *testing.T) {
	src := "package pkg; typedef int T; parameter int K = 1; endpackage\n" +
		"module m #(parameter pkg::T P = pkg::K) (); endmodule\n"
	pf := parsedFile(0, "s4.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	retained := map[string]bool{"pkg": true, "m": true}
	policy := sv.RenamePolicy{Prefix: "q_", RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}

	edits := Plan(files, table, usages, retained, policy, StripOptions{KeepDefines: true, KeepTimescale: true})
	out := string(emit.ApplyFile(pf, edits[pf.FileID]))

	require.Contains(t, out, "parameter q_pkg::T P = q_pkg::K")
}

// S5 — comment stripping keeps doc comments.
func TestPlanCommentStripping(t *testing.T) {
	src := "// note\n//// keep-me\n/// doc\n/** block */\nmodule m; endmodule\n"
	pf := parsedFile(0, "s5.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	retained := map[string]bool{"m": true}
	policy := sv.RenamePolicy{RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}

	edits := Plan(files, table, usages, retained, policy, StripOptions{StripComments: true, KeepDefines: true, KeepTimescale: true})
	out := string(emit.ApplyFile(pf, edits[pf.FileID]))

	require.NotContains(t, out, "// note")
	require.NotContains(t, out, "/** block */")
	require.Contains(t, out, "//// keep-me")
	require.Contains(t, out, "/// doc")
}

// S6 — top-module pruning removes an unreachable module and the deletion
// dominates any rename edit that would otherwise apply inside it.
func TestPlanTopModulePruning(t *testing.T) {
	src := "module a; b i_b(); endmodule\n" +
		"module b; endmodule\n" +
		"module c; missing u(); endmodule\n"
	pf := parsedFile(0, "s6.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	pruneResult := prune.Prune(table, usages, prune.Options{TopModule: "a", Preserve: map[string]bool{}, Exclude: map[string]bool{}})
	require.True(t, pruneResult.Retained["a"])
	require.True(t, pruneResult.Retained["b"])
	require.False(t, pruneResult.Retained["c"])

	policy := sv.RenamePolicy{RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}
	edits := Plan(files, table, usages, pruneResult.Retained, policy, StripOptions{KeepDefines: true, KeepTimescale: true})
	out := string(emit.ApplyFile(pf, edits[pf.FileID]))

	require.Contains(t, out, "module a")
	require.Contains(t, out, "module b")
	require.NotContains(t, out, "module c")
	require.NotContains(t, out, "missing")
}

// Invariant 1 — with empty prefix/suffix, no stripping, and no pruning,
// emitted bytes equal the preprocessed text verbatim.
func TestPlanIdentityWhenNoPolicyApplied(t *testing.T) {
	src := "module foo;\n  // a comment\nendmodule\n"
	pf := parsedFile(0, "identity.sv", src)
	files := []*sv.ParsedFile{pf}
	table, usages := buildAll(files)

	retained := map[string]bool{"foo": true}
	policy := sv.RenamePolicy{RenameExclude: map[string]bool{}, Exclude: map[string]bool{}, Preserve: map[string]bool{}}

	edits := Plan(files, table, usages, retained, policy, StripOptions{KeepDefines: true, KeepTimescale: true})
	out := emit.ApplyFile(pf, edits[pf.FileID])

	require.Equal(t, src, string(out))
}

// Invariant 3 — no two edits on the same file overlap without strict
// containment after conflict resolution.
func TestResolveConflictsNoOverlap(t *testing.T) {
	edits := []sv.Edit{
		{Span: sv.Span{Start: 0, End: 10}},
		{Span: sv.Span{Start: 5, End: 8}},
		{Span: sv.Span{Start: 9, End: 20}},
	}
	resolved := resolveConflicts(0, edits, nil)
	for i := 1; i < len(resolved); i++ {
		require.False(t, resolved[i-1].Span.Overlaps(resolved[i].Span))
	}
}
