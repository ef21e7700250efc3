package index

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulp-platform/morty/internal/sv"
)

func parsedFile(id sv.FileID, path, src string, isLibrary bool) *sv.ParsedFile {
	return &sv.ParsedFile{
		Job:              sv.ParseJob{Path: path, IsLibrary: isLibrary},
		FileID:           id,
		PreprocessedText: []byte(src),
	}
}

func TestBuildIndexesModuleAndEndLabel(t *testing.T) {
	src := "module top; endmodule : top\n"
	table := Build([]*sv.ParsedFile{parsedFile(0, "top.sv", src, false)})

	du, ok := table.ByName["top"]
	require.True(t, ok)
	require.Equal(t, sv.KindModule, du.Kind)
	require.True(t, du.HasEndLabel)
}

func TestBuildIndexesPackageScopedSymbols(t *testing.T) {
	src := "package pkg; typedef int my_t; parameter int K = 4; endpackage\n"
	table := Build([]*sv.ParsedFile{parsedFile(0, "pkg.sv", src, false)})

	_, ok := table.ByName["pkg"]
	require.True(t, ok)
	typeSym, ok := table.Symbols["pkg.my_t"]
	require.True(t, ok)
	require.Equal(t, sv.SymbolType, typeSym.Kind)
	paramSym, ok := table.Symbols["pkg.K"]
	require.True(t, ok)
	require.Equal(t, sv.SymbolParam, paramSym.Kind)
}

func TestBuildRecordsConflictForTwoNonLibraryDeclarations(t *testing.T) {
	files := []*sv.ParsedFile{
		parsedFile(0, "a.sv", "module dup; endmodule\n", false),
		parsedFile(1, "b.sv", "module dup; endmodule\n", false),
	}
	table := Build(files)

	require.Len(t, table.Conflicts, 1)
	require.Equal(t, "dup", table.Conflicts[0].Name)
	require.Equal(t, "a.sv", table.Conflicts[0].FirstPath)
	require.Equal(t, "b.sv", table.Conflicts[0].LaterPath)
	// first-seen-wins: ByName still resolves to the earlier declaration.
	require.Equal(t, sv.FileID(0), table.ByName["dup"].FileID)
}

func TestBuildExemptsLibraryDuplicateFromConflict(t *testing.T) {
	files := []*sv.ParsedFile{
		parsedFile(0, "lib.sv", "module shared; endmodule\n", true),
		parsedFile(1, "real.sv", "module shared; endmodule\n", false),
	}
	table := Build(files)

	require.Empty(t, table.Conflicts)
	// the non-library declaration wins over the library stub.
	require.Equal(t, sv.FileID(1), table.ByName["shared"].FileID)
}

func TestBuildSkipsParseFailedFiles(t *testing.T) {
	pf := parsedFile(0, "broken.sv", "module broken", false)
	pf.ParseFailed = true
	table := Build([]*sv.ParsedFile{pf})

	require.Empty(t, table.All)
	require.Contains(t, table.PathByFile, sv.FileID(0))
}
