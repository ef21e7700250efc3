package emit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulp-platform/morty/internal/sv"
)

func TestApplyFileVerbatimWithoutEdits(t *testing.T) {
	pf := &sv.ParsedFile{PreprocessedText: []byte("module m; endmodule\n")}
	out := ApplyFile(pf, nil)
	require.Equal(t, "module m; endmodule\n", string(out))
}

func TestApplyFileSubstitutesAndDeletes(t *testing.T) {
	pf := &sv.ParsedFile{PreprocessedText: []byte("module foo; endmodule\n")}
	edits := []sv.Edit{
		{Span: sv.Span{Start: 7, End: 10}, Replacement: []byte("pfx_foo")},
	}
	out := ApplyFile(pf, edits)
	require.Equal(t, "module pfx_foo; endmodule\n", string(out))
}

func TestRunSkipsUnreferencedLibraryFile(t *testing.T) {
	lib := &sv.ParsedFile{FileID: 0, Job: sv.ParseJob{Path: "lib.sv", IsLibrary: true}, PreprocessedText: []byte("package unused_pkg; endpackage\n")}
	top := &sv.ParsedFile{FileID: 1, Job: sv.ParseJob{Path: "top.sv"}, PreprocessedText: []byte("module top; endmodule\n")}

	out, paths := Run([]*sv.ParsedFile{lib, top}, nil, map[sv.FileID]bool{}, Options{NoHeader: true})

	require.NotContains(t, string(out), "unused_pkg")
	require.Contains(t, string(out), "module top")
	require.Equal(t, []string{"top.sv"}, paths)
}

func TestRunIncludesReferencedLibraryFile(t *testing.T) {
	lib := &sv.ParsedFile{FileID: 0, Job: sv.ParseJob{Path: "lib.sv", IsLibrary: true}, PreprocessedText: []byte("package used_pkg; endpackage\n")}
	top := &sv.ParsedFile{FileID: 1, Job: sv.ParseJob{Path: "top.sv"}, PreprocessedText: []byte("module top; endmodule\n")}

	out, paths := Run([]*sv.ParsedFile{lib, top}, nil, map[sv.FileID]bool{0: true}, Options{NoHeader: true})

	require.Contains(t, string(out), "used_pkg")
	require.Equal(t, []string{"lib.sv", "top.sv"}, paths)
}

func TestRunPrintSources(t *testing.T) {
	top := &sv.ParsedFile{FileID: 0, Job: sv.ParseJob{Path: "top.sv"}, PreprocessedText: []byte("module top; endmodule\n")}
	out, paths := Run([]*sv.ParsedFile{top}, nil, map[sv.FileID]bool{}, Options{PrintSources: true})

	require.Equal(t, "top.sv\n", string(out))
	require.Equal(t, []string{"top.sv"}, paths)
}

func TestWriteIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.sv")

	require.NoError(t, Write(path, []byte("hello")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no leftover temp file should remain")
}

func TestProvenanceHeaderFormat(t *testing.T) {
	header := ProvenanceHeader()
	require.Contains(t, header, "Compiled by morty")
}
