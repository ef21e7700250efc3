package parse

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/pulp-platform/morty/internal/sv"
)

// TestMain wraps the suite with goleak so a stuck worker in the bounded
// errgroup pool shows up as a test failure instead of a silent hang
// somewhere downstream.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeSV(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunPreservesOrderAcrossParallelWorkers(t *testing.T) {
	dir := t.TempDir()
	jobs := []sv.ParseJob{
		{Path: writeSV(t, dir, "a.sv", "module a; endmodule\n")},
		{Path: writeSV(t, dir, "b.sv", "module b; endmodule\n")},
		{Path: writeSV(t, dir, "c.sv", "module c; endmodule\n")},
	}

	result, err := Run(context.Background(), NewGrammar(), jobs, Options{})
	require.NoError(t, err)
	require.Len(t, result.Files, 3)
	require.Equal(t, "a.sv", filepath.Base(result.Files[0].Job.Path))
	require.Equal(t, "b.sv", filepath.Base(result.Files[1].Job.Path))
	require.Equal(t, "c.sv", filepath.Base(result.Files[2].Job.Path))
}

func TestRunForcesSerialWhenPropagatingDefines(t *testing.T) {
	dir := t.TempDir()
	jobs := []sv.ParseJob{
		{Path: writeSV(t, dir, "a.sv", "`define SHARED 1\nmodule a; endmodule\n")},
		{Path: writeSV(t, dir, "b.sv", "logic [`SHARED:0] x;\nmodule b; endmodule\n")},
	}

	result, err := Run(context.Background(), NewGrammar(), jobs, Options{PropagateDefines: true})
	require.NoError(t, err)
	require.Len(t, result.Files, 2)
	require.Contains(t, string(result.Files[1].PreprocessedText), "[1:0]")
}

func TestRunIgnoreUnparseableDropsMissingFileAsWarning(t *testing.T) {
	dir := t.TempDir()
	jobs := []sv.ParseJob{
		{Path: writeSV(t, dir, "ok.sv", "module ok; endmodule\n")},
		{Path: filepath.Join(dir, "missing.sv")},
	}

	result, err := Run(context.Background(), NewGrammar(), jobs, Options{IgnoreUnparseable: true, NoParallel: true})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	require.Len(t, result.Warnings, 1)
}

func TestRunFatalsOnMissingFileByDefault(t *testing.T) {
	dir := t.TempDir()
	jobs := []sv.ParseJob{{Path: filepath.Join(dir, "missing.sv")}}

	_, err := Run(context.Background(), NewGrammar(), jobs, Options{})
	require.Error(t, err)
}
