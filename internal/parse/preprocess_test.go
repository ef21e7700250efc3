package parse

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunExpandsObjectLikeMacro(t *testing.T) {
	p := NewPreprocessor(nil, nil)
	out, defines, err := p.Run("top.sv", []byte("`define WIDTH 8\nlogic [`WIDTH-1:0] data;\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), "[8-1:0]")
	require.Equal(t, "8", defines["WIDTH"])
}

func TestRunLeavesTimescaleDirectiveUnexpanded(t *testing.T) {
	p := NewPreprocessor(nil, nil)
	out, _, err := p.Run("top.sv", []byte("`timescale 1ns/1ps\nmodule m; endmodule\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), "`timescale 1ns/1ps")
}

func TestRunExpandsInclude(t *testing.T) {
	dir := t.TempDir()
	incPath := filepath.Join(dir, "defs.svh")
	require.NoError(t, os.WriteFile(incPath, []byte("`define DEPTH 16\n"), 0o644))

	topPath := filepath.Join(dir, "top.sv")
	p := NewPreprocessor(nil, nil)
	out, defines, err := p.Run(topPath, []byte("`include \"defs.svh\"\nlogic [`DEPTH-1:0] d;\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), "[16-1:0]")
	require.Equal(t, "16", defines["DEPTH"])
}

func TestRunPropagatesSeedDefinesAndUndef(t *testing.T) {
	p := NewPreprocessor(nil, map[string]string{"SEED": "1"})
	out, defines, err := p.Run("top.sv", []byte("`undef SEED\n`define SEED 2\nval = `SEED;\n"))
	require.NoError(t, err)
	require.Contains(t, string(out), "val = 2;")
	require.Equal(t, "2", defines["SEED"])
}

func TestRunFailsOnMissingInclude(t *testing.T) {
	p := NewPreprocessor(nil, nil)
	_, _, err := p.Run("top.sv", []byte("`include \"missing.svh\"\n"))
	require.Error(t, err)
}

func TestSplitKeepingContinuationsJoinsBackslashLines(t *testing.T) {
	lines := splitKeepingContinuations("`define FOO 1 + \\\n2\nmodule m;\n")
	require.Len(t, lines, 3)
	require.Contains(t, lines[0], "`define FOO 1 + ")
	require.Contains(t, lines[0], "2")
	require.Equal(t, "module m;", lines[1])
}
