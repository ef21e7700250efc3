package prune

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulp-platform/morty/internal/index"
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

func TestPruneNoTopModuleRetainsEverything(t *testing.T) {
	src := "module a; endmodule\nmodule b; endmodule\n"
	table, usages := buildAll([]*sv.ParsedFile{parsedFile(0, "s.sv", src)})

	result := Prune(table, usages, Options{})
	require.True(t, result.Retained["a"])
	require.True(t, result.Retained["b"])
	require.Empty(t, result.Deleted)
}

func TestPruneClosureFromTopModule(t *testing.T) {
	src := "module top; mid i_mid(); endmodule\n" +
		"module mid; leaf i_leaf(); endmodule\n" +
		"module leaf; endmodule\n" +
		"module orphan; endmodule\n"
	table, usages := buildAll([]*sv.ParsedFile{parsedFile(0, "s.sv", src)})

	result := Prune(table, usages, Options{TopModule: "top"})
	require.True(t, result.Retained["top"])
	require.True(t, result.Retained["mid"])
	require.True(t, result.Retained["leaf"])
	require.False(t, result.Retained["orphan"])

	names := make([]string, 0, len(result.Deleted))
	for _, du := range result.Deleted {
		names = append(names, du.Name)
	}
	require.Contains(t, names, "orphan")
}

func TestPruneUnknownTopModuleRetainsNothing(t *testing.T) {
	src := "module a; endmodule\n"
	table, usages := buildAll([]*sv.ParsedFile{parsedFile(0, "s.sv", src)})

	result := Prune(table, usages, Options{TopModule: "does_not_exist"})
	require.Empty(t, result.Retained)
}

func TestPrunePreserveOverridesUnreachable(t *testing.T) {
	src := "module top; endmodule\nmodule unrelated; endmodule\n"
	table, usages := buildAll([]*sv.ParsedFile{parsedFile(0, "s.sv", src)})

	result := Prune(table, usages, Options{TopModule: "top", Preserve: map[string]bool{"unrelated": true}})
	require.True(t, result.Retained["top"])
	require.True(t, result.Retained["unrelated"])
}

func TestPruneExcludeWinsOverReachability(t *testing.T) {
	src := "module top; child i_child(); endmodule\nmodule child; endmodule\n"
	table, usages := buildAll([]*sv.ParsedFile{parsedFile(0, "s.sv", src)})

	result := Prune(table, usages, Options{TopModule: "top", Exclude: map[string]bool{"child": true}})
	require.True(t, result.Retained["top"])
	require.False(t, result.Retained["child"])
}

func TestPruneRetainsInterfaceUsedOnlyAsAnsiPort(t *testing.T) {
	src := "interface bus_if; endinterface\n" +
		"module top (bus_if.master bus); endmodule\n"
	table, usages := buildAll([]*sv.ParsedFile{parsedFile(0, "s.sv", src)})

	result := Prune(table, usages, Options{TopModule: "top"})
	require.True(t, result.Retained["top"])
	require.True(t, result.Retained["bus_if"])
}

func TestRetainedFilesMapsOnlyRetainedDeclarations(t *testing.T) {
	files := []*sv.ParsedFile{
		parsedFile(0, "top.sv", "module top; endmodule\n"),
		parsedFile(1, "orphan.sv", "module orphan; endmodule\n"),
	}
	table, usages := buildAll(files)
	result := Prune(table, usages, Options{TopModule: "top"})

	retainedFiles := result.RetainedFiles(table)
	require.True(t, retainedFiles[0])
	require.False(t, retainedFiles[1])
}
