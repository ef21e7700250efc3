// Package prune implements C5, the top-module pruner: it reduces the set of
// retained DesignUnits to those reachable from a configured top module in
// the usage graph C4 built.
package prune

import (
	"github.com/pulp-platform/morty/internal/debug"
	"github.com/pulp-platform/morty/internal/index"
	"github.com/pulp-platform/morty/internal/sv"
	"github.com/pulp-platform/morty/internal/usage"
)

// Options configures pruning.
type Options struct {
	TopModule string
	Preserve  map[string]bool
	Exclude   map[string]bool
}

// Result is C5's output: which first-seen DesignUnits survive, and which
// are slated for deletion regardless of reason (unreachable or excluded).
type Result struct {
	Retained map[string]bool
	Deleted  []*sv.DesignUnit
}

// RetainedFiles maps each FileID that declares at least one retained
// DesignUnit to true, used by C7 to decide whether a library file (whose
// text is otherwise withheld) is emitted.
func (r *Result) RetainedFiles(table *index.Table) map[sv.FileID]bool {
	files := make(map[sv.FileID]bool)
	for name, du := range table.ByName {
		if r.Retained[name] {
			files[du.FileID] = true
		}
	}
	return files
}

// reachableEdgeKinds are the UsageTargetKinds the reachability closure
// follows; EndLabel is intentionally excluded — it names the unit
// itself, not a dependency.
var reachableEdgeKinds = map[sv.UsageTargetKind]bool{
	sv.TargetModuleInst:     true,
	sv.TargetInterfacePort:  true,
	sv.TargetPackageRef:     true,
	sv.TargetImportItem:     true,
	sv.TargetImportWildcard: true,
	sv.TargetParamType:      true,
}

// Prune computes the reachable set and returns the deletion list. Pruning
// decisions are made over table.ByName — the first-seen DesignUnit per
// name — since that is the unit usages resolve to and the unit the rename
// planner operates on (see DESIGN.md, "duplicate-name policy").
func Prune(table *index.Table, usages *usage.Result, opts Options) *Result {
	graph := buildAdjacency(table, usages)

	retained := map[string]bool{}
	if opts.TopModule == "" {
		for name := range table.ByName {
			retained[name] = true
		}
	} else if _, ok := table.ByName[opts.TopModule]; ok {
		visit(opts.TopModule, graph, retained)
		debug.LogPrune("closure from top module %q: %d units reachable", opts.TopModule, len(retained))
	} else {
		debug.LogPrune("top module %q not found; nothing retained by reachability", opts.TopModule)
	}

	for name := range opts.Preserve {
		if _, ok := table.ByName[name]; ok {
			retained[name] = true
		}
	}
	for name := range opts.Exclude {
		delete(retained, name)
	}

	res := &Result{Retained: retained}
	for name, du := range table.ByName {
		if !retained[name] {
			res.Deleted = append(res.Deleted, du)
		}
	}
	return res
}

// buildAdjacency maps each DesignUnit name to the set of names it
// references, derived from every Usage whose byte span falls inside that
// unit's outer span. A file-root import, which lies outside every unit,
// adds its package to every unit declared after it in the same file.
func buildAdjacency(table *index.Table, usages *usage.Result) map[string]map[string]bool {
	graph := map[string]map[string]bool{}
	for _, u := range usages.Usages {
		if !reachableEdgeKinds[u.Target.Kind] {
			continue
		}
		owner := table.OwnerOf(u.FileID, u.Span)
		if owner == nil {
			if u.Target.Kind == sv.TargetImportItem || u.Target.Kind == sv.TargetImportWildcard {
				for name, du := range table.ByName {
					if du.FileID == u.FileID && du.OuterSpan.Start > u.Span.Start {
						if graph[name] == nil {
							graph[name] = map[string]bool{}
						}
						graph[name][u.Target.Name] = true
					}
				}
			}
			continue
		}
		if graph[owner.Name] == nil {
			graph[owner.Name] = map[string]bool{}
		}
		graph[owner.Name][u.Target.Name] = true
	}
	return graph
}

func visit(name string, graph map[string]map[string]bool, seen map[string]bool) {
	if seen[name] {
		return
	}
	seen[name] = true
	for next := range graph[name] {
		visit(next, graph, seen)
	}
}
