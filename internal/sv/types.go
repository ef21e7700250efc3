// Package sv defines the core data model shared by every stage of the
// pickling pipeline: parse jobs in, design units and usages out, edits
// applied last. All of it is read-only after construction except the Edit
// lists produced by the rename planner.
package sv

import "github.com/cespare/xxhash/v2"

// FileID identifies a ParsedFile by its position in the (re-sorted) parse
// job list. It is stable for the duration of a single run only.
type FileID uint32

// Span is a half-open byte range [Start, End) into a ParsedFile's
// PreprocessedText. Spans are arena-plus-index: they never carry the bytes
// themselves, only offsets, so that the index can be built once and read
// from many goroutines without copying text.
type Span struct {
	Start uint32
	End   uint32
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int { return int(s.End - s.Start) }

// Empty reports whether the span covers zero bytes.
func (s Span) Empty() bool { return s.Start >= s.End }

// Contains reports whether other lies entirely within s (other is a proper
// or equal sub-range of s).
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Overlaps reports whether s and other share any byte without one strictly
// containing the other. Used by the rename planner's conflict check.
func (s Span) Overlaps(other Span) bool {
	if s.End <= other.Start || other.End <= s.Start {
		return false
	}
	return !s.Contains(other) && !other.Contains(s)
}

// Text extracts the span's bytes from the given buffer. Used sparingly —
// callers on a hot path should prefer carrying offsets.
func (s Span) Text(buf []byte) string {
	if int(s.End) > len(buf) || s.Start > s.End {
		return ""
	}
	return string(buf[s.Start:s.End])
}

// ContentHash returns a fast, stable xxhash of the span's bytes. The
// declaration indexer does not call it: duplicate detection there is by
// name only.
func ContentHash(buf []byte, s Span) uint64 {
	if int(s.End) > len(buf) || s.Start > s.End {
		return 0
	}
	return xxhash.Sum64(buf[s.Start:s.End])
}

// ParseJob is one input unit handed to the parallel parser.
type ParseJob struct {
	Path        string
	IncludeDirs []string
	Defines     map[string]string
	IsLibrary   bool

	// OrderIndex is the job's position in the original emission order from
	// the File Bundle Loader. The parallel parser re-sorts on this field
	// before any downstream stage sees the result.
	OrderIndex int
}

// ParsedFile is the immutable result of preprocessing+parsing one ParseJob.
type ParsedFile struct {
	Job               ParseJob
	FileID            FileID
	PreprocessedText  []byte
	CST               *CST
	DefinesOut        map[string]string
	ParseFailed       bool
	ParseFailureError error
}

// DesignUnitKind enumerates the SV design unit kinds morty understands.
type DesignUnitKind int

const (
	KindModule DesignUnitKind = iota
	KindInterface
	KindPackage
	KindProgram
	KindChecker
)

func (k DesignUnitKind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindInterface:
		return "interface"
	case KindPackage:
		return "package"
	case KindProgram:
		return "program"
	case KindChecker:
		return "checker"
	default:
		return "unknown"
	}
}

// DesignUnit is one top-level SV declaration.
type DesignUnit struct {
	Name            string
	Kind            DesignUnitKind
	FileID          FileID
	OuterSpan       Span
	NameSpan        Span
	EndLabelSpan    Span // zero value if absent
	HasEndLabel     bool
	IsLibraryOnly   bool // declared by a job with IsLibrary == true
	DeclOrder       int  // insertion order, for first-seen/last-seen policy
}

// SymbolKind enumerates package-scoped symbol kinds that can appear in a
// pkg::name usage.
type SymbolKind int

const (
	SymbolType SymbolKind = iota
	SymbolConst
	SymbolFunction
	SymbolTask
	SymbolNet
	SymbolParam
	SymbolModport
)

// Symbol is a package-scoped declaration finer-grained than a DesignUnit:
// typedefs, parameters, functions, tasks, nets, modports.
type Symbol struct {
	Qualifier string // enclosing package name, "" if none
	Name      string
	Kind      SymbolKind
	FileID    FileID
	Span      Span
}

// UsageTargetKind enumerates the kinds of UsageTarget.
type UsageTargetKind int

const (
	TargetModuleInst UsageTargetKind = iota
	TargetInterfacePort
	TargetPackageRef
	TargetImportItem
	TargetImportWildcard
	TargetEndLabel
	TargetParamType
)

// UsageTarget names what a Usage refers to.
type UsageTarget struct {
	Kind       UsageTargetKind
	Name       string // module/interface/package/unit name
	ModportName string // only set for TargetInterfacePort with a modport
}

// Usage is one occurrence of a design-unit or package name inside a parsed
// file.
type Usage struct {
	FileID  FileID
	Span    Span
	Target  UsageTarget
	Context string // human-readable context for diagnostics, e.g. "module m"
}

// RenamePolicy controls what the rename planner does with each retained
// unit.
type RenamePolicy struct {
	Prefix        string
	Suffix        string
	RenameExclude map[string]bool
	Exclude       map[string]bool
	Preserve      map[string]bool
}

// Renamed reports whether a unit named name should be renamed under this
// policy: it must not be excluded entirely and not be in RenameExclude.
func (p RenamePolicy) Renamed(name string) bool {
	if p.Exclude[name] {
		return false
	}
	return !p.RenameExclude[name]
}

// NewName returns the renamed identifier for name under this policy.
func (p RenamePolicy) NewName(name string) string {
	return p.Prefix + name + p.Suffix
}

// Edit is one byte-range textual substitution.
type Edit struct {
	FileID      FileID
	Span        Span
	Replacement []byte
}
