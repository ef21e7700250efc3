// Package parse implements C2, the parallel parser: preprocessing each
// ParseJob into its preprocessed byte text and handing that text to a
// tree-sitter grammar to build a CST.
package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Preprocessor expands `include directives and macro invocations the same
// way the reference SV preprocessor does, tracking the define table so it
// can be threaded into the next job when --propagate-defines is set. It
// does not implement the full SV preprocessor grammar (conditional nesting
// edge cases, `` `` token-paste, stringify) — macro expansion beyond what
// the underlying preprocessor already performs is out of scope, so
// unsupported directives pass through untouched rather than erroring.
type Preprocessor struct {
	IncludeDirs []string
	Defines     map[string]string
}

// NewPreprocessor creates a Preprocessor seeded with the job's effective
// defines (own bundle defines unioned with upstream defines_out, under
// the propagation rule).
func NewPreprocessor(includeDirs []string, seed map[string]string) *Preprocessor {
	defines := make(map[string]string, len(seed))
	for k, v := range seed {
		defines[k] = v
	}
	return &Preprocessor{IncludeDirs: includeDirs, Defines: defines}
}

var (
	includeRe = regexp.MustCompile("`include\\s+\"([^\"]+)\"")
	defineRe  = regexp.MustCompile("(?m)^[ \t]*`define\\s+(\\w+)(\\([^)]*\\))?[ \t]*(.*)$")
	undefRe   = regexp.MustCompile(`\x60undef\s+(\w+)`)
	invokeRe  = regexp.MustCompile("`(\\w+)(\\([^)]*\\))?")
)

// Run expands includes and macro invocations in src, returning the final
// preprocessed byte text and the define table as it stands at EOF
// (ParsedFile.DefinesOut).
func (p *Preprocessor) Run(path string, src []byte) ([]byte, map[string]string, error) {
	text := string(src)

	expanded, err := p.expandIncludes(path, text, 0)
	if err != nil {
		return nil, nil, err
	}

	p.collectDefines(expanded)
	out := p.expandInvocations(expanded)

	final := make(map[string]string, len(p.Defines))
	for k, v := range p.Defines {
		final[k] = v
	}
	return []byte(out), final, nil
}

func (p *Preprocessor) expandIncludes(path, text string, depth int) (string, error) {
	if depth > 32 {
		return "", fmt.Errorf("`include nesting too deep (>32) starting at %s", path)
	}
	var missing error
	result := includeRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := includeRe.FindStringSubmatch(m)
		name := sub[1]
		resolved, content, err := p.resolveInclude(path, name)
		if err != nil {
			missing = err
			return m
		}
		nested, nestErr := p.expandIncludes(resolved, content, depth+1)
		if nestErr != nil {
			missing = nestErr
			return m
		}
		return nested
	})
	if missing != nil {
		return "", missing
	}
	return result, nil
}

func (p *Preprocessor) resolveInclude(fromPath, name string) (string, string, error) {
	dirs := append([]string{filepath.Dir(fromPath)}, p.IncludeDirs...)
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		data, err := os.ReadFile(candidate)
		if err == nil {
			return candidate, string(data), nil
		}
	}
	return "", "", fmt.Errorf("`include \"%s\": not found in any include directory", name)
}

// collectDefines scans `define/`undef directives in emission order and
// updates p.Defines. The directive text itself is left untouched in the
// output — only C6's stripping pass removes it.
func (p *Preprocessor) collectDefines(text string) {
	lines := splitKeepingContinuations(text)
	for _, line := range lines {
		if m := defineRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			value := strings.TrimSpace(m[3])
			p.Defines[name] = value
			continue
		}
		if m := undefRe.FindStringSubmatch(line); m != nil {
			delete(p.Defines, m[1])
		}
	}
}

// splitKeepingContinuations joins lines ending in a bare backslash so a
// multi-line `define body is seen as one logical line when scanning for
// the directive.
func splitKeepingContinuations(text string) []string {
	raw := strings.Split(text, "\n")
	var out []string
	var cur strings.Builder
	for _, line := range raw {
		trimmed := strings.TrimRight(line, "\r")
		if strings.HasSuffix(trimmed, "\\") {
			cur.WriteString(strings.TrimSuffix(trimmed, "\\"))
			cur.WriteString("\n")
			continue
		}
		cur.WriteString(trimmed)
		out = append(out, cur.String())
		cur.Reset()
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// expandInvocations replaces `NAME (and `NAME(args), minus `define/`undef/
// `include/`ifdef family directives already handled elsewhere, with the
// macro's registered value. Function-like macro arguments are not
// substituted into the body — object-like macros are morty's common case
// (parameter values, width constants) and that is what the ParamType
// usage-scanning rule depends on seeing expanded.
func (p *Preprocessor) expandInvocations(text string) string {
	return invokeRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := invokeRe.FindStringSubmatch(m)
		name := sub[1]
		switch name {
		case "define", "undef", "include", "ifdef", "ifndef", "else", "elsif", "endif",
			"timescale", "timeunit", "timeprecision", "resetall", "celldefine", "endcelldefine",
			"default_nettype", "unconnected_drive", "nounconnected_drive", "line", "pragma":
			return m
		}
		if val, ok := p.Defines[name]; ok {
			return val
		}
		return m
	})
}
