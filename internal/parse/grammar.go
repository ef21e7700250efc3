package parse

import (
	"fmt"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_verilog "github.com/tree-sitter-grammars/tree-sitter-verilog"

	"github.com/pulp-platform/morty/internal/sv"
)

// Grammar wraps the community-maintained tree-sitter SystemVerilog grammar:
// one *tree_sitter.Parser per goroutine slot, built lazily, because
// *tree_sitter.Parser is not safe for concurrent Parse calls.
type Grammar struct {
	language *tree_sitter.Language

	mu      sync.Mutex
	parsers []*tree_sitter.Parser // free list
}

// NewGrammar loads the SystemVerilog grammar once for the run.
func NewGrammar() *Grammar {
	return &Grammar{language: tree_sitter.NewLanguage(tree_sitter_verilog.Language())}
}

// acquire returns a parser instance bound to the SV language, reusing one
// from the free list when available.
func (g *Grammar) acquire() *tree_sitter.Parser {
	g.mu.Lock()
	if n := len(g.parsers); n > 0 {
		p := g.parsers[n-1]
		g.parsers = g.parsers[:n-1]
		g.mu.Unlock()
		return p
	}
	g.mu.Unlock()

	p := tree_sitter.NewParser()
	_ = p.SetLanguage(g.language)
	return p
}

func (g *Grammar) release(p *tree_sitter.Parser) {
	g.mu.Lock()
	g.parsers = append(g.parsers, p)
	g.mu.Unlock()
}

// Parse builds a CST over preprocessed source text.
func (g *Grammar) Parse(preprocessed []byte) (*sv.CST, error) {
	p := g.acquire()
	defer g.release(p)

	tree := p.Parse(preprocessed, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter-verilog: parser returned no tree")
	}
	root := tree.RootNode()
	if root.HasError() {
		return &sv.CST{Tree: tree}, fmt.Errorf("syntax error in preprocessed source")
	}
	return &sv.CST{Tree: tree}, nil
}
