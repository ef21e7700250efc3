package sv

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// CST is a borrowed, read-only view over a ParsedFile's PreprocessedText:
// the tree never owns the bytes it was parsed from, callers must keep
// ParsedFile.PreprocessedText alive for as long as the CST is walked.
type CST struct {
	Tree *tree_sitter.Tree
}

// Root returns the tree's root node, or nil if the tree is nil (e.g. a
// dropped job under --ignore-unparseable).
func (c *CST) Root() *tree_sitter.Node {
	if c == nil || c.Tree == nil {
		return nil
	}
	root := c.Tree.RootNode()
	return &root
}

// NodeSpan converts a tree-sitter byte range into a Span.
func NodeSpan(n *tree_sitter.Node) Span {
	r := n.Range()
	return Span{Start: r.StartByte, End: r.EndByte}
}

// Close releases the underlying tree-sitter tree. Safe to call on a nil CST.
func (c *CST) Close() {
	if c == nil || c.Tree == nil {
		return
	}
	c.Tree.Close()
}
