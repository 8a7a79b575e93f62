// Package filetree turns a build's flat artifact list into a folder hierarchy.
package filetree

import (
	"strings"

	"github.com/waabox/builddeck/internal/domain"
)

// NodeType distinguishes files from folders.
type NodeType string

const (
	TypeFile   NodeType = "file"
	TypeFolder NodeType = "folder"
)

// Node is one entry of the tree. Path is the slash-joined path from the root.
type Node struct {
	Name     string
	Path     string
	Type     NodeType
	Children []*Node
}

// IsFolder reports whether n is a folder.
func (n *Node) IsFolder() bool {
	return n.Type == TypeFolder
}

// Conflict records an artifact path that could not be placed as a file.
// Folders always win over files at the same position.
type Conflict struct {
	Path   string
	Reason string
}

// Build creates the tree for artifacts. Siblings appear in the order their
// first artifact appears in the input; no sorting is applied.
//
// When one path needs a file and another a folder at the same position, the
// folder is kept and the file is reported as a Conflict. Empty paths and
// repeated paths are also reported.
func Build(artifacts []domain.Artifact) ([]*Node, []Conflict) {
	var roots []*Node
	var conflicts []Conflict
	seen := make(map[string]bool)

	for _, a := range artifacts {
		segments := splitPath(a.RelativePath)
		if len(segments) == 0 {
			conflicts = append(conflicts, Conflict{Path: a.RelativePath, Reason: "empty path"})
			continue
		}
		full := strings.Join(segments, "/")
		if seen[full] {
			conflicts = append(conflicts, Conflict{Path: full, Reason: "duplicate path"})
			continue
		}

		level := &roots
		for i, name := range segments {
			path := strings.Join(segments[:i+1], "/")
			last := i == len(segments)-1
			existing := find(*level, name)

			if last {
				if existing == nil {
					*level = append(*level, &Node{Name: name, Path: path, Type: TypeFile})
					seen[full] = true
				} else {
					conflicts = append(conflicts, Conflict{Path: full, Reason: "a folder already exists at this path"})
				}
				break
			}

			if existing == nil {
				existing = &Node{Name: name, Path: path, Type: TypeFolder}
				*level = append(*level, existing)
			} else if existing.Type == TypeFile {
				conflicts = append(conflicts, Conflict{Path: existing.Path, Reason: "replaced by a folder of the same name"})
				delete(seen, existing.Path)
				existing.Type = TypeFolder
			}
			level = &existing.Children
		}
	}
	return roots, conflicts
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	segments := parts[:0]
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func find(nodes []*Node, name string) *Node {
	for _, n := range nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Leaves returns the paths of every file in the tree, depth first.
func Leaves(roots []*Node) []string {
	var out []string
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.IsFolder() {
				walk(n.Children)
				continue
			}
			out = append(out, n.Path)
		}
	}
	walk(roots)
	return out
}

// Row is one visible line of a rendered tree.
type Row struct {
	Node  *Node
	Depth int
}

// Visible flattens the tree into display rows. A folder's children are only
// included when its path is in expanded.
func Visible(roots []*Node, expanded map[string]bool) []Row {
	var rows []Row
	var walk func([]*Node, int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			rows = append(rows, Row{Node: n, Depth: depth})
			if n.IsFolder() && expanded[n.Path] {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(roots, 0)
	return rows
}

// Folders returns the path of every folder in the tree.
func Folders(roots []*Node) []string {
	var out []string
	var walk func([]*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			if n.IsFolder() {
				out = append(out, n.Path)
				walk(n.Children)
			}
		}
	}
	walk(roots)
	return out
}
