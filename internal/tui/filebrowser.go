package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/builddeck/internal/filetree"
)

// FileTreeModel is an immutable model for the build's artifact tree.
type FileTreeModel struct {
	roots    []*filetree.Node
	expanded map[string]bool
	cursor   int
}

// NewFileTreeModel creates a tree model with every folder expanded.
func NewFileTreeModel(roots []*filetree.Node) FileTreeModel {
	expanded := make(map[string]bool)
	for _, p := range filetree.Folders(roots) {
		expanded[p] = true
	}
	return FileTreeModel{roots: roots, expanded: expanded}
}

func (m FileTreeModel) rows() []filetree.Row {
	return filetree.Visible(m.roots, m.expanded)
}

// MoveDown returns a new model with the cursor moved down by one.
func (m FileTreeModel) MoveDown() FileTreeModel {
	if m.cursor < len(m.rows())-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m FileTreeModel) MoveUp() FileTreeModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m FileTreeModel) Cursor() int {
	return m.cursor
}

// Selected returns the node under the cursor.
func (m FileTreeModel) Selected() (*filetree.Node, bool) {
	rows := m.rows()
	if len(rows) == 0 {
		return nil, false
	}
	return rows[m.cursor].Node, true
}

// Toggle returns a new model with the folder under the cursor collapsed or
// expanded. It is a no-op on files.
func (m FileTreeModel) Toggle() FileTreeModel {
	n, ok := m.Selected()
	if !ok || !n.IsFolder() {
		return m
	}
	expanded := make(map[string]bool, len(m.expanded)+1)
	for k, v := range m.expanded {
		expanded[k] = v
	}
	expanded[n.Path] = !expanded[n.Path]
	m.expanded = expanded
	if rows := m.rows(); m.cursor >= len(rows) {
		m.cursor = len(rows) - 1
	}
	return m
}

// View renders the visible rows. failed marks files whose prefetch failed.
func (m FileTreeModel) View(failed map[string]error) string {
	rows := m.rows()
	if len(rows) == 0 {
		return "No files. Complete a build to browse its output."
	}
	var sb strings.Builder
	for i, r := range rows {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		icon := "  "
		switch {
		case r.Node.IsFolder() && m.expanded[r.Node.Path]:
			icon = "▾ "
		case r.Node.IsFolder():
			icon = "▸ "
		}
		name := r.Node.Name
		if r.Node.IsFolder() {
			name += "/"
		}
		suffix := ""
		if _, bad := failed[r.Node.Path]; bad {
			suffix = errorStyle.Render("  (failed to load)")
		}
		sb.WriteString(fmt.Sprintf("%s%s%s%s%s\n", prefix, strings.Repeat("  ", r.Depth), icon, name, suffix))
	}
	return sb.String()
}
