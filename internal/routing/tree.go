// Package routing renders server topology as indented tree output, the
// /MAP-style view operators expect when inspecting a network.
package routing

import (
	"fmt"
	"sort"
	"strings"
)

// Entry is one server in the tree.
type Entry struct {
	SID    string
	Name   string
	Uplink string // SID of the uplink; empty for the root
	Users  int
}

// Tree collects server entries and renders them hierarchically.
type Tree struct {
	entries map[string]*Entry
}

// NewTree creates an empty tree collector.
func NewTree() *Tree {
	return &Tree{entries: make(map[string]*Entry)}
}

// Add records one server.
func (t *Tree) Add(sid, name, uplink string, users int) {
	t.entries[sid] = &Entry{SID: sid, Name: name, Uplink: uplink, Users: users}
}

// Len returns the number of recorded servers.
func (t *Tree) Len() int {
	return len(t.entries)
}

// Find returns the names of servers whose name starts with prefix,
// case-insensitively, sorted.
func (t *Tree) Find(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var matches []string
	for _, entry := range t.entries {
		if strings.HasPrefix(strings.ToLower(entry.Name), prefix) {
			matches = append(matches, entry.Name)
		}
	}
	sort.Strings(matches)
	return matches
}

// Render builds the formatted tree lines, depth-first with children sorted
// by name. Servers whose uplink is unknown are treated as roots so a
// partial view still renders.
func (t *Tree) Render() []string {
	if len(t.entries) == 0 {
		return nil
	}

	var roots []*Entry
	for _, entry := range t.entries {
		if entry.Uplink == "" || t.entries[entry.Uplink] == nil {
			roots = append(roots, entry)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })

	var lines []string
	for _, root := range roots {
		lines = append(lines, fmt.Sprintf("%s [%d users]", root.Name, root.Users))
		t.renderChildren(root.SID, 1, &lines)
	}
	return lines
}

func (t *Tree) renderChildren(parent string, depth int, lines *[]string) {
	var children []*Entry
	for _, entry := range t.entries {
		if entry.Uplink == parent && entry.SID != parent {
			children = append(children, entry)
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].Name < children[j].Name })

	for _, child := range children {
		indent := strings.Repeat("    ", depth-1)
		*lines = append(*lines, fmt.Sprintf("%s|_ %s [%d users]", indent, child.Name, child.Users))
		t.renderChildren(child.SID, depth+1, lines)
	}
}
