// Package graph defines the memory relationship graph and its circular layout.
package graph

// Node is one memory in a relationship graph.
type Node struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Group string  `json:"group"`
	Val   float64 `json:"val"`
}

// Link is an undirected relationship between two nodes.
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Reason string `json:"reason,omitempty"`
}

// Data is a relationship graph.
type Data struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Empty returns a graph with no nodes or links. The slices are non-nil so
// the graph encodes as empty JSON arrays.
func Empty() Data {
	return Data{Nodes: []Node{}, Links: []Link{}}
}

// IsEmpty reports whether the graph has no nodes.
func (d Data) IsEmpty() bool {
	return len(d.Nodes) == 0
}

// Sanitize normalises provider output. Nodes without an id and repeated
// ids are dropped (the first occurrence wins). Val defaults to 1 and Label
// to the id. Links survive only when both endpoints are distinct node ids.
// Sanitize never adds nodes or links.
func Sanitize(d Data) Data {
	out := Empty()
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" || ids[n.ID] {
			continue
		}
		ids[n.ID] = true
		if n.Val <= 0 {
			n.Val = 1
		}
		if n.Label == "" {
			n.Label = n.ID
		}
		out.Nodes = append(out.Nodes, n)
	}
	for _, l := range d.Links {
		if l.Source == l.Target {
			continue
		}
		if !ids[l.Source] || !ids[l.Target] {
			continue
		}
		out.Links = append(out.Links, l)
	}
	return out
}

var groupColors = map[string]string{
	"Joyful":   "#3B82F6",
	"Sad":      "#6B7280",
	"Creative": "#8B5CF6",
	"Work":     "#10B981",
	"Life":     "#F59E0B",
}

// DefaultGroupColor is used for groups without a palette entry.
const DefaultGroupColor = "#EC4899"

// GroupColor returns the display colour hint for a node group.
func GroupColor(group string) string {
	if c, ok := groupColors[group]; ok {
		return c
	}
	return DefaultGroupColor
}
