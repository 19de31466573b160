package graph

import "math"

// Default layout parameters.
const (
	DefaultWidth  = 300.0
	DefaultHeight = 300.0
	DefaultRadius = 100.0
)

// Options are the layout parameters. Zero values take the defaults.
type Options struct {
	Width  float64
	Height float64
	Radius float64
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Radius <= 0 {
		o.Radius = DefaultRadius
	}
	return o
}

// PositionedNode is a node with canvas coordinates.
type PositionedNode struct {
	Node
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Color string  `json:"color"`
}

// Layout places node i of N at angle 2π·i/N on a circle of opts.Radius
// centred in the canvas. It is deterministic and ignores links.
func Layout(d Data, opts Options) []PositionedNode {
	opts = opts.withDefaults()
	cx, cy := opts.Width/2, opts.Height/2

	out := make([]PositionedNode, len(d.Nodes))
	n := float64(len(d.Nodes))
	for i, node := range d.Nodes {
		angle := float64(i) / n * 2 * math.Pi
		out[i] = PositionedNode{
			Node:  node,
			X:     cx + opts.Radius*math.Cos(angle),
			Y:     cy + opts.Radius*math.Sin(angle),
			Color: GroupColor(node.Group),
		}
	}
	return out
}
