package regalloc

import (
	"fmt"
	"io"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// dotNode adapts a graph node for the gonum DOT encoder
type dotNode struct {
	id    int64
	label string
	fixed bool
}

func (d dotNode) ID() int64 { return d.id }

func (d dotNode) Attributes() []encoding.Attribute {
	attrs := []encoding.Attribute{{Key: "label", Value: fmt.Sprintf("%q", d.label)}}
	if d.fixed {
		attrs = append(attrs, encoding.Attribute{Key: "shape", Value: "box"})
	}
	return attrs
}

// nodeLabel names a node the way it appears in the shader: v3:2, p1, m0
func (g *Graph) nodeLabel(n *Node) string {
	var label string
	switch n.Kind {
	case KindPayload:
		label = fmt.Sprintf("p%d", n.ID-g.NumVirtual)
	case KindAlias:
		label = fmt.Sprintf("m%d", n.ID-g.NumVirtual-g.NumPayload)
	default:
		label = fmt.Sprintf("v%d:%d", n.ID, n.Size)
	}
	if n.Color != NoColor {
		label += fmt.Sprintf(" @g%d", n.Color)
	}
	return label
}

// MarshalDOT renders the interference graph in Graphviz DOT syntax.
// Fixed nodes without any edge are left out.
func MarshalDOT(g *Graph, name string) ([]byte, error) {
	rig := simple.NewUndirectedGraph()
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Fixed() && len(n.Adj) == 0 {
			continue
		}
		rig.AddNode(dotNode{id: int64(n.ID), label: g.nodeLabel(n), fixed: n.Fixed()})
	}
	for i := range g.Nodes {
		for _, j := range g.Nodes[i].Adj {
			if i < j && !rig.HasEdgeBetween(int64(i), int64(j)) {
				rig.SetEdge(rig.NewEdge(rig.Node(int64(i)), rig.Node(int64(j))))
			}
		}
	}
	return dot.Marshal(rig, name, "", "  ")
}

// WriteDOT writes the DOT rendering of g to w
func WriteDOT(w io.Writer, g *Graph, name string) error {
	buf, err := MarshalDOT(g, name)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
