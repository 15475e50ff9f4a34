package models

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/yaml.v3"
)

// SegmentKind tags the variant held by a Segment.
type SegmentKind uint8

const (
	SegmentLeaf SegmentKind = iota
	SegmentBranch
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLeaf:
		return "leaf"
	case SegmentBranch:
		return "branch"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Segment describes motion as a tree. A leaf carries one displacement
// (Δx, Δy, Δz); a branch carries an ordered, non-empty list of segments
// that are executed in order.
//
// Delta is a slice rather than a Vec3 so that segments decoded from
// configuration keep whatever shape the author wrote; the Walker rejects
// anything that is not three finite numbers.
type Segment struct {
	Kind     SegmentKind
	Delta    []float64
	Children []Segment
}

// Leaf builds a displacement segment.
func Leaf(v Vec3) Segment {
	return Segment{Kind: SegmentLeaf, Delta: []float64{v[0], v[1], v[2]}}
}

// Branch builds a sequence segment from its children.
func Branch(children ...Segment) Segment {
	return Segment{Kind: SegmentBranch, Children: children}
}

// Repeat builds a branch holding n copies of s. The copies share
// backing storage; segments are never mutated after construction.
func Repeat(s Segment, n int) Segment {
	children := make([]Segment, n)
	for i := range children {
		children[i] = s
	}
	return Branch(children...)
}

// LeafCount returns the number of leaves reachable from s without
// validating them.
func (s Segment) LeafCount() int {
	if s.Kind == SegmentLeaf {
		return 1
	}
	total := 0
	for _, c := range s.Children {
		total += c.LeafCount()
	}
	return total
}

// ─── YAML form ──────────────────────────────────────────────────────────
//
//	[0, 300, 0]                      leaf
//	[[0, 300, 0], [0, 0, 30]]        branch
//	{repeat: 10, sequence: [...]}    branch of 10 copies of the sequence
//
// Anchors and aliases may be used to share subtrees.

// UnmarshalYAML decodes a segment tree from its YAML form.
func (s *Segment) UnmarshalYAML(node *yaml.Node) error {
	seg, err := segmentFromNode(node, "root")
	if err != nil {
		return err
	}
	*s = seg
	return nil
}

func segmentFromNode(node *yaml.Node, path string) (Segment, error) {
	if node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	switch node.Kind {
	case yaml.SequenceNode:
		if len(node.Content) == 0 {
			return Segment{}, fmt.Errorf("%w: empty sequence at %s (line %d)", ErrMalformedSegment, path, node.Line)
		}
		if isScalarSeq(node) {
			delta := make([]float64, len(node.Content))
			for i, c := range node.Content {
				if err := c.Decode(&delta[i]); err != nil {
					return Segment{}, fmt.Errorf("%w: %s[%d] (line %d): %v", ErrMalformedSegment, path, i, c.Line, err)
				}
			}
			return Segment{Kind: SegmentLeaf, Delta: delta}, nil
		}
		children := make([]Segment, 0, len(node.Content))
		for i, c := range node.Content {
			child, err := segmentFromNode(c, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return Segment{}, err
			}
			children = append(children, child)
		}
		return Branch(children...), nil

	case yaml.MappingNode:
		var rep struct {
			Repeat   int       `yaml:"repeat"`
			Sequence yaml.Node `yaml:"sequence"`
		}
		if err := node.Decode(&rep); err != nil {
			return Segment{}, fmt.Errorf("%w: %s (line %d): %v", ErrMalformedSegment, path, node.Line, err)
		}
		if rep.Repeat < 1 {
			return Segment{}, fmt.Errorf("%w: %s (line %d): repeat must be >= 1", ErrMalformedSegment, path, node.Line)
		}
		body, err := segmentFromNode(&rep.Sequence, path+".sequence")
		if err != nil {
			return Segment{}, err
		}
		return Repeat(body, rep.Repeat), nil

	default:
		return Segment{}, fmt.Errorf("%w: %s (line %d): expected sequence, got %s", ErrMalformedSegment, path, node.Line, node.ShortTag())
	}
}

// isScalarSeq reports whether every element of a sequence node is a
// scalar. Mixed sequences are treated as branches so the scalar element
// surfaces as a malformed leaf with a precise path.
func isScalarSeq(node *yaml.Node) bool {
	for _, c := range node.Content {
		if c.Kind == yaml.AliasNode {
			c = c.Alias
		}
		if c.Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}

// ─── flattening ─────────────────────────────────────────────────────────

type walkFrame struct {
	nodes []Segment
	next  int
}

// Walker flattens a segment tree into its leaf displacements, pre-order,
// depth-first, children in their given order. It is lazy and cannot be
// restarted: after the last leaf or the first error, Next keeps
// returning false.
type Walker struct {
	stack []walkFrame
	err   error
	done  bool
	count int
}

// NewWalker prepares a walk over root.
func NewWalker(root Segment) *Walker {
	return &Walker{stack: []walkFrame{{nodes: []Segment{root}}}}
}

// Next returns the next leaf displacement.
func (w *Walker) Next() (Vec3, bool) {
	if w.done {
		return Vec3{}, false
	}
	for len(w.stack) > 0 {
		top := &w.stack[len(w.stack)-1]
		if top.next >= len(top.nodes) {
			w.stack = w.stack[:len(w.stack)-1]
			continue
		}
		node := top.nodes[top.next]
		top.next++

		switch node.Kind {
		case SegmentBranch:
			if len(node.Children) == 0 {
				w.fail("empty sequence")
				return Vec3{}, false
			}
			w.stack = append(w.stack, walkFrame{nodes: node.Children})
		case SegmentLeaf:
			v, reason := leafVector(node.Delta)
			if reason != "" {
				w.fail(reason)
				return Vec3{}, false
			}
			w.count++
			return v, true
		default:
			w.fail(fmt.Sprintf("unknown segment %s", node.Kind))
			return Vec3{}, false
		}
	}
	w.done = true
	return Vec3{}, false
}

// Err returns the error that stopped the walk, if any.
func (w *Walker) Err() error { return w.err }

// Count returns how many leaves have been yielded so far.
func (w *Walker) Count() int { return w.count }

func (w *Walker) fail(reason string) {
	w.err = fmt.Errorf("%w: %s at %s", ErrMalformedSegment, reason, w.path())
	w.done = true
	w.stack = nil
}

// path renders the child indices leading to the node just consumed.
func (w *Walker) path() string {
	var b strings.Builder
	b.WriteString("root")
	for i, f := range w.stack {
		if i == 0 {
			continue
		}
		fmt.Fprintf(&b, "[%d]", f.next-1)
	}
	return b.String()
}

func leafVector(delta []float64) (Vec3, string) {
	if len(delta) != 3 {
		return Vec3{}, fmt.Sprintf("leaf has %d components, want 3", len(delta))
	}
	var v Vec3
	for i, c := range delta {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return Vec3{}, fmt.Sprintf("leaf component %d is not finite", i)
		}
		v[i] = c
	}
	return v, ""
}

// Flatten walks root eagerly and returns every leaf displacement.
func Flatten(root Segment) ([]Vec3, error) {
	w := NewWalker(root)
	out := make([]Vec3, 0, root.LeafCount())
	for {
		v, ok := w.Next()
		if !ok {
			break
		}
		out = append(out, v)
	}
	if err := w.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
