package trajectory

import (
	"muxsynth/models"
)

// Builder turns a segment tree into absolute positions. It emits the
// origin first, then one position per leaf, accumulating in float64 in
// walk order. Replaying the same tree always yields the same bits.
type Builder struct {
	walker  *models.Walker
	pos     models.Vec3
	started bool
}

// NewBuilder prepares a trajectory starting at origin.
func NewBuilder(origin models.Vec3, root models.Segment) *Builder {
	return &Builder{walker: models.NewWalker(root), pos: origin}
}

// Next returns the next absolute position.
func (b *Builder) Next() (models.Vec3, bool) {
	if !b.started {
		b.started = true
		return b.pos, true
	}
	d, ok := b.walker.Next()
	if !ok {
		return models.Vec3{}, false
	}
	b.pos = b.pos.Add(d)
	return b.pos, true
}

// Err reports a malformed segment met during the walk.
func (b *Builder) Err() error { return b.walker.Err() }

// Build runs a Builder to completion.
func Build(origin models.Vec3, root models.Segment) ([]models.Vec3, error) {
	b := NewBuilder(origin, root)
	out := make([]models.Vec3, 0, root.LeafCount()+1)
	for {
		p, ok := b.Next()
		if !ok {
			break
		}
		out = append(out, p)
	}
	if err := b.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
