package packing

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/matzehuels/rostermap/pkg/geom"
)

// Defaults for the simulation.
const (
	DefaultIterations    = 500
	DefaultAnchorForce   = 1.0
	DefaultRepulsion     = -30.0
	DefaultMinRadius     = 50.0
	DefaultMargin        = 6.0
	DefaultVelocityDecay = 0.4
	DefaultSeed          = uint64(42)
)

// Node is one territory circle.
type Node struct {
	ID     string
	Anchor geom.Point
	Center geom.Point
	Radius float64

	// Placed marks Center as a valid starting position. Unplaced nodes start
	// at their anchor.
	Placed bool
	Pinned bool
}

// Options tunes the simulation. Zero fields take defaults.
type Options struct {
	Iterations    int
	AnchorForce   float64
	Repulsion     float64
	MinRadius     float64
	Margin        float64
	VelocityDecay float64
	Seed          uint64
}

func (o *Options) setDefaults() {
	if o.Iterations <= 0 {
		o.Iterations = DefaultIterations
	}
	if o.AnchorForce == 0 {
		o.AnchorForce = DefaultAnchorForce
	}
	if o.Repulsion == 0 {
		o.Repulsion = DefaultRepulsion
	}
	if o.MinRadius <= 0 {
		o.MinRadius = DefaultMinRadius
	}
	if o.Margin <= 0 {
		o.Margin = DefaultMargin
	}
	if o.VelocityDecay <= 0 || o.VelocityDecay >= 1 {
		o.VelocityDecay = DefaultVelocityDecay
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
}

// body is the mutable simulation state of one node.
type body struct {
	idx    int
	x, y   float64
	vx, vy float64
	ax, ay float64
	r      float64
	pinned bool
}

// Layout returns a copy of nodes with updated centers. Anchors and radii are
// never changed. Every returned node is Placed.
func Layout(nodes []Node, opts Options) []Node {
	opts.setDefaults()

	out := slices.Clone(nodes)
	if len(out) == 0 {
		return out
	}

	order := make([]int, len(out))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(out[a].ID, out[b].ID) })

	bodies := make([]*body, len(out))
	for k, i := range order {
		n := out[i]
		start := n.Anchor
		if n.Placed || n.Pinned {
			start = n.Center
		}
		bodies[k] = &body{
			idx:    i,
			x:      start[0],
			y:      start[1],
			ax:     n.Anchor[0],
			ay:     n.Anchor[1],
			r:      math.Max(n.Radius, opts.MinRadius) + opts.Margin,
			pinned: n.Pinned,
		}
	}

	s := &simulation{
		bodies: bodies,
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xdeadbeef)),
		alpha:  1,
		decay:  1 - math.Pow(0.001, 1.0/300),
	}
	for i := 0; i < opts.Iterations; i++ {
		s.tick()
	}

	for _, b := range bodies {
		out[b.idx].Center = geom.Point{b.x, b.y}
		out[b.idx].Placed = true
	}
	return out
}

// Overlaps returns the pairs of node ids whose circles (radius plus margin)
// intersect by more than tol.
func Overlaps(nodes []Node, margin, tol float64) [][2]string {
	var out [][2]string
	for i := range nodes {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			if a.Radius <= 0 || b.Radius <= 0 {
				continue
			}
			d := math.Hypot(a.Center[0]-b.Center[0], a.Center[1]-b.Center[1])
			if d+tol < a.Radius+b.Radius+margin {
				out = append(out, [2]string{a.ID, b.ID})
			}
		}
	}
	return out
}
