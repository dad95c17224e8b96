package packing

import (
	"math"
	"math/rand/v2"
)

// distanceMin2 floors the squared distance used by repulsion.
const distanceMin2 = 1.0

type simulation struct {
	bodies []*body
	opts   Options
	rng    *rand.Rand
	alpha  float64
	decay  float64
}

func (s *simulation) tick() {
	s.alpha += (0 - s.alpha) * s.decay

	s.anchor()
	s.repel()
	s.collide()

	keep := 1 - s.opts.VelocityDecay
	for _, b := range s.bodies {
		if b.pinned {
			b.vx, b.vy = 0, 0
			continue
		}
		b.vx *= keep
		b.vy *= keep
		b.x += b.vx
		b.y += b.vy
	}
}

// jiggle returns a tiny non-zero offset.
func (s *simulation) jiggle() float64 {
	return (s.rng.Float64() - 0.5) * 1e-6
}

func (s *simulation) anchor() {
	k := s.opts.AnchorForce * s.alpha
	for _, b := range s.bodies {
		if b.pinned {
			continue
		}
		b.vx += (b.ax - b.x) * k
		b.vy += (b.ay - b.y) * k
	}
}

func (s *simulation) repel() {
	for i, a := range s.bodies {
		if a.pinned {
			continue
		}
		for j, b := range s.bodies {
			if i == j {
				continue
			}
			dx, dy := b.x-a.x, b.y-a.y
			if dx == 0 {
				dx = s.jiggle()
			}
			if dy == 0 {
				dy = s.jiggle()
			}
			l := dx*dx + dy*dy
			if l < distanceMin2 {
				l = math.Sqrt(distanceMin2 * l)
			}
			w := s.opts.Repulsion * s.alpha / l
			a.vx += dx * w
			a.vy += dy * w
		}
	}
}

// collide separates overlapping circles using their predicted positions.
// The smaller circle moves more: each side takes the other's share of r².
// Pinned bodies carry no velocity, so their predicted position is their
// center.
func (s *simulation) collide() {
	for i, a := range s.bodies {
		ra2 := a.r * a.r
		for _, b := range s.bodies[i+1:] {
			if a.pinned && b.pinned {
				continue
			}
			r := a.r + b.r
			dx := a.x + a.vx - b.x - b.vx
			dy := a.y + a.vy - b.y - b.vy
			l := dx*dx + dy*dy
			if l >= r*r {
				continue
			}
			if dx == 0 {
				dx = s.jiggle()
				l += dx * dx
			}
			if dy == 0 {
				dy = s.jiggle()
				l += dy * dy
			}
			l = math.Sqrt(l)
			l = (r - l) / l
			dx *= l
			dy *= l
			rb2 := b.r * b.r
			share := rb2 / (ra2 + rb2)
			switch {
			case a.pinned && !b.pinned:
				share = 0
			case b.pinned && !a.pinned:
				share = 1
			}
			a.vx += dx * share
			a.vy += dy * share
			b.vx -= dx * (1 - share)
			b.vy -= dy * (1 - share)
		}
	}
}
