package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	errs "github.com/matzehuels/rostermap/pkg/errors"
)

// Point is a 2-D point in screen coordinates.
type Point = orb.Point

// Ring is an open ordered ring of points.
type Ring = orb.Ring

// MinSides is the smallest polygon RegularPolygon will build.
const MinSides = 3

// RegularPolygon returns the vertices of a regular polygon inscribed in the
// circle of the given radius. Vertex i sits at angle 2πi/sides, counter-clockwise.
// A radius that is zero, negative or not finite is a construction error.
func RegularPolygon(center Point, radius float64, sides int) (Ring, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, errs.New(errs.ErrCodeInvalidGeometry, "radius may not equal zero (got %v)", radius)
	}
	if sides < MinSides {
		return nil, errs.New(errs.ErrCodeInvalidGeometry, "polygon needs at least %d sides, got %d", MinSides, sides)
	}
	ring := make(Ring, sides)
	step := 2 * math.Pi / float64(sides)
	for i := range ring {
		a := float64(i) * step
		ring[i] = Point{center[0] + radius*math.Cos(a), center[1] + radius*math.Sin(a)}
	}
	return ring, nil
}

// Token returns a small circular ring used as the travelling placeholder of a
// member. Unlike RegularPolygon a zero radius is allowed and collapses all
// vertices onto the center.
func Token(center Point, radius float64, sides int) Ring {
	if sides < MinSides {
		sides = MinSides
	}
	radius = math.Max(radius, 0)
	ring := make(Ring, sides)
	step := 2 * math.Pi / float64(sides)
	for i := range ring {
		a := float64(i) * step
		ring[i] = Point{center[0] + radius*math.Cos(a), center[1] + radius*math.Sin(a)}
	}
	return ring
}

// PackRadius converts a weight into the radius of a circle whose area is
// proportional to it.
func PackRadius(weight, scale float64) float64 {
	if !(weight > 0) || math.IsInf(weight, 0) {
		return 0
	}
	return scale * math.Sqrt(weight)
}

// SignedArea returns the shoelace area of r; positive when counter-clockwise.
func SignedArea(r Ring) float64 {
	_, a := planar.CentroidArea(r)
	return a
}

// Area returns the absolute area enclosed by r.
func Area(r Ring) float64 {
	return math.Abs(SignedArea(r))
}

// Centroid returns the area centroid of r.
func Centroid(r Ring) Point {
	if len(r) == 0 {
		return Point{}
	}
	c, _ := planar.CentroidArea(r)
	return c
}

// Contains reports whether p lies inside r or on its boundary.
func Contains(r Ring, p Point) bool {
	if len(r) < MinSides {
		return false
	}
	return planar.RingContains(r, p)
}

// CircleContains reports whether every vertex of r lies within the circle,
// allowing tol of slack.
func CircleContains(center Point, radius float64, r Ring, tol float64) bool {
	for _, p := range r {
		if planar.Distance(center, p) > radius+tol {
			return false
		}
	}
	return true
}

// Translate returns r shifted by d.
func Translate(r Ring, d Point) Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[i] = Point{p[0] + d[0], p[1] + d[1]}
	}
	return out
}

// Scale returns r scaled by k about center.
func Scale(r Ring, center Point, k float64) Ring {
	out := make(Ring, len(r))
	for i, p := range r {
		out[i] = Point{center[0] + k*(p[0]-center[0]), center[1] + k*(p[1]-center[1])}
	}
	return out
}

// ClipHalfPlane returns the part of the convex ring r where a*x + b*y <= c.
// The result is empty when the half plane misses r entirely.
func ClipHalfPlane(r Ring, a, b, c float64) Ring {
	if len(r) == 0 {
		return nil
	}
	inside := func(p Point) bool { return a*p[0]+b*p[1] <= c }
	cross := func(p, q Point) Point {
		fp := a*p[0] + b*p[1] - c
		fq := a*q[0] + b*q[1] - c
		t := fp / (fp - fq)
		return Point{p[0] + t*(q[0]-p[0]), p[1] + t*(q[1]-p[1])}
	}

	out := make(Ring, 0, len(r)+1)
	prev := r[len(r)-1]
	prevIn := inside(prev)
	for _, cur := range r {
		curIn := inside(cur)
		switch {
		case curIn && prevIn:
			out = append(out, cur)
		case curIn && !prevIn:
			out = append(out, cross(prev, cur), cur)
		case !curIn && prevIn:
			out = append(out, cross(prev, cur))
		}
		prev, prevIn = cur, curIn
	}
	if len(out) < MinSides {
		return nil
	}
	return out
}

// Clamp01 clamps t into [0, 1]; NaN maps to 0.
func Clamp01(t float64) float64 {
	switch {
	case !(t > 0):
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// LerpFloat interpolates linearly between a and b.
func LerpFloat(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpPoint interpolates linearly between p and q.
func LerpPoint(p, q Point, t float64) Point {
	return Point{p[0] + (q[0]-p[0])*t, p[1] + (q[1]-p[1])*t}
}
