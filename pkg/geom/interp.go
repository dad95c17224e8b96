package geom

import (
	"cmp"
	"math"
	"slices"

	"github.com/paulmach/orb/planar"
)

// Resample returns n points spaced evenly by arc length along the closed
// ring r, starting at r[0].
func Resample(r Ring, n int) Ring {
	if n < 1 {
		return nil
	}
	out := make(Ring, n)
	if len(r) == 0 {
		return out
	}
	if len(r) == 1 {
		for i := range out {
			out[i] = r[0]
		}
		return out
	}

	// Cumulative arc length including the closing edge.
	cum := make([]float64, len(r)+1)
	for i := 1; i <= len(r); i++ {
		cum[i] = cum[i-1] + planar.Distance(r[i-1], r[i%len(r)])
	}
	total := cum[len(r)]
	if total == 0 {
		for i := range out {
			out[i] = r[0]
		}
		return out
	}

	seg := 0
	for i := 0; i < n; i++ {
		target := total * float64(i) / float64(n)
		for seg < len(r)-1 && cum[seg+1] < target {
			seg++
		}
		length := cum[seg+1] - cum[seg]
		if length == 0 {
			out[i] = r[seg]
			continue
		}
		out[i] = LerpPoint(r[seg], r[(seg+1)%len(r)], (target-cum[seg])/length)
	}
	return out
}

// Align returns a copy of b rotated (and reversed if the windings differ) so
// that b[i] corresponds to a[i] with the least total squared distance.
// Both rings must have the same length.
func Align(a, b Ring) Ring {
	n := len(b)
	if n == 0 || len(a) != n {
		return append(Ring(nil), b...)
	}
	src := b
	if (SignedArea(a) < 0) != (SignedArea(b) < 0) {
		src = make(Ring, n)
		for i := range b {
			src[i] = b[n-1-i]
		}
	}

	best, bestCost := 0, math.Inf(1)
	for shift := 0; shift < n; shift++ {
		cost := 0.0
		for i := 0; i < n; i++ {
			cost += planar.DistanceSquared(a[i], src[(i+shift)%n])
			if cost >= bestCost {
				break
			}
		}
		if cost < bestCost {
			best, bestCost = shift, cost
		}
	}

	out := make(Ring, n)
	for i := range out {
		out[i] = src[(i+best)%n]
	}
	return out
}

// Densify returns r with extra vertices inserted along its edges until it has
// n vertices. Original vertices are kept, so the shape is unchanged. Extra
// vertices go to edges in proportion to their length.
func Densify(r Ring, n int) Ring {
	if len(r) < 2 || len(r) >= n {
		return append(Ring(nil), r...)
	}
	extra := n - len(r)
	lengths := make([]float64, len(r))
	total := 0.0
	for i := range r {
		lengths[i] = planar.Distance(r[i], r[(i+1)%len(r)])
		total += lengths[i]
	}

	counts := make([]int, len(r))
	assigned := 0
	if total > 0 {
		for i, l := range lengths {
			counts[i] = int(math.Floor(float64(extra) * l / total))
			assigned += counts[i]
		}
	}
	// Hand out the remainder round-robin from the longest edge.
	order := make([]int, len(r))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(lengths[b], lengths[a]) })
	for k := 0; assigned < extra; k++ {
		counts[order[k%len(order)]]++
		assigned++
	}

	out := make(Ring, 0, n)
	for i, p := range r {
		out = append(out, p)
		q := r[(i+1)%len(r)]
		for j := 1; j <= counts[i]; j++ {
			out = append(out, LerpPoint(p, q, float64(j)/float64(counts[i]+1)))
		}
	}
	return out
}

// Correspond densifies a and b to at least n vertices each (the larger of n
// and both lengths) and aligns the second to the first, yielding a pair
// ready for Lerp. Both shapes are preserved exactly.
func Correspond(a, b Ring, n int) (Ring, Ring) {
	n = max(n, len(a), len(b))
	da := Densify(a, n)
	db := Align(da, Densify(b, n))
	return da, db
}

// Lerp interpolates vertex-wise between two rings of equal length.
// t is clamped to [0, 1]; t=0 returns a copy of a and t=1 a copy of b.
func Lerp(a, b Ring, t float64) Ring {
	t = Clamp01(t)
	switch t {
	case 0:
		return append(Ring(nil), a...)
	case 1:
		return append(Ring(nil), b...)
	}
	n := min(len(a), len(b))
	out := make(Ring, n)
	for i := 0; i < n; i++ {
		out[i] = LerpPoint(a[i], b[i], t)
	}
	return out
}
