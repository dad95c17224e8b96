package voronoi

import (
	"cmp"
	"math"
	"math/rand/v2"
	"slices"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/geom"
)

// Defaults for the solver.
const (
	DefaultClipSides        = 35
	DefaultMaxIterations    = 50
	DefaultConvergenceRatio = 0.01
	DefaultMinWeightRatio   = 0.01
	DefaultSeed             = uint64(42)
)

// flickerInfluence bounds how strongly oscillation damps each adjustment.
const flickerInfluence = 0.5

// historyLength is the number of area errors kept to detect oscillation.
const historyLength = 10

// epsilon keeps power weights strictly positive.
const epsilon = 1e-10

// Site is one member to place.
type Site struct {
	MemberID string
	Weight   float64

	// Prior is the member's generator position from an earlier partition.
	Prior *geom.Point
}

// Request describes one territory to partition.
type Request struct {
	TerritoryID string
	Center      geom.Point
	Radius      float64
	Sites       []Site
}

// Options tunes the solver. Zero fields take defaults.
type Options struct {
	ClipSides        int
	MaxIterations    int
	ConvergenceRatio float64
	MinWeightRatio   float64
	Seed             uint64
}

func (o *Options) setDefaults() {
	if o.ClipSides < geom.MinSides {
		o.ClipSides = DefaultClipSides
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.ConvergenceRatio <= 0 {
		o.ConvergenceRatio = DefaultConvergenceRatio
	}
	if o.MinWeightRatio <= 0 {
		o.MinWeightRatio = DefaultMinWeightRatio
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
}

// Cell is one member's region.
type Cell struct {
	MemberID    string
	TerritoryID string
	Polygon     geom.Ring

	// Site is the final generator position, fed back as the next prior.
	Site   geom.Point
	Weight float64
	Area   float64
}

// Result is the outcome of one partition.
type Result struct {
	Clip       geom.Ring
	Cells      []Cell
	Iterations int
	Converged  bool
	AreaError  float64
}

// Cell returns the cell of member id.
func (r Result) Cell(id string) (Cell, bool) {
	for _, c := range r.Cells {
		if c.MemberID == id {
			return c, true
		}
	}
	return Cell{}, false
}

// Translate returns a copy of r shifted by d, for a territory whose circle
// moved without changing size.
func (r Result) Translate(d geom.Point) Result {
	out := r
	out.Clip = geom.Translate(r.Clip, d)
	out.Cells = make([]Cell, len(r.Cells))
	for i, c := range r.Cells {
		c.Polygon = geom.Translate(c.Polygon, d)
		c.Site = geom.Point{c.Site[0] + d[0], c.Site[1] + d[1]}
		out.Cells[i] = c
	}
	return out
}

// generator is the solver state of one site.
type generator struct {
	id     string
	weight float64
	target float64
	x, y   float64
	power  float64
}

// Partition splits the territory circle among the request's positive-weight
// sites. A non-positive radius is an INVALID_GEOMETRY error: callers skip
// territories with zero total weight.
func Partition(req Request, opts Options) (Result, error) {
	opts.setDefaults()

	clip, err := geom.RegularPolygon(req.Center, req.Radius, opts.ClipSides)
	if err != nil {
		return Result{}, errs.Wrap(errs.ErrCodeInvalidGeometry, err, "partition territory %s", req.TerritoryID)
	}
	res := Result{Clip: clip}

	sites := make([]Site, 0, len(req.Sites))
	for _, s := range req.Sites {
		if s.Weight > 0 && !math.IsInf(s.Weight, 0) {
			sites = append(sites, s)
		}
	}
	if len(sites) == 0 {
		res.Converged = true
		return res, nil
	}
	slices.SortFunc(sites, func(a, b Site) int { return cmp.Compare(a.MemberID, b.MemberID) })

	s := newSolver(clip, sites, opts)
	cells := s.run()

	res.Iterations = s.iterations
	res.Converged = s.converged
	res.AreaError = s.areaError
	res.Cells = make([]Cell, len(s.gens))
	for i, g := range s.gens {
		res.Cells[i] = Cell{
			MemberID:    g.id,
			TerritoryID: req.TerritoryID,
			Polygon:     cells[i],
			Site:        geom.Point{g.x, g.y},
			Weight:      g.weight,
			Area:        geom.Area(cells[i]),
		}
	}
	return res, nil
}

type solver struct {
	clip     geom.Ring
	clipArea float64
	gens     []*generator
	opts     Options

	iterations int
	converged  bool
	areaError  float64
	history    []float64
}

func newSolver(clip geom.Ring, sites []Site, opts Options) *solver {
	s := &solver{
		clip:     clip,
		clipArea: geom.Area(clip),
		opts:     opts,
	}

	total, maxW := 0.0, 0.0
	for _, site := range sites {
		maxW = math.Max(maxW, site.Weight)
	}
	// Very light sites get a floor so their cells stay visible.
	floor := maxW * opts.MinWeightRatio
	adjusted := make([]float64, len(sites))
	for i, site := range sites {
		adjusted[i] = math.Max(site.Weight, floor)
		total += adjusted[i]
	}

	rng := rand.New(rand.NewPCG(opts.Seed, opts.Seed^0xdeadbeef))
	initial := s.clipArea / float64(len(sites)) / 2
	bound := clip.Bound()
	taken := make(map[geom.Point]bool, len(sites))

	for i, site := range sites {
		g := &generator{
			id:     site.MemberID,
			weight: site.Weight,
			target: s.clipArea * adjusted[i] / total,
			power:  initial,
		}
		var p geom.Point
		if site.Prior != nil && geom.Contains(clip, *site.Prior) && !taken[*site.Prior] {
			p = *site.Prior
		} else {
			for {
				p = geom.Point{
					bound.Min[0] + rng.Float64()*(bound.Max[0]-bound.Min[0]),
					bound.Min[1] + rng.Float64()*(bound.Max[1]-bound.Min[1]),
				}
				if geom.Contains(clip, p) && !taken[p] {
					break
				}
			}
		}
		taken[p] = true
		g.x, g.y = p[0], p[1]
		s.gens = append(s.gens, g)
	}
	return s
}

// run iterates until convergence or the iteration cap and returns the final
// cells, one per generator.
func (s *solver) run() []geom.Ring {
	flicker := 0.0
	var cells []geom.Ring
	for {
		cells = s.diagram()
		s.adaptPositions(cells, flicker)
		cells = s.diagram()
		s.adaptWeights(cells, flicker)
		cells = s.diagram()

		s.iterations++
		s.areaError = s.computeAreaError(cells)
		flicker = s.flickerRatio(s.areaError)
		s.converged = s.areaError < s.opts.ConvergenceRatio*s.clipArea
		if s.converged || s.iterations >= s.opts.MaxIterations {
			break
		}
	}

	if slices.ContainsFunc(cells, func(c geom.Ring) bool { return len(c) == 0 }) {
		// A collapsed cell would drop a member; fall back to the unweighted
		// diagram, where every site owns a region around itself.
		for _, g := range s.gens {
			g.power = 0
		}
		cells = s.diagram()
		s.converged = false
		s.areaError = s.computeAreaError(cells)
	}
	return cells
}

// diagram returns the power cell of every generator clipped to the boundary.
func (s *solver) diagram() []geom.Ring {
	cells := make([]geom.Ring, len(s.gens))
	for i, gi := range s.gens {
		cell := s.clip
		pi2 := gi.x*gi.x + gi.y*gi.y
		for j, gj := range s.gens {
			if i == j {
				continue
			}
			// |x-pi|^2 - wi <= |x-pj|^2 - wj
			a := 2 * (gj.x - gi.x)
			b := 2 * (gj.y - gi.y)
			c := gj.x*gj.x + gj.y*gj.y - pi2 - gj.power + gi.power
			if a == 0 && b == 0 {
				if c < 0 {
					cell = nil
				}
				continue
			}
			cell = geom.ClipHalfPlane(cell, a, b, c)
			if cell == nil {
				break
			}
		}
		cells[i] = cell
	}
	return cells
}

func (s *solver) adaptPositions(cells []geom.Ring, flicker float64) {
	damp := 1 - flickerInfluence*flicker
	for i, g := range s.gens {
		if len(cells[i]) == 0 {
			continue
		}
		c := geom.Centroid(cells[i])
		g.x += (c[0] - g.x) * damp
		g.y += (c[1] - g.y) * damp
	}
	s.handleOverweighted()
}

func (s *solver) adaptWeights(cells []geom.Ring, flicker float64) {
	// Allowed change narrows from [0.5, 1.5] to none as oscillation grows.
	lo := 1 - flickerInfluence + flickerInfluence*flicker
	hi := 1 + flickerInfluence - flickerInfluence*flicker
	for i, g := range s.gens {
		area := geom.Area(cells[i])
		ratio := hi
		if area > 0 {
			ratio = math.Min(math.Max(g.target/area, lo), hi)
		}
		g.power = math.Max(g.power*ratio, epsilon)
	}
	s.handleOverweighted()
}

// handleOverweighted lowers any power weight large enough to swallow a
// neighbour's site entirely.
func (s *solver) handleOverweighted() {
	limit := len(s.gens) * len(s.gens) * 4
	for fixes := 0; fixes < limit; fixes++ {
		fixed := false
		for i, a := range s.gens {
			for _, b := range s.gens[i+1:] {
				heavy, light := a, b
				if b.power > a.power {
					heavy, light = b, a
				}
				dx, dy := a.x-b.x, a.y-b.y
				d2 := dx*dx + dy*dy
				if d2 < heavy.power-light.power {
					heavy.power -= heavy.power - light.power - d2 + epsilon
					fixed = true
					break
				}
			}
			if fixed {
				break
			}
		}
		if !fixed {
			return
		}
	}
}

func (s *solver) computeAreaError(cells []geom.Ring) float64 {
	sum := 0.0
	for i, g := range s.gens {
		sum += math.Abs(geom.Area(cells[i]) - g.target)
	}
	return sum
}

// flickerRatio records err and returns the share of recent iterations in
// which the error went up.
func (s *solver) flickerRatio(err float64) float64 {
	s.history = append([]float64{err}, s.history...)
	if len(s.history) > historyLength {
		s.history = s.history[:historyLength]
	}
	ups := 0
	for i := 0; i < len(s.history)-1; i++ {
		if s.history[i] > s.history[i+1] {
			ups++
		}
	}
	return float64(ups) / float64(len(s.history))
}
