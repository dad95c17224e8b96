package transition

import (
	"maps"
	"slices"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matzehuels/rostermap/pkg/geom"
)

// Defaults for plan construction.
const (
	DefaultExitAt       = 0.1
	DefaultSettleAt     = 0.9
	DefaultBuffer       = 0.1
	DefaultDimOpacity   = 0.3
	DefaultSamples      = 64
	DefaultVanishRadius = 0.5
)

// Options tunes a plan. Zero fields take defaults.
type Options struct {
	ExitAt       float64
	SettleAt     float64
	Buffer       float64
	DimOpacity   float64
	Samples      int
	VanishRadius float64

	// NoBuffer disables the settle buffer.
	NoBuffer bool
}

func (o *Options) setDefaults() {
	if o.ExitAt <= 0 || o.ExitAt >= 1 {
		o.ExitAt = DefaultExitAt
	}
	if o.SettleAt <= o.ExitAt || o.SettleAt >= 1 {
		o.SettleAt = max(DefaultSettleAt, o.ExitAt+(1-o.ExitAt)/2)
	}
	if o.Buffer <= 0 {
		o.Buffer = DefaultBuffer
	}
	if o.NoBuffer {
		o.Buffer = 0
	}
	if o.DimOpacity <= 0 || o.DimOpacity > 1 {
		o.DimOpacity = DefaultDimOpacity
	}
	if o.Samples < geom.MinSides {
		o.Samples = DefaultSamples
	}
	if o.VanishRadius <= 0 {
		o.VanishRadius = DefaultVanishRadius
	}
}

// Track is everything captured for one member.
type Track struct {
	MemberID string
	Role     Role

	From, To         string // territories; empty when absent on that side
	Start, End       geom.Ring
	StartTok, EndTok geom.Ring // tokens at the old and new centroid

	startCenter, endCenter geom.Point
	startRadius, endRadius float64

	// Interpolation pairs in vertex correspondence.
	exitFrom, exitTo     geom.Ring
	settleFrom, settleTo geom.Ring

	fillFrom, fillTo     colorful.Color
	strokeFrom, strokeTo colorful.Color
	fill, stroke         [2]string
	blend                bool
}

// Plan is the captured transition of one step.
type Plan struct {
	opts     Options
	tracks   []*Track
	affected []string
	start    Frame
	end      Frame
}

// Build captures the transition from before to after. affected lists the
// territories the step touches; members of other territories stay static.
func Build(before, after Snapshot, affected []string, opts Options) *Plan {
	opts.setDefaults()
	inAffected := make(map[string]bool, len(affected))
	for _, t := range affected {
		inAffected[t] = true
	}

	ids := make(map[string]bool, len(before)+len(after))
	for id := range before {
		ids[id] = true
	}
	for id := range after {
		ids[id] = true
	}

	p := &Plan{opts: opts, affected: slices.Sorted(maps.Keys(inAffected))}
	for _, id := range slices.Sorted(maps.Keys(ids)) {
		b, hasB := before[id]
		a, hasA := after[id]
		p.tracks = append(p.tracks, newTrack(id, b, hasB, a, hasA, inAffected, opts))
	}
	p.start = p.capture(0)
	p.end = p.capture(1)
	return p
}

func newTrack(id string, b Shape, hasB bool, a Shape, hasA bool, affected map[string]bool, opts Options) *Track {
	tr := &Track{MemberID: id}
	switch {
	case hasB && hasA && b.TerritoryID != a.TerritoryID:
		tr.Role = RoleMoving
	case hasB && hasA:
		tr.Role = RoleReshuffle
		if !affected[b.TerritoryID] && slices.Equal(b.Polygon, a.Polygon) {
			tr.Role = RoleStatic
		}
	case hasB:
		tr.Role = RoleExiting
	default:
		tr.Role = RoleEntering
	}

	n := opts.Samples
	if hasB {
		tr.From = b.TerritoryID
		tr.Start = append(geom.Ring(nil), b.Polygon...)
		tr.startCenter = geom.Centroid(b.Polygon)
		tr.startRadius = b.TokenRadius
		tr.StartTok = geom.Token(tr.startCenter, b.TokenRadius, n)
		n = max(n, len(b.Polygon))
	}
	if hasA {
		tr.To = a.TerritoryID
		tr.End = append(geom.Ring(nil), a.Polygon...)
		tr.endCenter = geom.Centroid(a.Polygon)
		tr.endRadius = a.TokenRadius
		tr.EndTok = geom.Token(tr.endCenter, a.TokenRadius, n)
	}

	switch tr.Role {
	case RoleReshuffle:
		tr.settleFrom, tr.settleTo = geom.Correspond(tr.Start, tr.End, n)
	case RoleMoving:
		tr.exitFrom, tr.exitTo = geom.Correspond(tr.Start, tr.StartTok, n)
		tr.settleFrom, tr.settleTo = geom.Correspond(tr.EndTok, tr.End, n)
	case RoleExiting:
		tr.exitFrom, tr.exitTo = geom.Correspond(tr.Start, tr.StartTok, n)
	case RoleEntering:
		tr.settleFrom, tr.settleTo = geom.Correspond(tr.EndTok, tr.End, n)
	}

	from, to := b, a
	if !hasB {
		from = a
	}
	if !hasA {
		to = b
	}
	tr.fill = [2]string{from.Fill, to.Fill}
	tr.stroke = [2]string{from.Stroke, to.Stroke}
	var err1, err2, err3, err4 error
	tr.fillFrom, err1 = colorful.Hex(from.Fill)
	tr.fillTo, err2 = colorful.Hex(to.Fill)
	tr.strokeFrom, err3 = colorful.Hex(from.Stroke)
	tr.strokeTo, err4 = colorful.Hex(to.Stroke)
	tr.blend = err1 == nil && err2 == nil && err3 == nil && err4 == nil &&
		(from.Fill != to.Fill || from.Stroke != to.Stroke)
	return tr
}

// Affected returns the territories the plan animates.
func (p *Plan) Affected() []string { return slices.Clone(p.affected) }

// Track returns the captured track of member id.
func (p *Plan) Track(id string) (Track, bool) {
	for _, tr := range p.tracks {
		if tr.MemberID == id {
			return *tr, true
		}
	}
	return Track{}, false
}

// Roles returns every member's role.
func (p *Plan) Roles() map[string]Role {
	out := make(map[string]Role, len(p.tracks))
	for _, tr := range p.tracks {
		out[tr.MemberID] = tr.Role
	}
	return out
}

// Start returns the frame shown before any progress in direction dir.
func (p *Plan) Start(dir Direction) Frame {
	if dir == Up {
		return cloneFrame(p.end)
	}
	return cloneFrame(p.start)
}

// End returns the frame shown once progress completes in direction dir.
func (p *Plan) End(dir Direction) Frame {
	if dir == Up {
		return cloneFrame(p.start)
	}
	return cloneFrame(p.end)
}

// Progress maps scroll progress t in direction dir onto the plan's
// before → after axis, applying clamping and the settle buffer.
func (p *Plan) Progress(t float64, dir Direction) float64 {
	t = geom.Clamp01(t)
	if dir == Up {
		t = 1 - t
	}
	b := p.opts.Buffer
	return geom.Clamp01(t*(1+b) - b/2)
}

// Evaluate returns the frame at scroll progress t in direction dir.
func (p *Plan) Evaluate(t float64, dir Direction) Frame {
	pos := p.Progress(t, dir)
	switch pos {
	case 0:
		return cloneFrame(p.start)
	case 1:
		return cloneFrame(p.end)
	}
	return p.capture(pos)
}

func cloneFrame(f Frame) Frame {
	ds := make([]Drawable, len(f.Drawables))
	for i, d := range f.Drawables {
		d.Polygon = append(geom.Ring(nil), d.Polygon...)
		ds[i] = d
	}
	return Frame{Drawables: ds}
}
