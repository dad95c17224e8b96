package transition

import (
	"github.com/matzehuels/rostermap/pkg/geom"
)

// local rescales p from [a, b] onto [0, 1].
func local(p, a, b float64) float64 {
	if b <= a {
		if p >= b {
			return 1
		}
		return 0
	}
	return geom.Clamp01((p - a) / (b - a))
}

// travelling reports whether any member leaves, enters or changes
// territory. Without travellers nobody dims.
func (p *Plan) travelling() bool {
	for _, tr := range p.tracks {
		if tr.Role >= RoleEntering {
			return true
		}
	}
	return false
}

// capture builds the frame at plan position pos in [0, 1].
func (p *Plan) capture(pos float64) Frame {
	dim := p.travelling()
	ds := make([]Drawable, 0, len(p.tracks))
	for _, tr := range p.tracks {
		if d, ok := p.drawable(tr, pos, dim); ok {
			ds = append(ds, d)
		}
	}
	SortDrawables(ds)
	return Frame{Drawables: ds}
}

func (p *Plan) drawable(tr *Track, pos float64, dim bool) (Drawable, bool) {
	o := p.opts
	exit := local(pos, 0, o.ExitAt)
	travel := local(pos, o.ExitAt, o.SettleAt)
	settle := local(pos, o.SettleAt, 1)

	d := Drawable{
		MemberID:    tr.MemberID,
		TerritoryID: tr.From,
		Opacity:     1,
		Role:        tr.Role,
		Z:           tr.Role.Z(),
	}
	d.Fill, d.Stroke = tr.colors(pos)

	switch tr.Role {
	case RoleStatic, RoleReshuffle:
		switch {
		case pos == 0:
			d.Polygon = clone(tr.Start)
		case pos == 1:
			d.Polygon = clone(tr.End)
		case tr.Role == RoleStatic || pos < o.SettleAt:
			d.Polygon = clone(tr.Start)
		default:
			d.Polygon = geom.Lerp(tr.settleFrom, tr.settleTo, settle)
		}
		if dim {
			d.Opacity = dimmed(pos, exit, settle, o)
		}

	case RoleMoving:
		switch {
		case pos == 0:
			d.Polygon = clone(tr.Start)
		case pos == 1:
			d.Polygon = clone(tr.End)
		case pos < o.ExitAt:
			d.Polygon = geom.Lerp(tr.exitFrom, tr.exitTo, exit)
		case pos < o.SettleAt:
			c := geom.LerpPoint(tr.startCenter, tr.endCenter, travel)
			r := geom.LerpFloat(tr.startRadius, tr.endRadius, travel)
			d.Polygon = geom.Token(c, r, len(tr.settleFrom))
		default:
			d.Polygon = geom.Lerp(tr.settleFrom, tr.settleTo, settle)
		}
		if pos >= o.ExitAt && (pos >= o.SettleAt || travel >= 0.5) {
			d.TerritoryID = tr.To
		}

	case RoleEntering:
		d.TerritoryID = tr.To
		switch {
		case pos < o.ExitAt:
			return Drawable{}, false
		case pos == 1:
			d.Polygon = clone(tr.End)
		case pos < o.SettleAt:
			r := geom.LerpFloat(o.VanishRadius, tr.endRadius, travel)
			d.Polygon = geom.Token(tr.endCenter, r, len(tr.settleFrom))
			d.Opacity = travel
		default:
			d.Polygon = geom.Lerp(tr.settleFrom, tr.settleTo, settle)
		}

	case RoleExiting:
		switch {
		case pos >= o.SettleAt:
			return Drawable{}, false
		case pos == 0:
			d.Polygon = clone(tr.Start)
		case pos < o.ExitAt:
			d.Polygon = geom.Lerp(tr.exitFrom, tr.exitTo, exit)
		default:
			r := geom.LerpFloat(tr.startRadius, o.VanishRadius, travel)
			d.Polygon = geom.Token(tr.startCenter, r, len(tr.exitTo))
			d.Opacity = 1 - travel
		}
	}
	return d, true
}

// dimmed is the opacity of a member that stays put while others travel:
// fade to DimOpacity during exit, hold, and recover during settle.
func dimmed(pos, exit, settle float64, o Options) float64 {
	switch {
	case pos == 0 || pos == 1:
		return 1
	case pos < o.ExitAt:
		return geom.LerpFloat(1, o.DimOpacity, exit)
	case pos < o.SettleAt:
		return o.DimOpacity
	default:
		return geom.LerpFloat(o.DimOpacity, 1, settle)
	}
}

func (tr *Track) colors(pos float64) (fill, stroke string) {
	switch {
	case pos == 0:
		return tr.fill[0], tr.stroke[0]
	case pos == 1 || !tr.blend:
		return tr.fill[1], tr.stroke[1]
	}
	return tr.fillFrom.BlendRgb(tr.fillTo, pos).Hex(), tr.strokeFrom.BlendRgb(tr.strokeTo, pos).Hex()
}

func clone(r geom.Ring) geom.Ring { return append(geom.Ring(nil), r...) }
