package dataset

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/matzehuels/rostermap/pkg/geom"
)

// Projection maps longitude/latitude into screen space: Web Mercator
// followed by a uniform scale and translation, with y pointing down.
type Projection struct {
	Scale      float64
	OffsetX    float64
	OffsetY    float64
	mercBounds orb.Bound
}

// Extent is the screen rectangle a projection is fitted into.
type Extent struct {
	Min, Max geom.Point
}

// DefaultExtent leaves room for a title at the top and a legend at the
// bottom right.
func DefaultExtent(width, height float64) Extent {
	return Extent{Min: geom.Point{0, 30}, Max: geom.Point{width - 60, height - 60}}
}

// FitMercator returns the projection that fits the geographic bound b
// (in lon/lat) into e, preserving aspect ratio and centering the result.
func FitMercator(b orb.Bound, e Extent) Projection {
	mb := orb.Bound{
		Min: project.WGS84.ToMercator(b.Min),
		Max: project.WGS84.ToMercator(b.Max),
	}
	w, h := mb.Max[0]-mb.Min[0], mb.Max[1]-mb.Min[1]
	ew, eh := e.Max[0]-e.Min[0], e.Max[1]-e.Min[1]

	scale := 1.0
	switch {
	case w > 0 && h > 0:
		scale = math.Min(ew/w, eh/h)
	case w > 0:
		scale = ew / w
	case h > 0:
		scale = eh / h
	}

	// Center the projected bound inside the extent.
	p := Projection{Scale: scale, mercBounds: mb}
	p.OffsetX = e.Min[0] + (ew-w*scale)/2 - mb.Min[0]*scale
	p.OffsetY = e.Min[1] + (eh-h*scale)/2 + mb.Max[1]*scale
	return p
}

// Project maps one lon/lat point into screen space.
func (p Projection) Project(lonlat orb.Point) geom.Point {
	m := project.WGS84.ToMercator(lonlat)
	return geom.Point{m[0]*p.Scale + p.OffsetX, p.OffsetY - m[1]*p.Scale}
}

// Geometry returns a projected copy of g.
func (p Projection) Geometry(g orb.Geometry) orb.Geometry {
	return project.Geometry(orb.Clone(g), p.Project)
}

// Collection returns a projected copy of fc.
func (p Projection) Collection(fc *geojson.FeatureCollection) *geojson.FeatureCollection {
	if fc == nil {
		return nil
	}
	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		pf := geojson.NewFeature(p.Geometry(f.Geometry))
		pf.ID = f.ID
		pf.Properties = f.Properties.Clone()
		out.Append(pf)
	}
	return out
}

// Bounds returns the geographic bound of the territories' coordinates
// extended by the background's features.
func Bounds(territories []Territory, reserved []string, bg *geojson.FeatureCollection) orb.Bound {
	var b orb.Bound
	first := true
	extend := func(o orb.Bound) {
		if first {
			b, first = o, false
			return
		}
		b = b.Union(o)
	}
	for _, t := range territories {
		if isReserved(reserved, t.ID) {
			continue
		}
		extend(orb.Point{t.Lon, t.Lat}.Bound())
	}
	if bg != nil {
		for _, f := range bg.Features {
			if f.Geometry != nil {
				extend(f.Geometry.Bound())
			}
		}
	}
	return b
}
