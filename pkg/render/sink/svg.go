package sink

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/matzehuels/rostermap/pkg/geom"
	"github.com/matzehuels/rostermap/pkg/transition"
)

const fontFamily = `-apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif`

const cellInteractionCSS = `
    .cell { transition: stroke-width 0.2s ease, opacity 0.2s ease; }
    .cell.highlight { stroke-width: 3; }
    .cell.faded { opacity: 0.35; }
    .territory-label { pointer-events: none; }`

const cellInteractionJS = `
    function highlight(team) {
      document.querySelectorAll('.cell').forEach(c => {
        c.classList.toggle('highlight', c.dataset.territory === team);
        c.classList.toggle('faded', c.dataset.territory !== team);
      });
    }
    function clearHighlight() {
      document.querySelectorAll('.cell').forEach(c => c.classList.remove('highlight', 'faded'));
    }
    document.querySelectorAll('.cell').forEach(el => {
      el.addEventListener('mouseenter', () => highlight(el.dataset.territory));
      el.addEventListener('mouseleave', clearHighlight);
    });`

// Outline is a territory circle drawn under the cells.
type Outline struct {
	ID     string
	Label  string
	Center geom.Point
	Radius float64
	Stroke string
}

// MapStyle colors the background map.
type MapStyle struct {
	Fill    string
	Stroke  string
	Opacity float64
}

// DefaultMapStyle is a light grey outline map.
var DefaultMapStyle = MapStyle{Fill: "#eeeeee", Stroke: "#ffffff", Opacity: 1}

// SVGOption configures [RenderSVG].
type SVGOption func(*svgRenderer)

type svgRenderer struct {
	width, height float64
	background    *geojson.FeatureCollection
	mapStyle      MapStyle
	outlines      []Outline
	title         string
	subtitle      string
	interactive   bool
	tooltips      map[string]string
}

// WithSize sets the canvas size. Without it the size is derived from the
// frame's bounds.
func WithSize(w, h float64) SVGOption {
	return func(r *svgRenderer) { r.width, r.height = w, h }
}

// WithBackground draws fc, already in screen space, under everything else.
func WithBackground(fc *geojson.FeatureCollection) SVGOption {
	return func(r *svgRenderer) { r.background = fc }
}

// WithMapStyle overrides the background colors.
func WithMapStyle(s MapStyle) SVGOption { return func(r *svgRenderer) { r.mapStyle = s } }

// WithTerritories draws territory circles and labels.
func WithTerritories(outlines ...Outline) SVGOption {
	return func(r *svgRenderer) { r.outlines = outlines }
}

// WithTitle adds a heading and an optional second line.
func WithTitle(title, subtitle string) SVGOption {
	return func(r *svgRenderer) { r.title, r.subtitle = title, subtitle }
}

// WithInteraction embeds hover highlighting of whole territories.
func WithInteraction() SVGOption { return func(r *svgRenderer) { r.interactive = true } }

// WithTooltips attaches a <title> to each member's cell.
func WithTooltips(byMember map[string]string) SVGOption {
	return func(r *svgRenderer) { r.tooltips = byMember }
}

// RenderSVG draws a frame as a standalone SVG document. Drawables are
// emitted in frame order, which is already back to front.
func RenderSVG(f transition.Frame, opts ...SVGOption) []byte {
	r := svgRenderer{mapStyle: DefaultMapStyle}
	for _, opt := range opts {
		opt(&r)
	}
	if r.width <= 0 || r.height <= 0 {
		r.width, r.height = frameSize(f)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.1f %.1f" width="%.0f" height="%.0f">`+"\n",
		r.width, r.height, r.width, r.height)

	if r.background != nil {
		r.renderBackground(&buf)
	}
	r.renderOutlines(&buf)

	buf.WriteString(`  <g class="cells">` + "\n")
	for _, d := range f.Drawables {
		r.renderDrawable(&buf, d)
	}
	buf.WriteString("  </g>\n")

	r.renderLabels(&buf)
	r.renderTitle(&buf)
	if r.interactive {
		fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", cellInteractionCSS)
		fmt.Fprintf(&buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", cellInteractionJS)
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func (r *svgRenderer) renderBackground(buf *bytes.Buffer) {
	fmt.Fprintf(buf, `  <g class="map" fill="%s" stroke="%s" stroke-width="0.5" opacity="%.2f">`+"\n",
		escapeXML(r.mapStyle.Fill), escapeXML(r.mapStyle.Stroke), r.mapStyle.Opacity)
	for _, f := range r.background.Features {
		d := geometryPath(f.Geometry)
		if d == "" {
			continue
		}
		fmt.Fprintf(buf, `    <path d="%s"/>`+"\n", d)
	}
	buf.WriteString("  </g>\n")
}

func (r *svgRenderer) renderOutlines(buf *bytes.Buffer) {
	if len(r.outlines) == 0 {
		return
	}
	buf.WriteString(`  <g class="territories" fill="none" stroke-dasharray="3 3">` + "\n")
	for _, o := range r.outlines {
		if o.Radius <= 0 {
			continue
		}
		fmt.Fprintf(buf, `    <circle id="territory-%s" cx="%.2f" cy="%.2f" r="%.2f" stroke="%s"/>`+"\n",
			escapeXML(o.ID), o.Center[0], o.Center[1], o.Radius, escapeXML(o.Stroke))
	}
	buf.WriteString("  </g>\n")
}

func (r *svgRenderer) renderLabels(buf *bytes.Buffer) {
	if len(r.outlines) == 0 {
		return
	}
	fmt.Fprintf(buf, `  <g class="territory-labels" font-family='%s' font-size="11" text-anchor="middle">`+"\n", fontFamily)
	for _, o := range r.outlines {
		label := o.Label
		if label == "" {
			label = o.ID
		}
		y := o.Center[1] + o.Radius + 12
		if o.Radius <= 0 {
			y = o.Center[1]
		}
		fmt.Fprintf(buf, `    <text class="territory-label" x="%.2f" y="%.2f">%s</text>`+"\n",
			o.Center[0], y, escapeXML(label))
	}
	buf.WriteString("  </g>\n")
}

func (r *svgRenderer) renderTitle(buf *bytes.Buffer) {
	if r.title == "" {
		return
	}
	fmt.Fprintf(buf, `  <text x="12" y="22" font-family='%s' font-size="16" font-weight="bold">%s</text>`+"\n",
		fontFamily, escapeXML(r.title))
	if r.subtitle != "" {
		fmt.Fprintf(buf, `  <text x="12" y="40" font-family='%s' font-size="12" fill="#555555">%s</text>`+"\n",
			fontFamily, escapeXML(r.subtitle))
	}
}

func (r *svgRenderer) renderDrawable(buf *bytes.Buffer, d transition.Drawable) {
	path := ringPath(d.Polygon)
	if path == "" || d.Opacity <= 0 {
		return
	}
	fmt.Fprintf(buf, `    <path id="member-%s" class="cell role-%s" data-territory="%s" d="%s" fill="%s" stroke="%s" stroke-width="1"`,
		escapeXML(d.MemberID), d.Role, escapeXML(d.TerritoryID), path, escapeXML(d.Fill), escapeXML(d.Stroke))
	if d.Opacity < 1 {
		fmt.Fprintf(buf, ` opacity="%.3f"`, d.Opacity)
	}
	tip, ok := r.tooltips[d.MemberID]
	if !ok {
		buf.WriteString("/>\n")
		return
	}
	fmt.Fprintf(buf, "><title>%s</title></path>\n", escapeXML(tip))
}

// ringPath turns a ring into SVG path data. This is the only place shapes
// become strings.
func ringPath(r geom.Ring) string {
	if len(r) < geom.MinSides {
		return ""
	}
	var sb strings.Builder
	for i, p := range r {
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString("L")
		}
		fmt.Fprintf(&sb, "%.2f,%.2f", p[0], p[1])
	}
	sb.WriteString("Z")
	return sb.String()
}

func lineStringPath(ls orb.LineString) string {
	if len(ls) < 2 {
		return ""
	}
	var sb strings.Builder
	for i, p := range ls {
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString("L")
		}
		fmt.Fprintf(&sb, "%.2f,%.2f", p[0], p[1])
	}
	return sb.String()
}

func geometryPath(g orb.Geometry) string {
	switch g := g.(type) {
	case orb.Ring:
		// GeoJSON rings repeat the first vertex.
		if g.Closed() {
			g = g[:len(g)-1]
		}
		return ringPath(g)
	case orb.Polygon:
		var parts []string
		for _, ring := range g {
			if d := geometryPath(ring); d != "" {
				parts = append(parts, d)
			}
		}
		return strings.Join(parts, " ")
	case orb.MultiPolygon:
		var parts []string
		for _, p := range g {
			if d := geometryPath(p); d != "" {
				parts = append(parts, d)
			}
		}
		return strings.Join(parts, " ")
	case orb.LineString:
		return lineStringPath(g)
	case orb.MultiLineString:
		var parts []string
		for _, ls := range g {
			if d := lineStringPath(ls); d != "" {
				parts = append(parts, d)
			}
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

// frameSize is the bottom-right corner of all drawables plus a margin.
func frameSize(f transition.Frame) (w, h float64) {
	var b orb.Bound
	first := true
	for _, d := range f.Drawables {
		if len(d.Polygon) == 0 {
			continue
		}
		if first {
			b, first = d.Polygon.Bound(), false
			continue
		}
		b = b.Union(d.Polygon.Bound())
	}
	if first {
		return 100, 100
	}
	return b.Max[0] + 20, b.Max[1] + 20
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
