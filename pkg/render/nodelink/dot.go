package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/render"
)

// Options configures movement network rendering.
type Options struct {
	// Detailed adds metric changes to the edge labels.
	Detailed bool

	// Metric limits detailed labels to one metric. Empty shows all.
	Metric string
}

// ToDOT converts the moves of a step to Graphviz DOT. Territories are nodes
// filled with their colors, and every move is an edge labeled with the
// member's name. Reserved pools are drawn dashed.
func ToDOT(step dataset.Step, ds *dataset.Dataset, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=circle, style=filled, fontsize=18, fixedsize=false];\n")
	buf.WriteString("  edge [fontsize=12];\n")
	buf.WriteString("\n")

	for _, id := range involved(step) {
		fmt.Fprintf(&buf, "  %q [%s];\n", id, strings.Join(nodeAttrs(ds, id), ", "))
	}

	buf.WriteString("\n")
	for _, mv := range step.Moves() {
		label := memberName(ds, mv.MemberID)
		if opts.Detailed {
			label += fmtChanges(mv.Metrics, opts.Metric)
		}
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", mv.From, mv.To, label)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// involved lists every territory a step touches, sorted.
func involved(step dataset.Step) []string {
	ids := step.Affected()
	for _, mv := range step.Moves() {
		ids = append(ids, mv.From, mv.To)
	}
	slices.Sort(ids)
	return slices.DeleteFunc(slices.Compact(ids), func(s string) bool { return s == "" })
}

func nodeAttrs(ds *dataset.Dataset, id string) []string {
	label, fill, stroke := id, "#ffffff", "#000000"
	if ds != nil {
		if t, ok := ds.Territory(id); ok {
			label, fill, stroke = t.Name, t.Fill, t.Stroke
		}
	}
	attrs := []string{
		fmt.Sprintf("label=%q", label),
		fmt.Sprintf("fillcolor=%q", fill),
		fmt.Sprintf("color=%q", stroke),
		fmt.Sprintf("fontcolor=%q", fontColor(fill)),
	}
	if ds != nil && ds.IsReserved(id) {
		attrs = append(attrs, "style=\"filled,dashed\"", "fillcolor=white", "fontcolor=black")
	}
	return attrs
}

func memberName(ds *dataset.Dataset, id string) string {
	if ds == nil {
		return id
	}
	for _, m := range ds.Members {
		if m.ID == id && m.Name != "" {
			return m.Name
		}
	}
	return id
}

func fmtChanges(changes []dataset.MetricChange, only string) string {
	var parts []string
	for _, c := range changes {
		if only != "" && c.Name != only {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s → %s", c.Name, fmtValue(c.From), fmtValue(c.To)))
	}
	if len(parts) == 0 {
		return ""
	}
	return "\n" + strings.Join(parts, "\n")
}

func fmtValue(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

// fontColor picks black or white text for a "#rrggbb" fill.
func fontColor(fill string) string {
	if len(fill) != 7 || fill[0] != '#' {
		return "black"
	}
	rgb, err := strconv.ParseUint(fill[1:], 16, 32)
	if err != nil {
		return "black"
	}
	r, g, b := float64(rgb>>16&0xff), float64(rgb>>8&0xff), float64(rgb&0xff)
	if 0.299*r+0.587*g+0.114*b < 140 {
		return "white"
	}
	return "black"
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	tag := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(tag))
}

// Render renders a DOT graph in any supported format. PNG and PDF go
// through rsvg-convert.
func Render(ctx context.Context, dot string, f render.Format, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	if f == render.FormatSVG {
		return svg, nil
	}
	return render.Convert(ctx, svg, f, scale)
}
