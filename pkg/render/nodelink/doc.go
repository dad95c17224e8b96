// Package nodelink draws the movement network of one step: which territory
// sent which member where.
//
// Territories become filled nodes and each move an arrow labeled with the
// member's name:
//
//	dot := nodelink.ToDOT(step, ds, nodelink.Options{Detailed: true})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// The DOT source can also be saved and processed with external Graphviz
// tools. SVG is rendered in-process with [github.com/goccy/go-graphviz];
// PNG and PDF additionally need rsvg-convert, see [render.Convert].
package nodelink
