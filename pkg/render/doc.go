// Package render turns frames into files.
//
// The [sink] subpackage is the only place geometry becomes markup: it
// writes SVG documents and JSON frame documents, and computes enter/update/
// exit diffs for clients that keep their own scene graph. This package
// converts SVG to PNG or PDF through the external rsvg-convert tool:
//
//	svg := sink.RenderSVG(frame, sink.WithSize(960, 600))
//	png, err := render.ToPNG(ctx, svg, 2.0)
//
// The [nodelink] subpackage draws the movement network of one step with
// Graphviz.
//
// [sink]: github.com/matzehuels/rostermap/pkg/render/sink
// [nodelink]: github.com/matzehuels/rostermap/pkg/render/nodelink
package render
