// Package sink writes frames as SVG or JSON.
//
// [RenderSVG] takes functional options in the same way for every output:
// the canvas size, a projected background map, territory outlines, a title,
// tooltips and hover interaction. Polygons are turned into path data here
// and nowhere else.
//
// [Diff] and [Apply] let a stateful client (the websocket stream, for
// example) receive only what changed between two frames.
package sink
