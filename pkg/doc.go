// Package pkg holds the rostermap libraries.
//
// Rostermap draws every team of a league as a circle on a map, split into
// one cell per player sized by a metric, and animates players moving
// between teams as a narrative of transactions is scrolled.
//
// # Layers
//
// Leaf packages first:
//
//   - [geom]: rings, points and polygon math
//   - [weight]: metric to cell weight and territory radius
//   - [packing]: territory circles placed near their anchors without overlap
//   - [voronoi]: weighted partition of a territory into member cells
//   - [transition]: plans and evaluates the three-phase animation of a step
//   - [dataset]: CSV, JSON and GeoJSON loading, projection, hot reload
//   - [scene]: the immutable layout state and its step changes
//   - [render]: SVG, JSON, PNG and PDF frames and the movement network
//   - [pipeline]: options, config files and the cached render runner
//   - [session]: per-viewer scenes for the server
//   - [server]: the HTTP and WebSocket API
//
// Supporting packages: [cache], [errors], [observability], [buildinfo].
//
// # Quick start
//
//	ds, _ := dataset.Load(paths, dataset.LoadOptions{})
//	state, _ := scene.Init(ds, scene.Options{Metric: "salary"})
//	next, plan, _ := state.ApplyStep(scene.Change(ds.Steps[0], transition.Down))
//	frame := plan.Evaluate(0.5, transition.Down)
//	svg := sink.RenderSVG(frame, sink.WithSize(ds.Width, ds.Height))
//	_ = next
package pkg
