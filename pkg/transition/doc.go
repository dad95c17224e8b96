// Package transition animates members between two partitions of the map.
//
// [Build] compares a before and an after [Snapshot], assigns every member a
// [Role] and captures all shapes the animation needs. [Plan.Evaluate] then
// maps a progress value to a complete [Frame] by interpolation only; no
// layout or partition work happens per frame, and the same arguments always
// produce identical output.
//
// # Phases
//
// Progress is split at ExitAt (0.1) and SettleAt (0.9):
//
//	         exit        travel          settle
//	 0 ───────┬──────────────────────┬────────── 1
//	       ExitAt                 SettleAt
//
//   - Static members never change.
//   - Reshuffle members hold their old cell until SettleAt, then morph into
//     their new cell.
//   - Moving members shrink into a round token at their old centroid, the
//     token travels (a translation, not a morph) to the new centroid while
//     resizing, then grows into the new cell.
//   - Entering members appear as a vanishing token during travel and grow
//     into their cell during settle.
//   - Exiting members shrink into a token, fade out during travel and are
//     gone in the settle phase.
//
// Territory colors blend across the whole progress range. Members that are
// not on the move dim while others travel.
//
// # Direction
//
// Plans are always built before → after. Scrolling up evaluates 1 − t, so
// Evaluate(t, Down) and Evaluate(1−t, Up) describe the same geometry.
// A settle buffer stretches progress so both ends hold still for a moment.
package transition
