// Package packing places territory circles near their geographic anchors
// without overlap.
//
// # Algorithm
//
// [Layout] runs a damped velocity-Verlet simulation for a fixed number of
// ticks. Each tick applies three forces:
//
//   - Anchor pull: a spring toward the node's anchor on each axis,
//     strength 1, scaled by the cooling factor alpha
//   - Repulsion: all-pairs n-body repulsion, scaled by alpha
//   - Collision: pairwise separation of circles of radius
//     max(r, MinRadius) + Margin, split by relative size
//
// Alpha decays geometrically from 1 so the system settles; there is no
// convergence test. Territory counts are small (dozens), so repulsion is
// computed directly rather than through a quadtree.
//
// # Determinism
//
// Coincident nodes are separated by a tiny jiggle drawn from a PCG source
// seeded by [Options.Seed]. Nodes are simulated in id order, so the same
// input always yields the same centers.
//
// # Pinning
//
// A pinned node keeps its [Node.Center] and still pushes others away. It
// takes no part in the anchor and repulsion forces, and collisions with it
// resolve entirely on the free side.
package packing
