// Package voronoi partitions a territory's circle into one cell per member
// with cell areas proportional to member weights.
//
// # Algorithm
//
// [Partition] computes a Voronoi treemap (Nocaj and Brandes): a power
// diagram of weighted generator sites clipped to a regular polygon that
// approximates the territory circle. Each cell is the clip polygon cut by one
// half plane per neighbour, so cells are convex and tile the clip exactly.
//
// Every iteration moves each site toward its cell's centroid, then rescales
// each site's power weight by targetArea/currentArea. Both adjustments are
// damped when the area error has been oscillating. The loop stops when the
// summed absolute area error drops below [Options.ConvergenceRatio] of the
// clip area, or after [Options.MaxIterations]; in the latter case the last
// cells are returned with Converged false.
//
// # Continuity and determinism
//
// A site's starting position is its prior position when that lies inside
// the clip, so cells keep their place across updates. Sites without a usable
// prior are placed uniformly at random inside the clip from a PCG source
// seeded with [Options.Seed], drawing in member id order. The same request
// always yields the same cells.
//
// Members with weight 0 receive no cell.
package voronoi
