// Package geom provides the planar geometry shared by the layout, partition
// and transition packages.
//
// Shapes are [orb.Ring] values kept open: the first vertex is not repeated at
// the end. Area, centroid and containment delegate to [orb/planar]; the
// package adds what orb lacks for animation work:
//
//   - [RegularPolygon] builds clip boundaries and circular tokens
//   - [ClipHalfPlane] cuts a convex ring with a line (power diagram cells)
//   - [Resample] and [Align] put two rings in vertex correspondence
//   - [Lerp] interpolates aligned rings
//
// All functions are pure and return new rings; inputs are never modified.
package geom
