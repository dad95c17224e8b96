// Package scene owns the layout state of one map.
//
// A [State] is an immutable value: the member roster, the weight model of the
// active metric, every territory's circle and every territory's partition.
// [Init] computes the first state from a dataset. [State.ApplyStep] and
// [State.SetMetric] return a new state together with the [transition.Plan]
// that animates from one to the other; the receiver is never modified, so a
// caller can keep older states around to scrub backwards.
//
// Step changes are incremental. Every circle relaxes from where it was, so
// a growing territory can push its neighbours aside, but only the
// territories a step touches are repartitioned. A neighbour that moves
// keeps its cells, translated with its circle, and is animated with the
// step. Members that stay in a territory seed the partitioner with their
// previous generator position so cells do not jump around.
package scene
