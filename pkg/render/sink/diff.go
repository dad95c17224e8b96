package sink

import (
	"slices"

	"github.com/matzehuels/rostermap/pkg/transition"
)

// OpKind is the kind of change a stateful client applies.
type OpKind string

const (
	OpEnter  OpKind = "enter"
	OpUpdate OpKind = "update"
	OpExit   OpKind = "exit"
)

// Op is one change between two frames. Drawable is nil for exits.
type Op struct {
	Kind     OpKind               `json:"op"`
	MemberID string               `json:"member_id"`
	Drawable *transition.Drawable `json:"drawable,omitempty"`
}

// Diff returns the operations turning prev into next: exits first in member
// order, then enters and updates in next's drawing order. Unchanged
// drawables produce no op.
func Diff(prev, next transition.Frame) []Op {
	old := make(map[string]transition.Drawable, len(prev.Drawables))
	for _, d := range prev.Drawables {
		old[d.MemberID] = d
	}
	cur := make(map[string]bool, len(next.Drawables))
	for _, d := range next.Drawables {
		cur[d.MemberID] = true
	}

	var ops []Op
	for _, id := range prev.IDs() {
		if !cur[id] {
			ops = append(ops, Op{Kind: OpExit, MemberID: id})
		}
	}
	for _, d := range next.Drawables {
		p, ok := old[d.MemberID]
		switch {
		case !ok:
			ops = append(ops, Op{Kind: OpEnter, MemberID: d.MemberID, Drawable: &d})
		case !sameDrawable(p, d):
			ops = append(ops, Op{Kind: OpUpdate, MemberID: d.MemberID, Drawable: &d})
		}
	}
	return ops
}

// Apply replays ops on prev. Apply(prev, Diff(prev, next)) draws the same as
// next.
func Apply(prev transition.Frame, ops []Op) transition.Frame {
	byID := make(map[string]transition.Drawable, len(prev.Drawables))
	order := make([]string, 0, len(prev.Drawables))
	for _, d := range prev.Drawables {
		byID[d.MemberID] = d
		order = append(order, d.MemberID)
	}
	for _, op := range ops {
		switch op.Kind {
		case OpExit:
			delete(byID, op.MemberID)
		case OpEnter, OpUpdate:
			if op.Drawable == nil {
				continue
			}
			if _, ok := byID[op.MemberID]; !ok {
				order = append(order, op.MemberID)
			}
			byID[op.MemberID] = *op.Drawable
		}
	}
	out := transition.Frame{Drawables: make([]transition.Drawable, 0, len(byID))}
	for _, id := range order {
		if d, ok := byID[id]; ok {
			out.Drawables = append(out.Drawables, d)
			delete(byID, id)
		}
	}
	transition.SortDrawables(out.Drawables)
	return out
}

func sameDrawable(a, b transition.Drawable) bool {
	return a.TerritoryID == b.TerritoryID &&
		a.Fill == b.Fill &&
		a.Stroke == b.Stroke &&
		a.Opacity == b.Opacity &&
		a.Z == b.Z &&
		a.Role == b.Role &&
		slices.Equal(a.Polygon, b.Polygon)
}
