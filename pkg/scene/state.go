package scene

import (
	"maps"
	"math"
	"slices"

	"github.com/matzehuels/rostermap/pkg/dataset"
	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/geom"
	"github.com/matzehuels/rostermap/pkg/packing"
	"github.com/matzehuels/rostermap/pkg/transition"
	"github.com/matzehuels/rostermap/pkg/voronoi"
	"github.com/matzehuels/rostermap/pkg/weight"
)

// Options configures every stage of the scene.
type Options struct {
	// Metric is the sizing metric. Empty means weight.DefaultMetric.
	Metric string

	Weight     weight.Options
	Packing    packing.Options
	Voronoi    voronoi.Options
	Transition transition.Options
}

// StepChange is one discrete narrative event applied to a state.
type StepChange struct {
	Index     int
	Direction transition.Direction
	Deltas    []dataset.Move

	// Affected lists extra territories to animate besides the ones the
	// deltas name.
	Affected []string
}

// Change returns the step change that plays step in direction dir.
func Change(step dataset.Step, dir transition.Direction) StepChange {
	return StepChange{
		Index:     step.Index,
		Direction: dir,
		Deltas:    step.Moves(),
		Affected:  step.Affected(),
	}
}

// TerritoryView is the resolved geometry of one territory.
type TerritoryView struct {
	dataset.Territory
	Center  geom.Point
	Radius  float64
	Total   float64
	Members int
}

// State is one immutable layout of the map.
type State struct {
	ds    *dataset.Dataset
	opts  Options
	model *weight.Model

	members []dataset.Member
	byID    map[string]int
	weights map[string]float64
	totals  map[string]float64

	nodes map[string]packing.Node
	cells map[string]voronoi.Result

	// step is the index of the last step applied, -1 before the first.
	step int
}

// Init lays out ds from scratch.
func Init(ds *dataset.Dataset, opts Options) (*State, error) {
	if ds == nil {
		return nil, errs.New(errs.ErrCodeInvalidInput, "dataset is nil")
	}
	if opts.Metric == "" {
		opts.Metric = weight.DefaultMetric
	}
	s := &State{
		ds:      ds,
		opts:    opts,
		members: slices.Clone(ds.Members),
		step:    -1,
	}
	s.byID = make(map[string]int, len(s.members))
	for i, m := range s.members {
		if _, dup := s.byID[m.ID]; dup {
			return nil, errs.New(errs.ErrCodeInvalidInput, "duplicate member id %q", m.ID)
		}
		if err := s.checkTerritory(m.Territory); err != nil {
			return nil, errs.Wrap(errs.ErrCodeUnknownEntity, err, "member %s", m.ID)
		}
		s.byID[m.ID] = i
	}

	model, err := weight.Build(s.members, opts.Metric, s.reserved(), opts.Weight)
	if err != nil {
		return nil, err
	}
	s.model = model
	s.nodes = make(map[string]packing.Node, len(ds.Territories))
	s.cells = make(map[string]voronoi.Result, len(ds.Territories))
	if _, err := s.relayout(s.territoryIDs(), nil); err != nil {
		return nil, err
	}
	return s, nil
}

// Replay initialises ds and plays steps [0, upto) downwards.
func Replay(ds *dataset.Dataset, opts Options, upto int) (*State, error) {
	s, err := Init(ds, opts)
	if err != nil {
		return nil, err
	}
	for i := 0; i < upto && i < len(ds.Steps); i++ {
		s, _, err = s.ApplyStep(Change(ds.Steps[i], transition.Down))
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *State) reserved() []string {
	if s.ds.Reserved != nil {
		return s.ds.Reserved
	}
	return dataset.DefaultReserved
}

func (s *State) isReserved(id string) bool {
	return slices.Contains(s.reserved(), id)
}

func (s *State) checkTerritory(id string) error {
	if s.isReserved(id) {
		return nil
	}
	if _, ok := s.ds.Territory(id); !ok {
		return errs.New(errs.ErrCodeUnknownEntity, "unknown territory %q", id)
	}
	return nil
}

// territoryIDs returns the ids of all drawable territories, sorted.
func (s *State) territoryIDs() []string {
	ids := make([]string, 0, len(s.ds.Territories))
	for _, t := range s.ds.Territories {
		if !s.isReserved(t.ID) {
			ids = append(ids, t.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// clone returns a shallow copy whose maps may be modified independently.
func (s *State) clone() *State {
	c := *s
	c.members = slices.Clone(s.members)
	c.nodes = maps.Clone(s.nodes)
	c.cells = maps.Clone(s.cells)
	return &c
}

// ApplyStep applies ev and returns the resulting state with the plan that
// animates it. The plan always runs from the earlier to the later step, so
// for an upward change it is built from the new state to the receiver and
// Evaluate(t, Up) plays it backwards.
func (s *State) ApplyStep(ev StepChange) (*State, *transition.Plan, error) {
	affected := make(map[string]bool)
	for _, mv := range ev.Deltas {
		if _, ok := s.byID[mv.MemberID]; !ok {
			return nil, nil, errs.New(errs.ErrCodeUnknownEntity, "step %d: unknown member %q", ev.Index, mv.MemberID)
		}
		for _, t := range []string{mv.From, mv.To} {
			if err := s.checkTerritory(t); err != nil {
				return nil, nil, errs.Wrap(errs.ErrCodeUnknownEntity, err, "step %d: member %s", ev.Index, mv.MemberID)
			}
			if !s.isReserved(t) {
				affected[t] = true
			}
		}
	}
	for _, t := range ev.Affected {
		if err := s.checkTerritory(t); err != nil {
			return nil, nil, errs.Wrap(errs.ErrCodeUnknownEntity, err, "step %d", ev.Index)
		}
		if !s.isReserved(t) {
			affected[t] = true
		}
	}

	next := s.clone()
	if ev.Direction == transition.Up {
		for i := len(ev.Deltas) - 1; i >= 0; i-- {
			mv := ev.Deltas[i]
			j := next.byID[mv.MemberID]
			m := next.members[j].WithTerritory(mv.From)
			for _, mc := range mv.Metrics {
				m = m.WithMetric(mc.Name, mc.From)
			}
			next.members[j] = m
		}
		next.step = ev.Index - 1
	} else {
		for _, mv := range ev.Deltas {
			j := next.byID[mv.MemberID]
			m := next.members[j].WithTerritory(mv.To)
			for _, mc := range mv.Metrics {
				m = m.WithMetric(mc.Name, mc.To)
			}
			next.members[j] = m
		}
		next.step = ev.Index
	}

	ids, err := next.relayout(slices.Sorted(maps.Keys(affected)), s)
	if err != nil {
		return nil, nil, err
	}

	var plan *transition.Plan
	if ev.Direction == transition.Up {
		plan = transition.Build(next.Snapshot(), s.Snapshot(), ids, s.opts.Transition)
	} else {
		plan = transition.Build(s.Snapshot(), next.Snapshot(), ids, s.opts.Transition)
	}
	return next, plan, nil
}

// SetMetric resizes the whole map by metric name. Every territory is
// relaid and repartitioned.
func (s *State) SetMetric(name string) (*State, *transition.Plan, error) {
	model, err := weight.Build(s.members, name, s.reserved(), s.opts.Weight)
	if err != nil {
		return nil, nil, err
	}
	next := s.clone()
	next.opts.Metric = name
	next.model = model

	ids, err := next.relayout(s.territoryIDs(), s)
	if err != nil {
		return nil, nil, err
	}
	return next, transition.Build(s.Snapshot(), next.Snapshot(), ids, s.opts.Transition), nil
}

// shiftTolerance is how far an untouched territory may drift in a relayout
// before its cells follow it.
const shiftTolerance = 1.0

// relayout recomputes weights, relaxes every circle from its current
// position and repartitions the affected territories. Untouched territories
// the packing pushes aside keep their partition, translated with the
// circle, and join the returned set of territories to animate. prev
// supplies prior generator positions; nil starts fresh.
func (s *State) relayout(affected []string, prev *State) ([]string, error) {
	s.weights = s.model.Weights(s.members)
	s.totals = s.model.Totals(s.members, s.weights)
	animate := make(map[string]bool, len(affected))
	for _, id := range affected {
		animate[id] = true
	}

	nodes := make([]packing.Node, 0, len(s.ds.Territories))
	for _, id := range s.territoryIDs() {
		t, _ := s.ds.Territory(id)
		old, placed := s.nodes[id]
		nodes = append(nodes, packing.Node{
			ID:     id,
			Anchor: t.Anchor,
			Center: old.Center,
			Radius: s.model.TerritoryRadius(s.totals[id]),
			Placed: placed,
		})
	}
	for _, n := range packing.Layout(nodes, s.opts.Packing) {
		old, placed := s.nodes[n.ID]
		if placed && !animate[n.ID] {
			d := geom.Point{n.Center[0] - old.Center[0], n.Center[1] - old.Center[1]}
			if math.Hypot(d[0], d[1]) < shiftTolerance {
				continue
			}
			if res, ok := s.cells[n.ID]; ok {
				s.cells[n.ID] = res.Translate(d)
				animate[n.ID] = true
			}
		}
		s.nodes[n.ID] = n
	}

	for _, id := range affected {
		if s.totals[id] <= 0 {
			delete(s.cells, id)
			continue
		}
		node := s.nodes[id]
		req := voronoi.Request{
			TerritoryID: id,
			Center:      node.Center,
			Radius:      node.Radius,
		}
		for _, m := range s.members {
			if m.Territory != id {
				continue
			}
			req.Sites = append(req.Sites, voronoi.Site{
				MemberID: m.ID,
				Weight:   s.weights[m.ID],
				Prior:    prev.prior(m.ID, id, node.Center),
			})
		}
		res, err := voronoi.Partition(req, s.opts.Voronoi)
		if err != nil {
			return nil, err
		}
		s.cells[id] = res
	}
	return slices.Sorted(maps.Keys(animate)), nil
}

// prior returns member id's previous generator position translated with its
// territory, or nil when the member was elsewhere.
func (s *State) prior(id, territory string, center geom.Point) *geom.Point {
	if s == nil {
		return nil
	}
	res, ok := s.cells[territory]
	if !ok {
		return nil
	}
	c, ok := res.Cell(id)
	if !ok {
		return nil
	}
	old := s.nodes[territory].Center
	p := geom.Point{c.Site[0] - old[0] + center[0], c.Site[1] - old[1] + center[1]}
	return &p
}

// Snapshot returns every visible member's shape.
func (s *State) Snapshot() transition.Snapshot {
	snap := make(transition.Snapshot)
	for _, id := range s.territoryIDs() {
		res, ok := s.cells[id]
		if !ok {
			continue
		}
		t, _ := s.ds.Territory(id)
		for _, c := range res.Cells {
			if len(c.Polygon) < geom.MinSides {
				continue
			}
			snap[c.MemberID] = transition.Shape{
				MemberID:    c.MemberID,
				TerritoryID: id,
				Polygon:     c.Polygon,
				Fill:        t.Fill,
				Stroke:      t.Stroke,
				TokenRadius: s.model.TokenRadius(c.Weight),
			}
		}
	}
	return snap
}

// Frame returns the resting frame of the state.
func (s *State) Frame() transition.Frame {
	return transition.FrameFromSnapshot(s.Snapshot())
}

// Metric returns the active sizing metric.
func (s *State) Metric() string { return s.opts.Metric }

// Options returns the options the state was built with, with the active
// metric.
func (s *State) Options() Options { return s.opts }

// Model returns the active weight model.
func (s *State) Model() *weight.Model { return s.model }

// Step returns the index of the last applied step, or -1.
func (s *State) Step() int { return s.step }

// Dataset returns the dataset the state was built from.
func (s *State) Dataset() *dataset.Dataset { return s.ds }

// Member returns the current record of member id.
func (s *State) Member(id string) (dataset.Member, bool) {
	i, ok := s.byID[id]
	if !ok {
		return dataset.Member{}, false
	}
	return s.members[i], true
}

// Members returns a copy of the current roster.
func (s *State) Members() []dataset.Member { return slices.Clone(s.members) }

// Weight returns member id's current weight.
func (s *State) Weight(id string) float64 { return s.weights[id] }

// Partition returns the partition of territory id.
func (s *State) Partition(id string) (voronoi.Result, bool) {
	res, ok := s.cells[id]
	return res, ok
}

// Territories returns the resolved geometry of every drawable territory,
// sorted by id.
func (s *State) Territories() []TerritoryView {
	counts := make(map[string]int)
	for _, m := range s.members {
		counts[m.Territory]++
	}
	var out []TerritoryView
	for _, id := range s.territoryIDs() {
		t, _ := s.ds.Territory(id)
		n := s.nodes[id]
		out = append(out, TerritoryView{
			Territory: t,
			Center:    n.Center,
			Radius:    n.Radius,
			Total:     s.totals[id],
			Members:   counts[id],
		})
	}
	return out
}
