package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/rostermap/pkg/dataset"
	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/scene"
	"github.com/matzehuels/rostermap/pkg/transition"
)

// Prepared is the scene around one step: the layout before and after it
// and the transition between them. For InitialStep Before and After are
// the same state and Plan is nil.
type Prepared struct {
	Step   dataset.Step
	Before *scene.State
	After  *scene.State
	Plan   *transition.Plan
}

// Prepare replays ds up to opts.Step and plans that step's transition.
func Prepare(ctx context.Context, ds *dataset.Dataset, opts Options) (*Prepared, error) {
	if opts.Step == InitialStep {
		s, err := scene.Init(ds, opts.SceneOptions())
		if err != nil {
			return nil, err
		}
		return &Prepared{Step: dataset.Step{Index: InitialStep}, Before: s, After: s}, nil
	}

	step, ok := ds.Step(opts.Step)
	if !ok {
		return nil, errs.New(errs.ErrCodeStepNotFound, "step %d not found (dataset has %d steps)", opts.Step, len(ds.Steps))
	}
	before, err := scene.Replay(ds, opts.SceneOptions(), opts.Step)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	after, plan, err := before.ApplyStep(scene.Change(step, transition.Down))
	var affected int
	if plan != nil {
		affected = len(plan.Affected())
	}
	observability.Engine().OnStepComplete(ctx, step.Index, transition.Down.String(), affected, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &Prepared{Step: step, Before: before, After: after, Plan: plan}, nil
}

// Frame evaluates the transition at progress t played in direction dir.
func (p *Prepared) Frame(t float64, dir transition.Direction) transition.Frame {
	if p.Plan == nil {
		return p.After.Frame()
	}
	return p.Plan.Evaluate(t, dir)
}

// StateAt returns the side of the transition a frame at (t, dir) is
// closer to. Labels and outlines are taken from it.
func (p *Prepared) StateAt(t float64, dir transition.Direction) *scene.State {
	if p.Plan == nil || p.Plan.Progress(t, dir) >= 0.5 {
		return p.After
	}
	return p.Before
}
