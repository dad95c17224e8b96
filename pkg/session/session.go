// Package session keeps one scene per viewer.
//
// A viewer scrolls through the narrative: each step change moves its
// session's state one step and plans the transition, and each progress
// update evaluates that plan. Sessions live in memory and expire after a
// period without activity.
//
//	store := session.NewStore(session.DefaultTTL)
//	sess := store.Create(initial)
//	plan, err := sess.Step(scene.Change(step, transition.Down))
//	frame, prev := sess.Progress(0.4)
package session

import (
	"sync"
	"time"

	"github.com/matzehuels/rostermap/pkg/dataset"
	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/scene"
	"github.com/matzehuels/rostermap/pkg/transition"
)

// Session is one viewer's scene. All methods are safe for concurrent use;
// calls on one session are serialized.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	lastSeen time.Time
	state    *scene.State
	plan     *transition.Plan
	dir      transition.Direction
	progress float64

	// last is the most recent frame handed out, the base for diffs.
	last transition.Frame
}

func newSession(id string, s *scene.State, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		lastSeen:  now,
		state:     s,
		progress:  1,
		last:      s.Frame(),
	}
}

// State returns the current resting layout: the state after the last step
// change.
func (s *Session) State() *scene.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Step applies a step change. Steps must be played in order: Down plays
// the step after the current one and Up reverts the current one. The
// returned plan starts at progress 0.
func (s *Session) Step(ev scene.StepChange) (*transition.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.state.Step()
	switch {
	case ev.Direction == transition.Down && ev.Index != cur+1:
		return nil, errs.New(errs.ErrCodeInvalidInput, "cannot play step %d down from step %d", ev.Index, cur)
	case ev.Direction == transition.Up && ev.Index != cur:
		return nil, errs.New(errs.ErrCodeInvalidInput, "cannot play step %d up from step %d", ev.Index, cur)
	}

	next, plan, err := s.state.ApplyStep(ev)
	if err != nil {
		return nil, err
	}
	s.state, s.plan, s.dir, s.progress = next, plan, ev.Direction, 0
	return plan, nil
}

// PlayStep looks up step index in the dataset and plays it in dir.
func (s *Session) PlayStep(index int, dir transition.Direction) (*transition.Plan, error) {
	ds := s.State().Dataset()
	step, ok := ds.Step(index)
	if !ok {
		return nil, errs.New(errs.ErrCodeStepNotFound, "step %d not found (dataset has %d steps)", index, len(ds.Steps))
	}
	return s.Step(scene.Change(step, dir))
}

// Seek jumps to the resting layout after step index without a transition.
// Index -1 is the initial layout. The next Progress call returns the new
// layout with the last frame handed out before the jump.
func (s *Session) Seek(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.state.Dataset()
	if index < -1 || index >= len(ds.Steps) {
		return errs.New(errs.ErrCodeStepNotFound, "step %d not found (dataset has %d steps)", index, len(ds.Steps))
	}
	opts := s.state.Options()
	next, err := scene.Replay(ds, opts, index+1)
	if err != nil {
		return err
	}
	s.state, s.plan, s.progress = next, nil, 1
	return nil
}

// SetMetric resizes everything by another metric and plans the change.
func (s *Session) SetMetric(name string) (*transition.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, plan, err := s.state.SetMetric(name)
	if err != nil {
		return nil, err
	}
	s.state, s.plan, s.dir, s.progress = next, plan, transition.Down, 0
	return plan, nil
}

// Progress evaluates the current plan at t and returns the frame together
// with the previously returned one. Without a plan the resting frame is
// returned.
func (s *Session) Progress(t float64) (frame, prev transition.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plan == nil {
		frame = s.state.Frame()
	} else {
		frame = s.plan.Evaluate(t, s.dir)
		s.progress = t
	}
	prev, s.last = s.last, frame
	return frame, prev
}

// Position reports the step, direction and progress of the last update.
func (s *Session) Position() (step int, dir transition.Direction, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Step(), s.dir, s.progress
}

// Dataset returns the dataset the session plays.
func (s *Session) Dataset() *dataset.Dataset { return s.State().Dataset() }

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) expired(now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ttl > 0 && now.Sub(s.lastSeen) > ttl
}
