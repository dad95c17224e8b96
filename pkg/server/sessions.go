package server

import (
	"net/http"
	"time"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/render/sink"
	"github.com/matzehuels/rostermap/pkg/scene"
	"github.com/matzehuels/rostermap/pkg/session"
	"github.com/matzehuels/rostermap/pkg/transition"
)

// CreateSessionRequest starts a session. Both fields are optional: the
// session starts at the initial layout sized by the server's metric.
type CreateSessionRequest struct {
	Metric string `json:"metric,omitempty"`
	Step   *int   `json:"step,omitempty"`
}

// SessionResponse is a session's position.
type SessionResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Step      int       `json:"step"`
	Direction string    `json:"direction"`
	Progress  float64   `json:"progress"`
	Metric    string    `json:"metric"`
	Steps     int       `json:"steps"`
}

// StepRequest plays one step.
type StepRequest struct {
	Index     int    `json:"index"`
	Direction string `json:"direction,omitempty"`
}

// SeekRequest jumps to the layout after a step.
type SeekRequest struct {
	Index int `json:"index"`
}

// MetricRequest switches the sizing metric.
type MetricRequest struct {
	Metric string `json:"metric"`
}

// PlanResponse describes a planned transition. Progress updates evaluate
// it from 0 to 1.
type PlanResponse struct {
	Step      int                        `json:"step"`
	Direction string                     `json:"direction"`
	Metric    string                     `json:"metric"`
	Affected  []string                   `json:"affected"`
	Roles     map[string]transition.Role `json:"roles"`
}

// DiffResponse is the change since the previously served frame.
type DiffResponse struct {
	Progress float64   `json:"progress"`
	Ops      []sink.Op `json:"ops"`
}

func describeSession(sess *session.Session) SessionResponse {
	step, dir, progress := sess.Position()
	return SessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt,
		Step:      step,
		Direction: dir.String(),
		Progress:  progress,
		Metric:    sess.State().Metric(),
		Steps:     len(sess.Dataset().Steps),
	}
}

func describePlan(sess *session.Session, plan *transition.Plan) PlanResponse {
	step, dir, _ := sess.Position()
	return PlanResponse{
		Step:      step,
		Direction: dir.String(),
		Metric:    sess.State().Metric(),
		Affected:  plan.Affected(),
		Roles:     plan.Roles(),
	}
}

// newSession lays out the current dataset and registers a session on it.
func (s *Server) newSession(req CreateSessionRequest) (*session.Session, error) {
	l, err := s.current()
	if err != nil {
		return nil, err
	}
	so := s.opts.SceneOptions()
	if req.Metric != "" {
		so.Metric = req.Metric
	}
	upto := 0
	if req.Step != nil {
		if *req.Step < pipeline.InitialStep || *req.Step >= len(l.Dataset.Steps) {
			return nil, errs.New(errs.ErrCodeStepNotFound, "step %d not found (dataset has %d steps)", *req.Step, len(l.Dataset.Steps))
		}
		upto = *req.Step + 1
	}
	state, err := scene.Replay(l.Dataset, so, upto)
	if err != nil {
		return nil, err
	}
	return s.store.Create(state), nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	sess, err := s.newSession(req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	observability.Server().OnSessions(r.Context(), s.store.Len())
	s.logger.Debug("created session", "id", sess.ID, "metric", sess.State().Metric())
	writeJSON(w, http.StatusCreated, describeSession(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeSession(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.store.Delete(sess.ID)
	observability.Server().OnSessions(r.Context(), s.store.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req StepRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := playStep(sess, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describePlan(sess, plan))
}

func playStep(sess *session.Session, req StepRequest) (*transition.Plan, error) {
	dir, err := transition.ParseDirection(req.Direction)
	if err != nil {
		return nil, err
	}
	return sess.PlayStep(req.Index, dir)
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req SeekRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := sess.Seek(req.Index); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describeSession(sess))
}

func (s *Server) handleMetric(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req MetricRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	plan, err := sess.SetMetric(req.Metric)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, describePlan(sess, plan))
}

// handleFrame evaluates the session's transition at ?progress= and answers
// with the whole frame, or with ?diff=true only the ops since the previous
// frame served to this session.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := queryFloat(r, "progress", 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	diff, err := queryBool(r, "diff", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	frame, prev := sess.Progress(t)
	if diff {
		writeJSON(w, http.StatusOK, DiffResponse{Progress: t, Ops: nonNil(sink.Diff(prev, frame))})
		return
	}

	step, dir, _ := sess.Position()
	ds := sess.Dataset()
	data, err := sink.RenderJSON(frame,
		sink.WithJSONSize(ds.Width, ds.Height),
		sink.WithJSONStep(step, t, dir),
		sink.WithJSONMetric(sess.State().Metric()),
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, "json", data, false)
}

// handleFrameSVG draws the session's frame at ?progress= with the map,
// territory outlines and the heading of the step being played.
func (s *Server) handleFrameSVG(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := queryFloat(r, "progress", 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	opts := s.opts
	if opts.Interactive, err = queryBool(r, "interactive", opts.Interactive); err != nil {
		s.fail(w, r, err)
		return
	}

	frame, _ := sess.Progress(t)
	state := sess.State()
	ds := state.Dataset()
	opts.Width, opts.Height = ds.Width, ds.Height
	opts.Metric = state.Metric()

	step, ok := ds.Step(playedStep(sess))
	if !ok {
		step.Index = pipeline.InitialStep
	}
	svg := sink.RenderSVG(frame, pipeline.SVGOptions(state, step, opts)...)
	writeArtifact(w, "svg", svg, false)
}

// playedStep is the index of the step the session's transition plays:
// the current step going down, the one after it going up.
func playedStep(sess *session.Session) int {
	step, dir, _ := sess.Position()
	if dir == transition.Up {
		return step + 1
	}
	return step
}

func nonNil(ops []sink.Op) []sink.Op {
	if ops == nil {
		return []sink.Op{}
	}
	return ops
}
