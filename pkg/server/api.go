package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/render"
	"github.com/matzehuels/rostermap/pkg/weight"
)

// DatasetResponse describes the loaded dataset.
type DatasetResponse struct {
	Hash        string          `json:"hash"`
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
	Members     int             `json:"members"`
	Steps       int             `json:"steps"`
	Metrics     []MetricInfo    `json:"metrics"`
	Territories []TerritoryInfo `json:"territories"`
}

// MetricInfo names one sizing metric.
type MetricInfo struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Rate  bool   `json:"rate,omitempty"`
}

// TerritoryInfo describes one territory.
type TerritoryInfo struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Fill     string  `json:"fill"`
	Stroke   string  `json:"stroke"`
	Lon      float64 `json:"lon"`
	Lat      float64 `json:"lat"`
	Reserved bool    `json:"reserved,omitempty"`
}

// StepInfo is one entry of the narrative.
type StepInfo struct {
	Index        int               `json:"index"`
	Date         string            `json:"date"`
	Affected     []string          `json:"affected"`
	Transactions []TransactionInfo `json:"transactions"`
}

// TransactionInfo summarises one transaction of a step.
type TransactionInfo struct {
	Text  string `json:"text"`
	Type  string `json:"type"`
	Moves int    `json:"moves"`
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	l, err := s.current()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ds := l.Dataset
	resp := DatasetResponse{
		Hash:    l.Hash,
		Width:   ds.Width,
		Height:  ds.Height,
		Members: len(ds.Members),
		Steps:   len(ds.Steps),
	}
	for _, name := range weight.MetricNames() {
		spec := weight.Metrics[name]
		resp.Metrics = append(resp.Metrics, MetricInfo{Name: spec.Name, Label: spec.Label, Rate: spec.Rate})
	}
	for _, t := range ds.Territories {
		resp.Territories = append(resp.Territories, TerritoryInfo{
			ID:       t.ID,
			Name:     t.Name,
			Fill:     t.Fill,
			Stroke:   t.Stroke,
			Lon:      t.Lon,
			Lat:      t.Lat,
			Reserved: ds.IsReserved(t.ID),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSteps(w http.ResponseWriter, r *http.Request) {
	l, err := s.current()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	steps := make([]StepInfo, 0, len(l.Dataset.Steps))
	for _, st := range l.Dataset.Steps {
		info := StepInfo{Index: st.Index, Date: st.Date, Affected: st.Affected()}
		for _, tx := range st.Transactions {
			info.Transactions = append(info.Transactions, TransactionInfo{Text: tx.Text, Type: tx.Type, Moves: len(tx.Moves)})
		}
		steps = append(steps, info)
	}
	writeJSON(w, http.StatusOK, steps)
}

// handleRender renders one frame statelessly through the cached runner.
//
//	GET /api/render?step=0&progress=0.5&direction=down&metric=vorp&format=svg
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	opts := s.opts
	var err error
	if opts.Step, err = queryInt(r, "step", opts.Step); err != nil {
		s.fail(w, r, err)
		return
	}
	if opts.Progress, err = queryFloat(r, "progress", opts.Progress); err != nil {
		s.fail(w, r, err)
		return
	}
	if opts.Interactive, err = queryBool(r, "interactive", opts.Interactive); err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	if v := q.Get("direction"); v != "" {
		opts.Direction = v
	}
	if v := q.Get("metric"); v != "" {
		opts.Metric = v
	}
	if v := q.Get("format"); v != "" {
		opts.Format = v
	}

	res, err := s.runner.RenderFrame(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, opts.Format, res.Data, res.CacheHit)
}

// handleNetwork renders the movement network of a step.
//
//	GET /api/network/3?format=svg&detailed=true
func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	opts := s.opts
	step, err := strconv.Atoi(chi.URLParam(r, "step"))
	if err != nil {
		s.fail(w, r, errs.New(errs.ErrCodeInvalidInput, "invalid step %q", chi.URLParam(r, "step")))
		return
	}
	opts.Step = step
	detailed, err := queryBool(r, "detailed", false)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	if v := q.Get("format"); v != "" {
		opts.Format = v
	}
	if v := q.Get("metric"); v != "" {
		opts.Metric = v
	}

	res, err := s.runner.RenderNetwork(r.Context(), opts, detailed)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeArtifact(w, opts.Format, res.Data, res.CacheHit)
}

func writeArtifact(w http.ResponseWriter, format string, data []byte, hit bool) {
	f, _ := render.ParseFormat(format)
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
