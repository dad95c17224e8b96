package sink

import (
	"encoding/json"
	"fmt"

	"github.com/matzehuels/rostermap/pkg/transition"
)

// JSONOption configures JSON rendering via [RenderJSON].
type JSONOption func(*jsonRenderer)

type jsonRenderer struct {
	width, height float64
	step          *int
	progress      *float64
	direction     transition.Direction
	metric        string
	indent        bool
}

// WithJSONSize records the canvas size.
func WithJSONSize(w, h float64) JSONOption {
	return func(r *jsonRenderer) { r.width, r.height = w, h }
}

// WithJSONStep records the step and the progress the frame was evaluated at.
func WithJSONStep(index int, progress float64, dir transition.Direction) JSONOption {
	return func(r *jsonRenderer) {
		r.step = &index
		r.progress = &progress
		r.direction = dir
	}
}

// WithJSONMetric records the active sizing metric.
func WithJSONMetric(name string) JSONOption { return func(r *jsonRenderer) { r.metric = name } }

// WithJSONIndent pretty-prints the output.
func WithJSONIndent() JSONOption { return func(r *jsonRenderer) { r.indent = true } }

// FrameDocument is the JSON form of a frame.
type FrameDocument struct {
	Width     float64                `json:"width,omitempty"`
	Height    float64                `json:"height,omitempty"`
	Step      *int                   `json:"step,omitempty"`
	Progress  *float64               `json:"progress,omitempty"`
	Direction string                 `json:"direction,omitempty"`
	Metric    string                 `json:"metric,omitempty"`
	Drawables []transition.Drawable `json:"drawables"`
}

// RenderJSON encodes a frame for stateless clients.
func RenderJSON(f transition.Frame, opts ...JSONOption) ([]byte, error) {
	r := jsonRenderer{}
	for _, opt := range opts {
		opt(&r)
	}
	doc := FrameDocument{
		Width:     r.width,
		Height:    r.height,
		Step:      r.step,
		Progress:  r.progress,
		Metric:    r.metric,
		Drawables: f.Drawables,
	}
	if doc.Drawables == nil {
		doc.Drawables = []transition.Drawable{}
	}
	if r.step != nil {
		doc.Direction = r.direction.String()
	}

	var (
		data []byte
		err  error
	)
	if r.indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return data, nil
}
