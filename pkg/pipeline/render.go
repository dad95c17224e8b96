package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/matzehuels/rostermap/pkg/dataset"
	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/observability"
	"github.com/matzehuels/rostermap/pkg/render"
	"github.com/matzehuels/rostermap/pkg/render/nodelink"
	"github.com/matzehuels/rostermap/pkg/render/sink"
	"github.com/matzehuels/rostermap/pkg/scene"
	"github.com/matzehuels/rostermap/pkg/weight"
)

// Render draws the frame of p at progress t in opts.Format.
func Render(ctx context.Context, p *Prepared, t float64, opts Options) ([]byte, error) {
	start := time.Now()
	data, err := renderFrame(ctx, p, t, opts)
	observability.Engine().OnRenderComplete(ctx, opts.Format, len(data), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", opts.Format, err)
	}
	return data, nil
}

func renderFrame(ctx context.Context, p *Prepared, t float64, opts Options) ([]byte, error) {
	dir := opts.direction()
	frame := p.Frame(t, dir)
	format, err := render.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	if format == render.FormatJSON {
		jsonOpts := []sink.JSONOption{
			sink.WithJSONSize(opts.Width, opts.Height),
			sink.WithJSONMetric(opts.Metric),
		}
		if p.Plan != nil {
			jsonOpts = append(jsonOpts, sink.WithJSONStep(p.Step.Index, t, dir))
		}
		return sink.RenderJSON(frame, jsonOpts...)
	}

	svgOpts := SVGOptions(p.StateAt(t, dir), p.Step, opts)
	switch format {
	case render.FormatPNG:
		return sink.RenderPNG(ctx, frame, opts.Scale, svgOpts...)
	case render.FormatPDF:
		return sink.RenderPDF(ctx, frame, svgOpts...)
	default:
		return sink.RenderSVG(frame, svgOpts...), nil
	}
}

// SVGOptions builds the decorations of a frame drawn over state s: the
// background map, territory outlines, a title naming the step and member
// tooltips.
func SVGOptions(s *scene.State, step dataset.Step, opts Options) []sink.SVGOption {
	ds := s.Dataset()
	out := []sink.SVGOption{sink.WithSize(opts.Width, opts.Height)}
	if ds.Background != nil {
		out = append(out,
			sink.WithBackground(ds.Background),
			sink.WithMapStyle(sink.MapStyle(opts.Map)),
		)
	}

	var outlines []sink.Outline
	for _, tv := range s.Territories() {
		outlines = append(outlines, sink.Outline{
			ID:     tv.ID,
			Label:  tv.Name,
			Center: tv.Center,
			Radius: tv.Radius,
			Stroke: tv.Stroke,
		})
	}
	out = append(out, sink.WithTerritories(outlines...))

	if title, subtitle := StepTitle(step); title != "" {
		out = append(out, sink.WithTitle(title, subtitle))
	}
	if opts.Interactive {
		out = append(out, sink.WithInteraction(), sink.WithTooltips(Tooltips(s)))
	}
	return out
}

// StepTitle returns the heading of a step: its date, and the text of its
// transactions joined.
func StepTitle(step dataset.Step) (title, subtitle string) {
	if step.Index < 0 {
		return "", ""
	}
	var texts []string
	for _, tx := range step.Transactions {
		if tx.Text != "" {
			texts = append(texts, tx.Text)
		}
	}
	return step.Date, strings.Join(texts, " · ")
}

// Tooltips describes every member of s by name, team and metric values.
func Tooltips(s *scene.State) map[string]string {
	names := weight.MetricNames()
	out := make(map[string]string)
	for _, m := range s.Members() {
		var sb strings.Builder
		sb.WriteString(m.Name)
		if t, ok := s.Dataset().Territory(m.Territory); ok {
			fmt.Fprintf(&sb, " (%s)", t.Name)
		}
		for _, name := range names {
			spec := weight.Metrics[name]
			v, ok := m.Metric(name)
			if !ok {
				fmt.Fprintf(&sb, "\n%s: n/a", spec.Label)
				continue
			}
			fmt.Fprintf(&sb, "\n%s: "+spec.Format, spec.Label, v)
		}
		out[m.ID] = sb.String()
	}
	return out
}

// RenderNetwork draws the movement network of opts.Step.
func RenderNetwork(ctx context.Context, ds *dataset.Dataset, detailed bool, opts Options) ([]byte, error) {
	step, ok := ds.Step(opts.Step)
	if !ok {
		return nil, errs.New(errs.ErrCodeStepNotFound, "step %d not found (dataset has %d steps)", opts.Step, len(ds.Steps))
	}
	format, err := render.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if format == render.FormatJSON {
		return nil, errs.New(errs.ErrCodeUnsupported, "network diagrams support svg, png and pdf")
	}
	dot := nodelink.ToDOT(step, ds, nodelink.Options{Detailed: detailed, Metric: opts.Metric})

	start := time.Now()
	data, err := nodelink.Render(ctx, dot, format, opts.Scale)
	observability.Engine().OnRenderComplete(ctx, "network-"+opts.Format, len(data), time.Since(start), err)
	return data, err
}

// ProgressValues returns n evenly spaced progress values from 0 to 1.
func ProgressValues(n int) []float64 {
	if n <= 1 {
		return []float64{1}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) / float64(n-1)
	}
	return out
}
