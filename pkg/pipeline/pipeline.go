// Package pipeline runs the load → scene → render pipeline shared by the
// CLI and the server.
//
// # Stages
//
//  1. Load: read and project the dataset files ([Runner.Load]).
//  2. Scene: replay the narrative up to a step and plan its transition
//     ([Runner.Prepare]).
//  3. Render: evaluate the plan at a progress value and draw the frame in
//     one of the output formats ([Runner.RenderFrame]).
//
// Rendered artifacts are cached by a hash of the dataset files and every
// option that shapes the output, so scrubbing back and forth over the same
// step only renders each frame once.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	opts := pipeline.Options{
//	    Data:     dataset.Paths{Members: "members.csv", Territories: "teams.csv", Steps: "steps.json"},
//	    Step:     3,
//	    Progress: 0.5,
//	}
//	out, err := runner.RenderFrame(ctx, opts)
package pipeline

import (
	"io"
	"math"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/rostermap/pkg/cache"
	"github.com/matzehuels/rostermap/pkg/dataset"
	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/render"
	"github.com/matzehuels/rostermap/pkg/render/sink"
	"github.com/matzehuels/rostermap/pkg/scene"
	"github.com/matzehuels/rostermap/pkg/transition"
	"github.com/matzehuels/rostermap/pkg/weight"
)

// Defaults shared by the CLI, the config file and the server.
const (
	DefaultWidth  = dataset.DefaultWidth
	DefaultHeight = dataset.DefaultHeight

	// DefaultSeed seeds both the territory layout and the partitioner.
	DefaultSeed = uint64(42)

	DefaultFormat = render.FormatSVG

	// DefaultScale is the PNG resolution multiplier.
	DefaultScale = 2.0

	// DefaultFrames is the length of an exported frame sequence.
	DefaultFrames = 11

	// MaxFrames caps an exported frame sequence.
	MaxFrames = 600
)

// InitialStep selects the resting layout before the first step.
const InitialStep = -1

// MapStyle colors the background map.
type MapStyle struct {
	Fill    string  `toml:"fill" yaml:"fill" json:"fill,omitempty"`
	Stroke  string  `toml:"stroke" yaml:"stroke" json:"stroke,omitempty"`
	Opacity float64 `toml:"opacity" yaml:"opacity" json:"opacity,omitempty"`
}

// Timing overrides the transition phase boundaries.
type Timing struct {
	ExitAt     float64 `toml:"exit_at" yaml:"exit_at" json:"exit_at,omitempty"`
	SettleAt   float64 `toml:"settle_at" yaml:"settle_at" json:"settle_at,omitempty"`
	Buffer     float64 `toml:"buffer" yaml:"buffer" json:"buffer,omitempty"`
	DimOpacity float64 `toml:"dim_opacity" yaml:"dim_opacity" json:"dim_opacity,omitempty"`
}

// Options configures a pipeline run. It is filled from a config file,
// flags or an API request, in that order of increasing precedence.
type Options struct {
	Data     dataset.Paths `toml:"data" yaml:"data" json:"data"`
	Reserved []string      `toml:"reserved" yaml:"reserved" json:"reserved,omitempty"`

	Metric string  `toml:"metric" yaml:"metric" json:"metric,omitempty"`
	Width  float64 `toml:"width" yaml:"width" json:"width,omitempty"`
	Height float64 `toml:"height" yaml:"height" json:"height,omitempty"`
	Seed   uint64  `toml:"seed" yaml:"seed" json:"seed,omitempty"`

	// Step is the step whose transition is rendered, or InitialStep.
	Step      int     `toml:"step" yaml:"step" json:"step"`
	Progress  float64 `toml:"progress" yaml:"progress" json:"progress"`
	Direction string  `toml:"direction" yaml:"direction" json:"direction,omitempty"`

	Format      string   `toml:"format" yaml:"format" json:"format,omitempty"`
	Scale       float64  `toml:"scale" yaml:"scale" json:"scale,omitempty"`
	Frames      int      `toml:"frames" yaml:"frames" json:"frames,omitempty"`
	Interactive bool     `toml:"interactive" yaml:"interactive" json:"interactive,omitempty"`
	Map         MapStyle `toml:"map" yaml:"map" json:"map"`
	Timing      Timing   `toml:"timing" yaml:"timing" json:"timing"`

	// Refresh bypasses cached artifacts.
	Refresh bool `toml:"-" yaml:"-" json:"refresh,omitempty"`

	Logger *log.Logger `toml:"-" yaml:"-" json:"-"`
}

// SetDefaults fills unset fields.
func (o *Options) SetDefaults() {
	if o.Metric == "" {
		o.Metric = weight.DefaultMetric
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Direction == "" {
		o.Direction = transition.Down.String()
	}
	if o.Format == "" {
		o.Format = string(DefaultFormat)
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.Frames <= 0 {
		o.Frames = DefaultFrames
	}
	if o.Map.Fill == "" {
		o.Map.Fill = sink.DefaultMapStyle.Fill
	}
	if o.Map.Stroke == "" {
		o.Map.Stroke = sink.DefaultMapStyle.Stroke
	}
	if o.Map.Opacity == 0 {
		o.Map.Opacity = sink.DefaultMapStyle.Opacity
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// Validate applies defaults and checks every field.
func (o *Options) Validate() error {
	o.SetDefaults()
	if o.Data.Members == "" || o.Data.Territories == "" {
		return errs.New(errs.ErrCodeInvalidInput, "members and territories files are required")
	}
	if _, err := weight.Lookup(o.Metric); err != nil {
		return err
	}
	if _, err := render.ParseFormat(o.Format); err != nil {
		return err
	}
	if _, err := transition.ParseDirection(o.Direction); err != nil {
		return err
	}
	if o.Step < InitialStep {
		return errs.New(errs.ErrCodeInvalidInput, "step must be >= %d, got %d", InitialStep, o.Step)
	}
	if math.IsNaN(o.Progress) {
		return errs.New(errs.ErrCodeInvalidInput, "progress is NaN")
	}
	if o.Frames > MaxFrames {
		return errs.New(errs.ErrCodeInvalidInput, "frames must be <= %d, got %d", MaxFrames, o.Frames)
	}
	if o.Map.Fill != "" {
		if err := errs.ValidateHexColor(o.Map.Fill); err != nil {
			return err
		}
	}
	if o.Map.Opacity < 0 || o.Map.Opacity > 1 {
		return errs.New(errs.ErrCodeInvalidInput, "map opacity must be in [0, 1], got %v", o.Map.Opacity)
	}
	return nil
}

// LoadOptions returns the dataset load options.
func (o *Options) LoadOptions() dataset.LoadOptions {
	return dataset.LoadOptions{Width: o.Width, Height: o.Height, Reserved: o.Reserved}
}

// SceneOptions returns the engine options.
func (o *Options) SceneOptions() scene.Options {
	var so scene.Options
	so.Metric = o.Metric
	so.Packing.Seed = o.Seed
	so.Voronoi.Seed = o.Seed
	so.Transition = transition.Options{
		ExitAt:     o.Timing.ExitAt,
		SettleAt:   o.Timing.SettleAt,
		Buffer:     o.Timing.Buffer,
		DimOpacity: o.Timing.DimOpacity,
	}
	return so
}

// direction parses Direction. Validate has already rejected bad values.
func (o *Options) direction() transition.Direction {
	d, _ := transition.ParseDirection(o.Direction)
	return d
}

// FrameKeyOpts returns the cache key options of one rendered frame.
func (o *Options) FrameKeyOpts(progress float64) cache.FrameKeyOpts {
	return cache.FrameKeyOpts{
		Metric:      o.Metric,
		Step:        o.Step,
		Progress:    progress,
		Direction:   o.Direction,
		Format:      o.Format,
		Width:       o.Width,
		Height:      o.Height,
		Scale:       o.Scale,
		Interactive: o.Interactive,
		Seed:        o.Seed,
	}
}
