package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/pipeline"
)

// optionFlags binds command-line flags to pipeline options. Only flags the
// user actually set override the config file.
type optionFlags struct {
	opts pipeline.Options
}

// registerData adds the dataset and layout flags.
func (f *optionFlags) registerData(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.opts.Data.Members, "members", "", "members CSV file")
	fl.StringVar(&f.opts.Data.Territories, "territories", "", "territories CSV file")
	fl.StringVar(&f.opts.Data.Steps, "steps", "", "steps JSON file")
	fl.StringVar(&f.opts.Data.Background, "background", "", "GeoJSON background map")
	fl.StringSliceVar(&f.opts.Reserved, "reserved", nil, "territory ids kept off the map (default FA,RET)")
	fl.StringVarP(&f.opts.Metric, "metric", "m", "", "sizing metric: salary (default), vorp, per")
	fl.Float64Var(&f.opts.Width, "width", 0, "canvas width (default 960)")
	fl.Float64Var(&f.opts.Height, "height", 0, "canvas height (default 600)")
	fl.Uint64Var(&f.opts.Seed, "seed", 0, "layout seed (default 42)")
}

// registerStep adds the flags selecting a step transition.
func (f *optionFlags) registerStep(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.IntVarP(&f.opts.Step, "step", "s", 0, "step index, -1 for the initial layout")
	fl.StringVarP(&f.opts.Direction, "direction", "d", "", "scroll direction: down (default), up")
}

// registerFormat adds the single output format flag.
func (f *optionFlags) registerFormat(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.opts.Format, "format", "f", "", "output format: svg (default), json, png, pdf")
}

// registerFrames adds the frame count flag.
func (f *optionFlags) registerFrames(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.opts.Frames, "frames", 0, "number of frames per step (default 11)")
}

// registerOutput adds the flags shaping rendered artifacts.
func (f *optionFlags) registerOutput(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.Float64Var(&f.opts.Scale, "scale", 0, "PNG resolution multiplier (default 2)")
	fl.BoolVar(&f.opts.Interactive, "interactive", false, "embed tooltips and hover script in SVG output")
	fl.StringVar(&f.opts.Map.Fill, "map-fill", "", "background map fill color")
	fl.Float64Var(&f.opts.Map.Opacity, "map-opacity", 0, "background map opacity")
	fl.BoolVar(&f.opts.Refresh, "refresh", false, "ignore cached artifacts")
}

// apply copies every flag the user set onto dst.
func (f *optionFlags) apply(cmd *cobra.Command, dst *pipeline.Options) {
	src := &f.opts
	setters := map[string]func(){
		"members":     func() { dst.Data.Members = src.Data.Members },
		"territories": func() { dst.Data.Territories = src.Data.Territories },
		"steps":       func() { dst.Data.Steps = src.Data.Steps },
		"background":  func() { dst.Data.Background = src.Data.Background },
		"reserved":    func() { dst.Reserved = src.Reserved },
		"metric":      func() { dst.Metric = src.Metric },
		"width":       func() { dst.Width = src.Width },
		"height":      func() { dst.Height = src.Height },
		"seed":        func() { dst.Seed = src.Seed },
		"step":        func() { dst.Step = src.Step },
		"direction":   func() { dst.Direction = src.Direction },
		"format":      func() { dst.Format = src.Format },
		"frames":      func() { dst.Frames = src.Frames },
		"scale":       func() { dst.Scale = src.Scale },
		"interactive": func() { dst.Interactive = src.Interactive },
		"map-fill":    func() { dst.Map.Fill = src.Map.Fill },
		"map-opacity": func() { dst.Map.Opacity = src.Map.Opacity },
		"refresh":     func() { dst.Refresh = src.Refresh },
	}
	for name, set := range setters {
		if cmd.Flags().Changed(name) {
			set()
		}
	}
}

// loadOptions reads the config file, if any, and applies the flags the
// user set on top of it.
func (c *CLI) loadOptions(cmd *cobra.Command, flags *optionFlags) (pipeline.Options, error) {
	var opts pipeline.Options
	path := c.configPath
	if path == "" {
		path = pipeline.FindConfig(".")
	}
	if path != "" {
		loaded, err := pipeline.LoadConfig(path)
		if err != nil {
			return opts, err
		}
		opts = loaded
		c.Logger.Debug("loaded config", "path", path)
	}
	flags.apply(cmd, &opts)
	opts.Logger = c.Logger
	return opts, nil
}
