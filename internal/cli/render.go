package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/render"
)

// renderJob is one invocation of the render command.
type renderJob struct {
	progress []float64 // progress values; empty means the configured one
	formats  []string
	output   string
	noCache  bool
}

func (c *CLI) renderCommand() *cobra.Command {
	var (
		flags   optionFlags
		job     renderJob
		formats string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render frames of one step",
		Long: `Render the frame of a step transition at one or more progress values.

Progress 0 is the layout before the step and 1 the layout after it. With
--direction up the step is played in reverse.`,
		Example: `  rostermap render --members players.csv --territories teams.csv --steps steps.json -s 3 -p 0.5
  rostermap render -s 3 -p 0,0.5,1 -f svg,json -o trade`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			job.formats = parseFormats(formats, opts.Format)
			for _, f := range job.formats {
				if _, err := render.ParseFormat(f); err != nil {
					return err
				}
			}
			return c.runRender(cmd.Context(), opts, job)
		},
	}

	flags.registerData(cmd)
	flags.registerStep(cmd)
	flags.registerOutput(cmd)
	cmd.Flags().StringVarP(&formats, "format", "f", "", "output format(s): svg (default), json, png, pdf (comma-separated)")
	cmd.Flags().Float64SliceVarP(&job.progress, "progress", "p", nil, "progress value(s) in [0, 1] (comma-separated)")
	cmd.Flags().StringVarP(&job.output, "output", "o", "", "output file (single frame) or base path (several)")
	cmd.Flags().BoolVar(&job.noCache, "no-cache", false, "disable the render cache")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts pipeline.Options, job renderJob) error {
	runner := c.newRunner(job.noCache)
	defer runner.Close()

	progress := job.progress
	if len(progress) == 0 {
		progress = []float64{opts.Progress}
	}
	for i, t := range progress {
		if c := math.Max(0, math.Min(1, t)); c != t {
			printWarning("progress %v clamped to %v", t, c)
			progress[i] = c
		}
	}
	multi := len(progress) > 1 || len(job.formats) > 1

	prog := newProgress(c.Logger)
	hits := 0
	for _, format := range job.formats {
		for _, t := range progress {
			o := opts
			o.Format, o.Progress = format, t
			res, err := runner.RenderFrame(ctx, o)
			if err != nil {
				return err
			}
			if res.CacheHit {
				hits++
			}
			path := framePath(job.output, o.Step, t, format, multi)
			if err := writeOutput(path, res.Data); err != nil {
				return err
			}
			printSuccess("Rendered step %s at %.2f", stepLabel(o.Step), t)
			printFile(path)
		}
	}
	printStats(len(progress)*len(job.formats), hits, time.Since(prog.start))
	prog.done("Render complete")
	return nil
}

// parseFormats splits a comma-separated format list, falling back to def.
func parseFormats(s, def string) []string {
	if s == "" {
		if def == "" {
			def = string(pipeline.DefaultFormat)
		}
		return []string{def}
	}
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// framePath names the file of one rendered frame. A single frame goes to
// output unchanged; several frames share output's base name and are told
// apart by progress and extension.
func framePath(output string, step int, t float64, format string, multi bool) string {
	ext := render.Format(format).Ext()
	if output != "" && !multi {
		return output
	}
	base := strings.TrimSuffix(output, filepath.Ext(output))
	if base == "" {
		base = fmt.Sprintf("%s-step-%s", appName, stepLabel(step))
	}
	if !multi {
		return base + ext
	}
	return fmt.Sprintf("%s-p%03d%s", base, int(math.Round(t*100)), ext)
}

func stepLabel(step int) string {
	if step == pipeline.InitialStep {
		return "initial"
	}
	return fmt.Sprint(step)
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
