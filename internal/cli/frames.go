package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/render"
)

func (c *CLI) framesCommand() *cobra.Command {
	var (
		flags   optionFlags
		dir     string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "frames",
		Short: "Export an evenly spaced frame sequence of one step",
		Long: `Export --frames frames of one step transition, from progress 0 to 1,
into a directory. Frames are rendered in parallel and cached.`,
		Example: `  rostermap frames -s 2 --frames 30
  rostermap frames -s 2 --frames 60 -f png --output-dir trade-frames`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			return c.runFrames(cmd.Context(), opts, dir, noCache)
		},
	}

	flags.registerData(cmd)
	flags.registerStep(cmd)
	flags.registerFormat(cmd)
	flags.registerOutput(cmd)
	flags.registerFrames(cmd)
	cmd.Flags().StringVar(&dir, "output-dir", "", "output directory (default rostermap-step-N-frames)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the render cache")

	return cmd
}

func (c *CLI) runFrames(ctx context.Context, opts pipeline.Options, dir string, noCache bool) error {
	runner := c.newRunner(noCache)
	defer runner.Close()

	opts.SetDefaults()
	if dir == "" {
		dir = fmt.Sprintf("%s-step-%s-frames", appName, stepLabel(opts.Step))
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Rendering step %s...", stepLabel(opts.Step)))
	spinner.Start()
	start := time.Now()
	results, stats, err := runner.RenderFrames(ctx, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	ext := render.Format(opts.Format).Ext()
	for i, res := range results {
		if err := writeOutput(framePathIn(dir, i, ext), res.Data); err != nil {
			return err
		}
	}

	printSuccess("Rendered %d frames of step %s", len(results), stepLabel(opts.Step))
	printFile(dir)
	printStats(len(results), stats.CacheHits, time.Since(start))
	c.Logger.Debug("frame timings", "load", stats.LoadTime, "scene", stats.SceneTime, "render", stats.RenderTime)
	return nil
}

// framePathIn names frame i of a sequence so that files sort in play order.
func framePathIn(dir string, i int, ext string) string {
	return filepath.Join(dir, fmt.Sprintf("frame-%03d%s", i, ext))
}
