package cli

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/pipeline"
	"github.com/matzehuels/rostermap/pkg/scene"
	"github.com/matzehuels/rostermap/pkg/session"
)

func (c *CLI) playCommand() *cobra.Command {
	var (
		flags optionFlags
		from  int
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Scrub through the narrative in the terminal",
		Long: `Play the narrative step by step in the terminal. Each step animates the
member counts per team from progress 0 to 1; the transition can be
scrubbed back and forth while it runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			sess, err := newPlaySession(cmd.Context(), opts, from)
			if err != nil {
				return err
			}
			final, err := tea.NewProgram(newPlayModel(sess), tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return fmt.Errorf("play: %w", err)
			}
			if m, ok := final.(playModel); ok && m.err != nil {
				c.Logger.Debug("last play error", "err", m.err)
			}
			return nil
		},
	}

	flags.registerData(cmd)
	cmd.Flags().IntVar(&from, "from", pipeline.InitialStep, "start after this step, -1 for the initial layout")
	return cmd
}

// newPlaySession lays out the dataset as it stands after step from.
func newPlaySession(ctx context.Context, opts pipeline.Options, from int) (*session.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	loaded, err := pipeline.Load(ctx, opts)
	if err != nil {
		return nil, err
	}
	state, err := scene.Replay(loaded.Dataset, opts.SceneOptions(), from+1)
	if err != nil {
		return nil, err
	}
	return session.NewStore(0).Create(state), nil
}
