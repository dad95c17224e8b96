package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/render"
)

func (c *CLI) networkCommand() *cobra.Command {
	var (
		flags    optionFlags
		detailed bool
		output   string
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "network",
		Short: "Draw the movement network of one step",
		Long: `Draw the teams of one step as a graph with an edge for every member
moving between them. With --detailed the members themselves become nodes.`,
		Example: `  rostermap network -s 2
  rostermap network -s 2 --detailed -f png -o trade.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			opts.SetDefaults()

			runner := c.newRunner(noCache)
			defer runner.Close()

			res, err := runner.RenderNetwork(cmd.Context(), opts, detailed)
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s-network-step-%s%s", appName, stepLabel(opts.Step), render.Format(opts.Format).Ext())
			}
			if err := writeOutput(output, res.Data); err != nil {
				return err
			}
			printSuccess("Rendered network of step %s", stepLabel(opts.Step))
			printFile(output)
			return nil
		},
	}

	flags.registerData(cmd)
	flags.registerStep(cmd)
	flags.registerFormat(cmd)
	cmd.Flags().BoolVar(&detailed, "detailed", false, "draw members as nodes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default rostermap-network-step-N.ext)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the render cache")
	return cmd
}
