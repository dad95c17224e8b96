package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/rostermap/pkg/errors"
	"github.com/matzehuels/rostermap/pkg/pipeline"
)

// defaultConfigName is the file written by "config init".
const defaultConfigName = "rostermap.toml"

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the config file",
	}
	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configInitCommand())
	return cmd
}

func (c *CLI) configShowCommand() *cobra.Command {
	var flags optionFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective options as TOML",
		Long:  `Print the options a command would run with: defaults, then the config file, then flags.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			data, err := effectiveConfig(opts)
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
	flags.registerData(cmd)
	flags.registerStep(cmd)
	flags.registerFormat(cmd)
	flags.registerOutput(cmd)
	flags.registerFrames(cmd)
	return cmd
}

func (c *CLI) configInitCommand() *cobra.Command {
	var (
		flags optionFlags
		path  string
		force bool
	)
	cmd := &cobra.Command{
		Use:     "init",
		Short:   "Write a config file with the default options",
		Example: `  rostermap config init --members players.csv --territories teams.csv --steps steps.json`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(path); err == nil && !force {
				return errs.New(errs.ErrCodeInvalidInput, "%s already exists (use --force to overwrite)", path)
			}
			var opts pipeline.Options
			flags.apply(cmd, &opts)
			data, err := effectiveConfig(opts)
			if err != nil {
				return err
			}
			if err := writeOutput(path, data); err != nil {
				return err
			}
			printSuccess("Wrote config")
			printFile(path)
			printNextStep("List the steps", appName+" steps")
			return nil
		},
	}
	flags.registerData(cmd)
	cmd.Flags().StringVarP(&path, "output", "o", defaultConfigName, "config file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

// effectiveConfig encodes opts with every default filled in.
func effectiveConfig(opts pipeline.Options) ([]byte, error) {
	opts.SetDefaults()
	return pipeline.WriteConfig(opts)
}
