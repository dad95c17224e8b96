package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/rostermap/pkg/dataset"
	"github.com/matzehuels/rostermap/pkg/pipeline"
)

// maxTextWidth truncates transaction text in the steps table.
const maxTextWidth = 60

func (c *CLI) stepsCommand() *cobra.Command {
	var flags optionFlags

	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the narrative steps",
		Long:  `List every step of the dataset with its date, affected teams and transactions.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := c.loadOptions(cmd, &flags)
			if err != nil {
				return err
			}
			if err := opts.Validate(); err != nil {
				return err
			}
			loaded, err := pipeline.Load(cmd.Context(), opts)
			if err != nil {
				return err
			}
			ds := loaded.Dataset

			fmt.Println(StyleTitle.Render(fmt.Sprintf("%d steps", len(ds.Steps))) + StyleDim.Render(
				fmt.Sprintf(" · %d members · %d territories", len(ds.Members), len(ds.Territories))))
			fmt.Println(stepsTable(ds))
			if len(ds.Steps) > 0 {
				fmt.Println()
				printNextStep("Render the first step", appName+" render -s 0 -p 0.5")
			}
			return nil
		},
	}
	flags.registerData(cmd)
	return cmd
}

// stepsTable lays out one row per step.
func stepsTable(ds *dataset.Dataset) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(StyleDim).
		Headers("#", "Date", "Teams", "Moves", "Transactions").
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return styleHeader.Padding(0, 1)
			case col == 0 || col == 3:
				return s.Inherit(StyleNumber)
			}
			return s
		})

	for _, step := range ds.Steps {
		var texts []string
		for _, tx := range step.Transactions {
			texts = append(texts, truncate(tx.Text, maxTextWidth))
		}
		t.Row(
			fmt.Sprint(step.Index),
			step.Date,
			strings.Join(step.Affected(), ", "),
			fmt.Sprint(len(step.Moves())),
			strings.Join(texts, "\n"),
		)
	}
	return t.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
