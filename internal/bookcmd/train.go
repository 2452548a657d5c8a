package bookcmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// NewTrainCmd creates the train command
func NewTrainCmd() *cobra.Command {
	var holdout float64
	var outputJSON string
	var outputYAML string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the rating model and report on it",
		Long: `Fit the rating model on every rated book of the master dataset and print a
summary.

The training-set fit is reported as such. Pass --holdout to also evaluate on a
seeded held-out split, which is the number to trust.`,
		Example: `  # Fit and summarize
  bookscore train

  # Hold out 20% of the rated books and save reports
  bookscore train --holdout 0.2 --output-json train.json --output-yaml train.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, svc, err := setup(cmd, false)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("holdout") {
				holdout = cfg.Model.Holdout
			}
			if holdout < 0 || holdout >= 1 {
				return fmt.Errorf("--holdout must be in [0, 1), got %v", holdout)
			}

			return executeTrain(cmd.OutOrStdout(), svc, holdout, outputJSON, outputYAML)
		},
	}

	cmd.Flags().Float64Var(&holdout, "holdout", 0, "Fraction of rated books held out for evaluation")
	cmd.Flags().StringVar(&outputJSON, "output-json", "", "Path to save the report as JSON")
	cmd.Flags().StringVar(&outputYAML, "output-yaml", "", "Path to save the report as YAML")

	return cmd
}

func executeTrain(out io.Writer, svc *workflow.Service, holdout float64, outputJSON, outputYAML string) error {
	report, err := svc.Train(holdout)
	if err != nil {
		return err
	}

	report.PrintSummary(out)

	if outputJSON != "" {
		if err := report.SaveToJSON(outputJSON); err != nil {
			return err
		}
		slog.Info("Saved training report", "path", outputJSON)
	}
	if outputYAML != "" {
		if err := report.SaveToYAML(outputYAML); err != nil {
			return err
		}
		slog.Info("Saved training report", "path", outputYAML)
	}

	return nil
}
