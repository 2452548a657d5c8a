package bookcmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/lehigh-university-libraries/bookscore/internal/predict"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// NewPredictCmd creates the predict command
func NewPredictCmd() *cobra.Command {
	var inputPath string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict ratings for unrated books",
		Long: `Predict the rating of books with a model fitted on the rated books of the
master dataset.

Without --input, every unrated master row gets a Predicted Score and the master
dataset is saved. With --input, a table in the master schema is rated and
written to --output with a Predicted Score column; the master dataset is left
alone.`,
		Example: `  # Fill Predicted Score for unrated books in the master dataset
  bookscore predict

  # Rate another table
  bookscore predict --input candidates.csv --output candidates_predicted.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (inputPath == "") != (outputPath == "") {
				return fmt.Errorf("--input and --output must be used together")
			}

			_, svc, err := setup(cmd, false)
			if err != nil {
				return err
			}

			return executePredict(cmd.OutOrStdout(), svc, inputPath, outputPath)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "Table of books to rate")
	cmd.Flags().StringVar(&outputPath, "output", "", "Path to write the rated table")

	return cmd
}

func executePredict(out io.Writer, svc *workflow.Service, inputPath, outputPath string) error {
	var predictions []predict.Prediction
	var err error

	if inputPath != "" {
		predictions, err = svc.PredictFile(inputPath, outputPath)
	} else {
		predictions, err = svc.PredictUnrated()
	}
	if err != nil {
		return err
	}

	if len(predictions) == 0 {
		fmt.Fprintln(out, "No unrated books to predict")
		return nil
	}

	printPredictions(out, predictions)
	return nil
}

func printPredictions(out io.Writer, predictions []predict.Prediction) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOK TITLE\tPREDICTED SCORE\tPROBABILITY\tUNSEEN LABELS")
	for _, p := range predictions {
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%d\n", p.Title, p.Score, p.Probability, len(p.Unseen))
	}
	tw.Flush()
}
