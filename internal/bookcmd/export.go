package bookcmd

import (
	"context"
	"fmt"
	"io"

	"github.com/lehigh-university-libraries/bookscore/internal/export"
	"github.com/lehigh-university-libraries/bookscore/internal/workflow"
	"github.com/spf13/cobra"
)

// NewExportCmd creates the export command
func NewExportCmd() *cobra.Command {
	var outputPath string
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the master dataset to Parquet or SQLite",
		Long: `Write the master dataset to a Parquet file or a SQLite database with a books
table. The format follows the file extension unless --format is given.`,
		Example: `  # Parquet
  bookscore export --output master.parquet

  # SQLite
  bookscore export --output master.db --format sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := export.Format(format)
			if format == "" {
				var err error
				if f, err = export.FormatFromPath(outputPath); err != nil {
					return err
				}
			}

			_, svc, err := setup(cmd, false)
			if err != nil {
				return err
			}

			return executeExport(cmd.Context(), cmd.OutOrStdout(), svc, outputPath, f)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (required)")
	cmd.Flags().StringVar(&format, "format", "", "Output format (parquet or sqlite)")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func executeExport(ctx context.Context, out io.Writer, svc *workflow.Service, outputPath string, format export.Format) error {
	ds, err := svc.LoadMaster()
	if err != nil {
		return err
	}

	if err := export.Write(ctx, outputPath, format, ds.Books); err != nil {
		return err
	}

	fmt.Fprintf(out, "Exported %d books to %s (%s)\n", ds.Len(), outputPath, format)
	return nil
}
