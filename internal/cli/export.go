package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"clickerexam/internal/app"
	"clickerexam/internal/export"
	"clickerexam/internal/report"

	"github.com/spf13/cobra"
)

func newExportCmd(configPath *string) *cobra.Command {
	var (
		examID int64
		format string
		layout string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write an exam report as XLSX or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			if examID <= 0 {
				return fmt.Errorf("--exam is required")
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			l, err := export.ParseLayout(layout)
			if err != nil {
				return err
			}
			cfg, err := app.LoadConfigFile(*configPath)
			if err != nil {
				return err
			}

			backend, closeBackend, err := openBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer closeBackend()

			file, err := export.NewService(report.NewService(backend.Store)).Export(cmd.Context(), examID, f, l)
			if err != nil {
				return err
			}
			if output == "" {
				output = file.Name
			}
			if output == "-" {
				return writeAll(cmd.OutOrStdout(), file.Data)
			}
			if err := os.WriteFile(output, file.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			log.Printf("exported exam %d (%s, %s) to %s", examID, f, l, output)
			return nil
		},
	}
	cmd.Flags().Int64Var(&examID, "exam", 0, "exam id")
	cmd.Flags().StringVar(&format, "format", "xlsx", "xlsx or csv")
	cmd.Flags().StringVar(&layout, "layout", "default", "default, individual or by_question")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path, - for stdout (defaults to the generated file name)")
	return cmd
}

func writeAll(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}
