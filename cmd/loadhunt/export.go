package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"loadhunt/internal/pipeline"
)

var (
	exportTenant string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a tenant's shipments and matches to xlsx",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(exportTenant) == "" {
			return eris.New("--tenant is required")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.DB.ExportRows(cmd.Context(), exportTenant)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return eris.Errorf("no shipments for tenant %s", exportTenant)
		}

		out := exportOut
		if out == "" {
			out = filepath.Join(cfg.OutputDir, fmt.Sprintf("%s_%s.xlsx", exportTenant, time.Now().UTC().Format("20060102_150405")))
		}
		if err := pipeline.ExportRowsToXLSX(rows, out); err != nil {
			return err
		}
		fmt.Printf("exported %d rows to %s\n", len(rows), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTenant, "tenant", "", "tenant id")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output xlsx path (default OUTPUT_DIR/<tenant>_<time>.xlsx)")
}
