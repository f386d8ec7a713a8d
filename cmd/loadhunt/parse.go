package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"loadhunt/internal"
	"loadhunt/internal/pipeline"
)

var (
	parseFrom     string
	parseSubject  string
	parseHTMLFile string
	parseTextFile string
	parseDialect  string
)

var parseCmd = &cobra.Command{
	Use:   "parse",
	Short: "Dry-run the detector and parser over a saved message",
	RunE: func(*cobra.Command, []string) error {
		result, err := pipeline.NewDetector(cfg).ParseFromFiles(parseFrom, parseSubject, parseHTMLFile, parseTextFile,
			internal.Dialect(strings.TrimSpace(parseDialect)))
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseFrom, "from", "", "sender address")
	parseCmd.Flags().StringVar(&parseSubject, "subject", "", "subject line")
	parseCmd.Flags().StringVar(&parseHTMLFile, "html-file", "", "path to the HTML body")
	parseCmd.Flags().StringVar(&parseTextFile, "text-file", "", "path to the plain text body")
	parseCmd.Flags().StringVar(&parseDialect, "dialect", "", "force hot_load or network_post")
}
