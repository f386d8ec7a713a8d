package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"loadhunt/internal"
	"loadhunt/internal/pipeline"
	"loadhunt/internal/util"
)

var (
	huntsTenant string
	huntsFile   string
)

var huntsImportCmd = &cobra.Command{
	Use:   "hunts:import",
	Short: "Import hunt plans from an xlsx sheet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(huntsTenant) == "" || strings.TrimSpace(huntsFile) == "" {
			return eris.New("--tenant and --file are required")
		}
		content, err := os.ReadFile(huntsFile)
		if err != nil {
			return eris.Wrapf(err, "read %s", huntsFile)
		}
		plans, err := pipeline.ParseHuntPlansXLSX(content, huntsTenant)
		if err != nil {
			return err
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		for _, plan := range plans {
			if _, err := a.DB.InsertHuntPlan(cmd.Context(), plan); err != nil {
				return err
			}
		}
		fmt.Printf("imported %d hunt plans for tenant %s\n", len(plans), huntsTenant)
		return nil
	},
}

var (
	mapMailbox string
	mapTenant  string
)

var mailboxMapCmd = &cobra.Command{
	Use:   "mailbox:map",
	Short: "Map a mailbox address to a tenant",
	RunE: func(cmd *cobra.Command, _ []string) error {
		mailbox := strings.ToLower(strings.TrimSpace(mapMailbox))
		if mailbox == "" || strings.TrimSpace(mapTenant) == "" {
			return eris.New("--mailbox and --tenant are required")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.DB.SetMailboxTenant(cmd.Context(), mailbox, mapTenant); err != nil {
			return err
		}
		fmt.Printf("mapped %s to tenant %s\n", mailbox, mapTenant)
		return nil
	},
}

var (
	hintDialect string
	hintField   string
	hintPattern string
	hintPrefix  string
	hintSuffix  string
	hintTenant  string
)

var hintAddCmd = &cobra.Command{
	Use:   "hint:add",
	Short: "Add a parser hint for a dialect field",
	Long:  "Stores a regex (first group wins) or a prefix/suffix pair used to fill a field the dialect parser missed. Without --tenant the hint is global.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dialect := internal.Dialect(strings.TrimSpace(hintDialect))
		if dialect != internal.DialectHotLoad && dialect != internal.DialectNetworkPost {
			return eris.Errorf("unknown dialect %q", hintDialect)
		}
		if !pipeline.HintableField(hintField) {
			return eris.Errorf("field %q cannot be hinted", hintField)
		}
		if hintPattern == "" && hintPrefix == "" {
			return eris.New("--pattern or --prefix is required")
		}

		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.DB.InsertHint(cmd.Context(), internal.ParserHint{
			TenantID:  util.NonEmpty(hintTenant),
			Dialect:   dialect,
			FieldName: hintField,
			Pattern:   hintPattern,
			Prefix:    hintPrefix,
			Suffix:    hintSuffix,
			Active:    true,
		})
		if err != nil {
			return err
		}
		fmt.Printf("added hint %d for %s.%s\n", id, dialect, hintField)
		return nil
	},
}

func init() {
	huntsImportCmd.Flags().StringVar(&huntsTenant, "tenant", "", "tenant id")
	huntsImportCmd.Flags().StringVar(&huntsFile, "file", "", "xlsx file with hunt plans")

	mailboxMapCmd.Flags().StringVar(&mapMailbox, "mailbox", "", "mailbox address")
	mailboxMapCmd.Flags().StringVar(&mapTenant, "tenant", "", "tenant id")

	hintAddCmd.Flags().StringVar(&hintDialect, "dialect", string(internal.DialectHotLoad), "hot_load|network_post")
	hintAddCmd.Flags().StringVar(&hintField, "field", "", "field name, e.g. loaded_miles")
	hintAddCmd.Flags().StringVar(&hintPattern, "pattern", "", "regular expression")
	hintAddCmd.Flags().StringVar(&hintPrefix, "prefix", "", "text before the value")
	hintAddCmd.Flags().StringVar(&hintSuffix, "suffix", "", "text after the value")
	hintAddCmd.Flags().StringVar(&hintTenant, "tenant", "", "tenant id (empty for a global hint)")
}
