package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var rematchShipment int64

var rematchCmd = &cobra.Command{
	Use:   "rematch",
	Short: "Re-run hunt matching for a stored shipment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if rematchShipment <= 0 {
			return eris.New("--shipment is required")
		}
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		rec, err := a.DB.GetShipment(ctx, rematchShipment)
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("shipment %d not found", rematchShipment)
		}

		report, err := a.Ingest.Matcher().Match(ctx, *rec)
		if err != nil {
			return err
		}
		fmt.Printf("rematch shipment=%d prefiltered=%d evaluated=%d created=%d\n",
			rec.ID, report.PrefilterPassed, report.Evaluated, report.Created)
		return nil
	},
}

func init() {
	rematchCmd.Flags().Int64Var(&rematchShipment, "shipment", 0, "shipment id")
}
