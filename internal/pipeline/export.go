package pipeline

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

// ExportRowsToXLSX writes shipments and their matches for dispatcher review.
func ExportRowsToXLSX(rows []internal.ExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"shipment_id", "message_id", "dialect", "received_at", "vehicle_type",
		"origin", "destination", "loaded_miles", "weight", "posted_rate",
		"broker_company", "broker_mc", "expires_at",
		"hunt_plan_id", "hunt_vehicle_id", "match_distance_mi", "match_status",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.ShipmentID)
		set(2, row.MessageID)
		set(3, row.Dialect)
		set(4, row.ShipmentReceived.UTC().Format(time.RFC3339))
		set(5, util.Deref(row.VehicleType))
		set(6, row.Origin)
		set(7, row.Destination)
		set(8, derefFloat(row.LoadedMiles))
		set(9, derefFloat(row.Weight))
		set(10, derefFloat(row.PostedRate))
		set(11, util.Deref(row.BrokerCompany))
		set(12, util.Deref(row.BrokerMC))
		set(13, derefTime(row.ExpiresAt))
		set(14, derefInt64(row.HuntPlanID))
		set(15, util.Deref(row.HuntVehicleID))
		set(16, derefInt(row.MatchDistance))
		set(17, util.Deref(row.MatchStatus))
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return eris.Wrap(err, "export: create output dir")
	}
	if err := f.SaveAs(outputPath); err != nil {
		return eris.Wrapf(err, "export: save %s", outputPath)
	}
	return nil
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefInt64(v *int64) any {
	if v == nil {
		return ""
	}
	return *v
}

func derefTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.UTC().Format(time.RFC3339)
}
