package pipeline

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

type huntColumns struct {
	vehicle, lat, lng, radius, sizes, payload, floor, enabled int
}

// ParseHuntPlansXLSX reads hunt plans from the first sheet. The first row
// must be a header naming at least vehicle, lat, lng and radius columns.
func ParseHuntPlansXLSX(content []byte, tenantID string) ([]internal.HuntPlan, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, eris.Wrap(err, "hunts import: open xlsx")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, eris.New("hunts import: workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, eris.Wrap(err, "hunts import: read rows")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, ok := inferHuntColumns(rows[0])
	if !ok {
		return nil, eris.New("hunts import: header needs vehicle, lat, lng and radius columns")
	}

	out := []internal.HuntPlan{}
	for i, row := range rows[1:] {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = normalizeSpaces(c)
		}
		if strings.Join(cells, "") == "" {
			continue
		}

		lat, errLat := strconv.ParseFloat(pickCell(cells, cols.lat), 64)
		lng, errLng := strconv.ParseFloat(pickCell(cells, cols.lng), 64)
		radius, okRadius := util.ParseNumber(pickCell(cells, cols.radius))
		if errLat != nil || errLng != nil || !okRadius {
			return nil, eris.Errorf("hunts import: row %d needs numeric lat, lng and radius", i+2)
		}

		plan := internal.HuntPlan{
			TenantID:          tenantID,
			Enabled:           true,
			VehicleID:         pickCell(cells, cols.vehicle),
			Center:            internal.Coordinates{Latitude: lat, Longitude: lng},
			PickupRadiusMiles: radius,
			VehicleSizes:      splitTags(pickCell(cells, cols.sizes)),
		}
		if v, ok := util.ParseNumber(pickCell(cells, cols.payload)); ok {
			plan.MaxPayload = &v
		}
		if v, err := strconv.ParseInt(pickCell(cells, cols.floor), 10, 64); err == nil {
			plan.FloorShipmentID = &v
		}
		if raw := strings.ToLower(pickCell(cells, cols.enabled)); raw != "" {
			plan.Enabled = raw == "1" || raw == "true" || raw == "yes" || raw == "y"
		}
		out = append(out, plan)
	}
	return out, nil
}

func inferHuntColumns(header []string) (huntColumns, bool) {
	cols := huntColumns{-1, -1, -1, -1, -1, -1, -1, -1}
	for i, raw := range header {
		h := util.NormalizeToken(raw)
		switch {
		case strings.Contains(h, "lat"):
			setOnce(&cols.lat, i)
		case strings.Contains(h, "lng") || strings.Contains(h, "lon"):
			setOnce(&cols.lng, i)
		case strings.Contains(h, "radius"):
			setOnce(&cols.radius, i)
		case strings.Contains(h, "size") || strings.Contains(h, "tag"):
			setOnce(&cols.sizes, i)
		case strings.Contains(h, "payload") || strings.Contains(h, "capacity"):
			setOnce(&cols.payload, i)
		case strings.Contains(h, "floor"):
			setOnce(&cols.floor, i)
		case strings.Contains(h, "enabled") || h == "active":
			setOnce(&cols.enabled, i)
		case strings.Contains(h, "vehicle") || strings.Contains(h, "truck") || strings.Contains(h, "unit"):
			setOnce(&cols.vehicle, i)
		}
	}
	return cols, cols.vehicle >= 0 && cols.lat >= 0 && cols.lng >= 0 && cols.radius >= 0
}

func splitTags(raw string) []string {
	out := []string{}
	for _, p := range strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '/' }) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
