package pipeline

import (
	"strings"
	"time"

	"loadhunt/internal"
	"loadhunt/internal/util"
)

// ParsedShipment is the partial result of one extraction pass. A nil field
// means "not found"; Merge only ever fills nil fields.
type ParsedShipment struct {
	VehicleType       *string              `json:"vehicleType,omitempty"`
	OriginCity        *string              `json:"originCity,omitempty"`
	OriginState       *string              `json:"originState,omitempty"`
	OriginPostal      *string              `json:"originPostal,omitempty"`
	DestinationCity   *string              `json:"destinationCity,omitempty"`
	DestinationState  *string              `json:"destinationState,omitempty"`
	DestinationPostal *string              `json:"destinationPostal,omitempty"`
	Stops             []internal.Stop      `json:"stops,omitempty"`
	LoadedMiles       *float64             `json:"loadedMiles,omitempty"`
	Weight            *float64             `json:"weight,omitempty"`
	Pieces            *int                 `json:"pieces,omitempty"`
	Dimensions        *internal.Dimensions `json:"dimensions,omitempty"`
	PostedRate        *float64             `json:"postedRate,omitempty"`
	BrokerCompany     *string              `json:"brokerCompany,omitempty"`
	BrokerName        *string              `json:"brokerName,omitempty"`
	BrokerEmail       *string              `json:"brokerEmail,omitempty"`
	BrokerPhone       *string              `json:"brokerPhone,omitempty"`
	BrokerFax         *string              `json:"brokerFax,omitempty"`
	BrokerMC          *string              `json:"brokerMc,omitempty"`
	Notes             *string              `json:"notes,omitempty"`
	ExpiresAt         *time.Time           `json:"expiresAt,omitempty"`
}

func mergeString(dst **string, src *string) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

func mergeFloat(dst **float64, src *float64) {
	if *dst == nil && src != nil {
		*dst = src
	}
}

// Merge copies every field of other that is still unset on p.
func (p *ParsedShipment) Merge(other ParsedShipment) {
	mergeString(&p.VehicleType, other.VehicleType)
	mergeString(&p.OriginCity, other.OriginCity)
	mergeString(&p.OriginState, other.OriginState)
	mergeString(&p.OriginPostal, other.OriginPostal)
	mergeString(&p.DestinationCity, other.DestinationCity)
	mergeString(&p.DestinationState, other.DestinationState)
	mergeString(&p.DestinationPostal, other.DestinationPostal)
	if len(p.Stops) == 0 && len(other.Stops) > 0 {
		p.Stops = other.Stops
	}
	mergeFloat(&p.LoadedMiles, other.LoadedMiles)
	mergeFloat(&p.Weight, other.Weight)
	if p.Pieces == nil && other.Pieces != nil {
		p.Pieces = other.Pieces
	}
	if p.Dimensions == nil && other.Dimensions != nil {
		p.Dimensions = other.Dimensions
	}
	mergeFloat(&p.PostedRate, other.PostedRate)
	mergeString(&p.BrokerCompany, other.BrokerCompany)
	mergeString(&p.BrokerName, other.BrokerName)
	mergeString(&p.BrokerEmail, other.BrokerEmail)
	mergeString(&p.BrokerPhone, other.BrokerPhone)
	mergeString(&p.BrokerFax, other.BrokerFax)
	mergeString(&p.BrokerMC, other.BrokerMC)
	mergeString(&p.Notes, other.Notes)
	if p.ExpiresAt == nil && other.ExpiresAt != nil {
		p.ExpiresAt = other.ExpiresAt
	}
}

// fieldSetter fills one named field from a raw string. It reports false when
// the field is already set or the value does not parse.
type fieldSetter func(p *ParsedShipment, raw string) bool

func stringField(get func(p *ParsedShipment) **string) fieldSetter {
	return func(p *ParsedShipment, raw string) bool {
		dst := get(p)
		if *dst != nil {
			return false
		}
		v := util.NonEmpty(raw)
		if v == nil {
			return false
		}
		*dst = v
		return true
	}
}

func floatField(get func(p *ParsedShipment) **float64) fieldSetter {
	return func(p *ParsedShipment, raw string) bool {
		dst := get(p)
		if *dst != nil {
			return false
		}
		f, ok := util.ParseNumber(raw)
		if !ok {
			return false
		}
		*dst = &f
		return true
	}
}

// fieldSetters is keyed by the field names stored in parser_hints.fieldName.
var fieldSetters = map[string]fieldSetter{
	"vehicle_type":       stringField(func(p *ParsedShipment) **string { return &p.VehicleType }),
	"origin_city":        stringField(func(p *ParsedShipment) **string { return &p.OriginCity }),
	"origin_state":       stateField(func(p *ParsedShipment) **string { return &p.OriginState }),
	"origin_postal":      stringField(func(p *ParsedShipment) **string { return &p.OriginPostal }),
	"destination_city":   stringField(func(p *ParsedShipment) **string { return &p.DestinationCity }),
	"destination_state":  stateField(func(p *ParsedShipment) **string { return &p.DestinationState }),
	"destination_postal": stringField(func(p *ParsedShipment) **string { return &p.DestinationPostal }),
	"loaded_miles":       floatField(func(p *ParsedShipment) **float64 { return &p.LoadedMiles }),
	"weight":             floatField(func(p *ParsedShipment) **float64 { return &p.Weight }),
	"posted_rate":        floatField(func(p *ParsedShipment) **float64 { return &p.PostedRate }),
	"broker_company":     stringField(func(p *ParsedShipment) **string { return &p.BrokerCompany }),
	"broker_name":        stringField(func(p *ParsedShipment) **string { return &p.BrokerName }),
	"broker_email":       stringField(func(p *ParsedShipment) **string { return &p.BrokerEmail }),
	"broker_phone":       stringField(func(p *ParsedShipment) **string { return &p.BrokerPhone }),
	"broker_fax":         stringField(func(p *ParsedShipment) **string { return &p.BrokerFax }),
	"broker_mc":          stringField(func(p *ParsedShipment) **string { return &p.BrokerMC }),
	"notes":              stringField(func(p *ParsedShipment) **string { return &p.Notes }),
	"pieces": func(p *ParsedShipment, raw string) bool {
		if p.Pieces != nil {
			return false
		}
		n, ok := util.ParseInt(raw)
		if !ok {
			return false
		}
		p.Pieces = &n
		return true
	},
	"dimensions": func(p *ParsedShipment, raw string) bool {
		if p.Dimensions != nil {
			return false
		}
		d, ok := parseDimensions(raw)
		if !ok {
			return false
		}
		p.Dimensions = d
		return true
	},
	"expires_at": func(p *ParsedShipment, raw string) bool {
		if p.ExpiresAt != nil {
			return false
		}
		t := parseExpirationValue(raw)
		if t == nil {
			return false
		}
		p.ExpiresAt = t
		return true
	},
}

func stateField(get func(p *ParsedShipment) **string) fieldSetter {
	return func(p *ParsedShipment, raw string) bool {
		raw = strings.ToUpper(strings.TrimSpace(raw))
		if len(raw) != 2 {
			return false
		}
		return stringField(get)(p, raw)
	}
}

// HintableField reports whether name is a field a hint may fill.
func HintableField(name string) bool {
	_, ok := fieldSetters[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// SetField fills a field by its stored name. Unknown names are ignored.
func (p *ParsedShipment) SetField(name, raw string) bool {
	set, ok := fieldSetters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return false
	}
	return set(p, raw)
}

// FieldCount reports how many fields were extracted.
func (p *ParsedShipment) FieldCount() int {
	n := 0
	for _, set := range []bool{
		p.VehicleType != nil, p.OriginCity != nil, p.OriginState != nil, p.OriginPostal != nil,
		p.DestinationCity != nil, p.DestinationState != nil, p.DestinationPostal != nil,
		len(p.Stops) > 0, p.LoadedMiles != nil, p.Weight != nil, p.Pieces != nil,
		p.Dimensions != nil, p.PostedRate != nil, p.BrokerCompany != nil, p.BrokerName != nil,
		p.BrokerEmail != nil, p.BrokerPhone != nil, p.BrokerFax != nil, p.BrokerMC != nil,
		p.Notes != nil, p.ExpiresAt != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// ApplyTo copies the parsed fields onto a shipment record.
func (p *ParsedShipment) ApplyTo(rec *internal.ShipmentRecord) {
	rec.VehicleType = p.VehicleType
	rec.OriginCity = p.OriginCity
	rec.OriginState = p.OriginState
	rec.OriginPostal = p.OriginPostal
	rec.DestinationCity = p.DestinationCity
	rec.DestinationState = p.DestinationState
	rec.DestinationPostal = p.DestinationPostal
	rec.Stops = p.Stops
	rec.HasMultipleStops = len(p.Stops) > 2
	rec.LoadedMiles = p.LoadedMiles
	rec.Weight = p.Weight
	rec.Pieces = p.Pieces
	rec.Dimensions = p.Dimensions
	rec.PostedRate = p.PostedRate
	rec.BrokerCompany = p.BrokerCompany
	rec.BrokerName = p.BrokerName
	rec.BrokerEmail = p.BrokerEmail
	rec.BrokerPhone = p.BrokerPhone
	rec.BrokerFax = p.BrokerFax
	rec.BrokerMC = p.BrokerMC
	rec.Notes = p.Notes
	rec.ExpiresAt = p.ExpiresAt
}
