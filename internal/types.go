package internal

import "time"

type Dialect string

const (
	DialectHotLoad     Dialect = "hot_load"
	DialectNetworkPost Dialect = "network_post"
)

type ShipmentStatus string

const (
	StatusNew     ShipmentStatus = "new"
	StatusMissed  ShipmentStatus = "missed"
	StatusSkipped ShipmentStatus = "skipped"
)

type StopType string

const (
	StopPickup   StopType = "pickup"
	StopDelivery StopType = "delivery"
)

type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// InboundMessage is one provider message, consumed once by the pipeline.
type InboundMessage struct {
	Provider    string
	MessageID   string
	ThreadID    string
	FromAddress string
	FromName    string
	Subject     string
	ReceivedAt  time.Time
	HTMLBody    string
	TextBody    string
	Attachments []Attachment
}

type Stop struct {
	Sequence    int        `json:"sequence"`
	Type        StopType   `json:"type"`
	City        string     `json:"city"`
	State       string     `json:"state"`
	PostalCode  string     `json:"postalCode,omitempty"`
	Country     string     `json:"country,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	Timezone    string     `json:"timezone,omitempty"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
}

type ShipmentRecord struct {
	ID                int64
	TenantID          string
	MessageID         string
	ThreadID          string
	Dialect           Dialect
	Status            ShipmentStatus
	Subject           string
	SenderAddress     string
	ReceivedAt        time.Time
	VehicleType       *string
	OriginCity        *string
	OriginState       *string
	OriginPostal      *string
	DestinationCity   *string
	DestinationState  *string
	DestinationPostal *string
	Stops             []Stop
	HasMultipleStops  bool
	LoadedMiles       *float64
	Weight            *float64
	Pieces            *int
	Dimensions        *Dimensions
	PostedRate        *float64
	BrokerCompany     *string
	BrokerName        *string
	BrokerEmail       *string
	BrokerPhone       *string
	BrokerFax         *string
	BrokerMC          *string
	Notes             *string
	ExpiresAt         *time.Time
	Pickup            *Coordinates
	Delivery          *Coordinates
	CreatedAt         time.Time
}

type GeocodeEntry struct {
	Key          string
	Latitude     float64
	Longitude    float64
	City         string
	State        string
	HitCount     int
	CreatedMonth string
}

type HuntPlan struct {
	ID                int64
	TenantID          string
	Enabled           bool
	VehicleID         string
	Center            Coordinates
	PickupRadiusMiles float64
	VehicleSizes      []string
	MaxPayload        *float64
	FloorShipmentID   *int64
}

type LoadHuntMatch struct {
	ID            int64
	ShipmentID    int64
	HuntPlanID    int64
	DistanceMiles int
	Active        bool
	Status        string
	MatchedAt     time.Time
}

type Customer struct {
	ID          int64
	TenantID    string
	Name        string
	ContactName *string
	Email       *string
	Phone       *string
	MCNumber    *string
	Status      string
}

type Integration struct {
	ID       int64
	TenantID string
	Provider string
	Enabled  bool
	Mailbox  string
}

type ParserHint struct {
	ID        int64
	TenantID  *string
	Dialect   Dialect
	FieldName string
	Pattern   string
	Prefix    string
	Suffix    string
	Active    bool
}

type IngestionRun struct {
	TraceID     string
	Mailbox     string
	TenantID    string
	Fetched     int
	Ingested    int
	Duplicates  int
	Failed      int
	AbortReason string
	StartedAt   time.Time
	FinishedAt  time.Time
}

type ExportRow struct {
	ShipmentID       int64
	MessageID        string
	Dialect          string
	VehicleType      *string
	Origin           string
	Destination      string
	LoadedMiles      *float64
	Weight           *float64
	PostedRate       *float64
	BrokerCompany    *string
	BrokerMC         *string
	ExpiresAt        *time.Time
	HuntPlanID       *int64
	HuntVehicleID    *string
	MatchDistance    *int
	MatchStatus      *string
	ShipmentReceived time.Time
}
