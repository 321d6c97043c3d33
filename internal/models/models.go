package models

import "time"

type Tenant struct {
	ID          int
	CountryCode string
	PartyID     string
}

// Endpoint is a partner-registered module URL.
type Endpoint struct {
	Module string `json:"module"`
	Role   string `json:"role"`
	URL    string `json:"url"`
}

const (
	RoleSender   = "SENDER"
	RoleReceiver = "RECEIVER"
)

type TenantPartner struct {
	ID            int
	TenantID      int
	CountryCode   string
	PartyID       string
	TokenHash     string
	OutboundToken string
	Endpoints     []Endpoint
	Tenant        *Tenant
}

func (p *TenantPartner) Endpoint(module, role string) (string, bool) {
	for _, e := range p.Endpoints {
		if e.Module == module && e.Role == role {
			return e.URL, true
		}
	}
	return "", false
}

type Location struct {
	ID         int       `json:"id"`
	TenantID   int       `json:"tenantId"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	PostalCode string    `json:"postalCode"`
	Country    string    `json:"country"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	TimeZone   string    `json:"timeZone"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ChargingStation struct {
	ID         string    `json:"id"`
	TenantID   int       `json:"tenantId"`
	LocationID int       `json:"locationId"`
	IsOnline   bool      `json:"isOnline"`
	Vendor     string    `json:"vendor"`
	Model      string    `json:"model"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Evse struct {
	ID                int       `json:"id"`
	TenantID          int       `json:"tenantId"`
	StationID         string    `json:"stationId"`
	EvseUID           string    `json:"evseUid"`
	StationEvseID     int       `json:"stationEvseId"`
	PhysicalReference string    `json:"physicalReference"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Connector statuses as reported by the station.
const (
	ConnectorAvailable     = "Available"
	ConnectorOccupied      = "Occupied"
	ConnectorPreparing     = "Preparing"
	ConnectorCharging      = "Charging"
	ConnectorSuspendedEVSE = "SuspendedEVSE"
	ConnectorSuspendedEV   = "SuspendedEV"
	ConnectorFinishing     = "Finishing"
	ConnectorReserved      = "Reserved"
	ConnectorUnavailable   = "Unavailable"
	ConnectorFaulted       = "Faulted"
)

type Connector struct {
	ID                 int       `json:"id"`
	TenantID           int       `json:"tenantId"`
	StationID          string    `json:"stationId"`
	EvseID             int       `json:"evseId"`
	ConnectorUID       string    `json:"connectorUid"`
	StationConnectorID int       `json:"stationConnectorId"`
	Status             string    `json:"status"`
	Type               string    `json:"type"`
	Format             string    `json:"format"`
	PowerType          string    `json:"powerType"`
	MaxVoltage         int       `json:"maxVoltage"`
	MaxAmperage        int       `json:"maxAmperage"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// StatusEvent is one connector status notification.
type StatusEvent struct {
	Timestamp time.Time
	Status    string
}

type SampledValue struct {
	Measurand string  `json:"measurand"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
}

type MeterValue struct {
	ID                    int            `json:"id"`
	TenantID              int            `json:"tenantId"`
	TransactionDatabaseID *int           `json:"transactionDatabaseId,omitempty"`
	TariffID              *int           `json:"tariffId,omitempty"`
	Timestamp             time.Time      `json:"timestamp"`
	SampledValues         []SampledValue `json:"sampledValue"`
}

type Transaction struct {
	ID                     int          `json:"id"`
	TenantID               int          `json:"tenantId"`
	TransactionID          string       `json:"transactionId"`
	StationID              string       `json:"stationId"`
	EvseID                 *int         `json:"evseId,omitempty"`
	ConnectorID            *int         `json:"connectorId,omitempty"`
	LocationID             *int         `json:"locationId,omitempty"`
	IsActive               bool         `json:"isActive"`
	StartTime              time.Time    `json:"startTime"`
	EndTime                *time.Time   `json:"endTime,omitempty"`
	TotalKwh               float64      `json:"totalKwh"`
	IDToken                string       `json:"idToken"`
	IDTokenType            string       `json:"idTokenType"`
	AuthorizationReference *string      `json:"authorizationReference,omitempty"`
	TariffID               *int         `json:"tariffId,omitempty"`
	MeterValues            []MeterValue `json:"meterValues,omitempty"`
	UpdatedAt              time.Time    `json:"updatedAt"`
}

type Tariff struct {
	ID             int       `json:"id"`
	TenantID       int       `json:"tenantId"`
	Currency       string    `json:"currency"`
	PricePerKwh    float64   `json:"pricePerKwh"`
	PricePerMinute float64   `json:"pricePerMinute"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Charge methods of the billing table.
const (
	ChargePerKwh    = "PER_KWH"
	ChargePerMinute = "PER_MINUTE"
	ChargeFlatRate  = "FLAT_RATE"
	ChargeFree      = "FREE"
)

type BillingConfig struct {
	LocationID        int
	ChargeMethod      string
	PricePerKwh       float64
	PricePerMinute    float64
	FlatRate          float64
	IdleRatePerMinute float64
	Currency          string
}

type CDR struct {
	ID                     string
	TenantID               int
	TransactionID          string
	TransactionDatabaseID  int
	LocationID             *int
	StationID              string
	EvseID                 *int
	ConnectorID            *int
	IDToken                string
	AuthorizationReference *string
	StartTime              time.Time
	EndTime                time.Time
	TotalEnergy            float64
	TotalTime              time.Duration
	TotalParkingTime       time.Duration
	TotalCost              float64
	Currency               string
	CreatedAt              time.Time
}

type CommandRecord struct {
	ID            string
	TenantID      int
	PartnerID     int
	StationID     string
	Type          string
	CorrelationID string
	PayloadJSON   []byte
	Status        string
	ResponseJSON  []byte
	Error         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
