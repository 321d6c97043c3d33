package broadcast

import (
	"strconv"
	"strings"
	"time"

	"ocpi/internal/models"
	"ocpi/internal/tokens"
)

// EVSE statuses on the roaming side.
const (
	EvseAvailable   = "AVAILABLE"
	EvseBlocked     = "BLOCKED"
	EvseCharging    = "CHARGING"
	EvseInoperative = "INOPERATIVE"
	EvseOutOfOrder  = "OUTOFORDER"
	EvseReserved    = "RESERVED"
	EvseUnknown     = "UNKNOWN"
)

var evsePriority = map[string]int{
	EvseCharging:    7,
	EvseReserved:    6,
	EvseAvailable:   5,
	EvseBlocked:     4,
	EvseInoperative: 3,
	EvseOutOfOrder:  2,
	EvseUnknown:     1,
}

// EvseStatus maps one connector status to its roaming EVSE status.
func EvseStatus(connectorStatus string) string {
	switch connectorStatus {
	case models.ConnectorAvailable:
		return EvseAvailable
	case models.ConnectorOccupied, models.ConnectorPreparing, models.ConnectorCharging,
		models.ConnectorSuspendedEV, models.ConnectorSuspendedEVSE, models.ConnectorFinishing:
		return EvseCharging
	case models.ConnectorReserved:
		return EvseReserved
	case models.ConnectorUnavailable:
		return EvseInoperative
	case models.ConnectorFaulted:
		return EvseOutOfOrder
	default:
		return EvseUnknown
	}
}

// AggregateEvseStatus folds the statuses of all connectors of an EVSE into
// one. An EVSE in use by any connector is CHARGING; no connectors is UNKNOWN.
func AggregateEvseStatus(connectorStatuses []string) string {
	best := EvseUnknown
	for _, s := range connectorStatuses {
		if st := EvseStatus(s); evsePriority[st] > evsePriority[best] {
			best = st
		}
	}
	return best
}

type GeoLocation struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
}

type Connector struct {
	ID          string    `json:"id"`
	Standard    string    `json:"standard"`
	Format      string    `json:"format"`
	PowerType   string    `json:"power_type"`
	MaxVoltage  int       `json:"max_voltage"`
	MaxAmperage int       `json:"max_amperage"`
	LastUpdated time.Time `json:"last_updated"`
}

type Evse struct {
	UID               string      `json:"uid"`
	EvseID            string      `json:"evse_id,omitempty"`
	Status            string      `json:"status"`
	PhysicalReference string      `json:"physical_reference,omitempty"`
	Connectors        []Connector `json:"connectors"`
	LastUpdated       time.Time   `json:"last_updated"`
}

type EvseStatusPatch struct {
	Status      string    `json:"status"`
	LastUpdated time.Time `json:"last_updated"`
}

type Location struct {
	CountryCode string      `json:"country_code"`
	PartyID     string      `json:"party_id"`
	ID          string      `json:"id"`
	Publish     bool        `json:"publish"`
	Name        string      `json:"name,omitempty"`
	Address     string      `json:"address"`
	City        string      `json:"city"`
	PostalCode  string      `json:"postal_code,omitempty"`
	Country     string      `json:"country"`
	Coordinates GeoLocation `json:"coordinates"`
	TimeZone    string      `json:"time_zone"`
	Evses       []Evse      `json:"evses,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
}

type CdrToken struct {
	CountryCode string `json:"country_code"`
	PartyID     string `json:"party_id"`
	UID         string `json:"uid"`
	Type        string `json:"type"`
	ContractID  string `json:"contract_id"`
}

type CdrDimension struct {
	Type   string  `json:"type"`
	Volume float64 `json:"volume"`
}

type ChargingPeriod struct {
	StartDateTime time.Time      `json:"start_date_time"`
	Dimensions    []CdrDimension `json:"dimensions"`
	TariffID      string         `json:"tariff_id,omitempty"`
}

type Session struct {
	CountryCode            string           `json:"country_code"`
	PartyID                string           `json:"party_id"`
	ID                     string           `json:"id"`
	StartDateTime          time.Time        `json:"start_date_time"`
	EndDateTime            *time.Time       `json:"end_date_time,omitempty"`
	Kwh                    float64          `json:"kwh"`
	CdrToken               CdrToken         `json:"cdr_token"`
	AuthMethod             string           `json:"auth_method"`
	AuthorizationReference *string          `json:"authorization_reference,omitempty"`
	LocationID             string           `json:"location_id"`
	EvseUID                string           `json:"evse_uid"`
	ConnectorID            string           `json:"connector_id"`
	Currency               string           `json:"currency"`
	ChargingPeriods        []ChargingPeriod `json:"charging_periods,omitempty"`
	Status                 string           `json:"status"`
	LastUpdated            time.Time        `json:"last_updated"`
}

type SessionPatch struct {
	Kwh             *float64         `json:"kwh,omitempty"`
	EndDateTime     *time.Time       `json:"end_date_time,omitempty"`
	Status          string           `json:"status,omitempty"`
	ChargingPeriods []ChargingPeriod `json:"charging_periods,omitempty"`
	LastUpdated     time.Time        `json:"last_updated"`
}

type Price struct {
	ExclVat float64 `json:"excl_vat"`
}

type CdrLocation struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name,omitempty"`
	Address            string      `json:"address"`
	City               string      `json:"city"`
	PostalCode         string      `json:"postal_code,omitempty"`
	Country            string      `json:"country"`
	Coordinates        GeoLocation `json:"coordinates"`
	EvseUID            string      `json:"evse_uid"`
	EvseID             string      `json:"evse_id"`
	ConnectorID        string      `json:"connector_id"`
	ConnectorStandard  string      `json:"connector_standard,omitempty"`
	ConnectorFormat    string      `json:"connector_format,omitempty"`
	ConnectorPowerType string      `json:"connector_power_type,omitempty"`
}

type Cdr struct {
	CountryCode            string      `json:"country_code"`
	PartyID                string      `json:"party_id"`
	ID                     string      `json:"id"`
	StartDateTime          time.Time   `json:"start_date_time"`
	EndDateTime            time.Time   `json:"end_date_time"`
	SessionID              string      `json:"session_id"`
	CdrToken               CdrToken    `json:"cdr_token"`
	AuthMethod             string      `json:"auth_method"`
	AuthorizationReference *string     `json:"authorization_reference,omitempty"`
	CdrLocation            CdrLocation `json:"cdr_location"`
	Currency               string      `json:"currency"`
	TotalCost              Price       `json:"total_cost"`
	TotalEnergy            float64     `json:"total_energy"`
	TotalTime              float64     `json:"total_time"`
	TotalParkingTime       float64     `json:"total_parking_time,omitempty"`
	LastUpdated            time.Time   `json:"last_updated"`
}

// Context resolved around a transaction before mapping it.
type sessionContext struct {
	tenant    *models.Tenant
	auth      *models.Authorization
	partner   *models.TenantPartner
	location  *models.Location
	evse      *models.Evse
	connector *models.Connector
	currency  string
}

func coordinates(lat, lon float64) GeoLocation {
	return GeoLocation{
		Latitude:  strconv.FormatFloat(lat, 'f', 6, 64),
		Longitude: strconv.FormatFloat(lon, 'f', 6, 64),
	}
}

func ToConnector(c models.Connector) Connector {
	return Connector{
		ID:          c.ConnectorUID,
		Standard:    c.Type,
		Format:      c.Format,
		PowerType:   c.PowerType,
		MaxVoltage:  c.MaxVoltage,
		MaxAmperage: c.MaxAmperage,
		LastUpdated: c.UpdatedAt,
	}
}

// ToEvse maps an EVSE. An offline station reports its EVSEs as UNKNOWN.
func ToEvse(e models.Evse, station *models.ChargingStation, connectors []models.Connector) Evse {
	out := Evse{
		UID:               e.EvseUID,
		EvseID:            e.EvseUID,
		PhysicalReference: e.PhysicalReference,
		Connectors:        make([]Connector, 0, len(connectors)),
		LastUpdated:       e.UpdatedAt,
	}
	statuses := make([]string, 0, len(connectors))
	for _, c := range connectors {
		out.Connectors = append(out.Connectors, ToConnector(c))
		statuses = append(statuses, c.Status)
		if c.UpdatedAt.After(out.LastUpdated) {
			out.LastUpdated = c.UpdatedAt
		}
	}
	out.Status = AggregateEvseStatus(statuses)
	if station != nil && !station.IsOnline {
		out.Status = EvseUnknown
	}
	return out
}

func ToLocation(tenant *models.Tenant, l models.Location, evses []Evse) Location {
	return Location{
		CountryCode: tenant.CountryCode,
		PartyID:     tenant.PartyID,
		ID:          strconv.Itoa(l.ID),
		Publish:     true,
		Name:        l.Name,
		Address:     l.Address,
		City:        l.City,
		PostalCode:  l.PostalCode,
		Country:     l.Country,
		Coordinates: coordinates(l.Latitude, l.Longitude),
		TimeZone:    l.TimeZone,
		Evses:       evses,
		LastUpdated: l.UpdatedAt,
	}
}

func cdrToken(auth *models.Authorization, partner *models.TenantPartner) CdrToken {
	t := tokens.ToToken(auth, partner)
	contract := t.ContractID
	if contract == "" {
		contract = t.UID
	}
	return CdrToken{
		CountryCode: t.CountryCode,
		PartyID:     t.PartyID,
		UID:         t.UID,
		Type:        string(t.Type),
		ContractID:  contract,
	}
}

func authMethod(tx *models.Transaction) string {
	if tx.AuthorizationReference != nil && *tx.AuthorizationReference != "" {
		return "COMMAND"
	}
	return "AUTH_REQUEST"
}

func sessionStatus(tx *models.Transaction) string {
	if tx.IsActive {
		return "ACTIVE"
	}
	return "COMPLETED"
}

func ToSession(sc sessionContext, tx *models.Transaction) Session {
	s := Session{
		CountryCode:            sc.tenant.CountryCode,
		PartyID:                sc.tenant.PartyID,
		ID:                     tx.TransactionID,
		StartDateTime:          tx.StartTime,
		EndDateTime:            tx.EndTime,
		Kwh:                    tx.TotalKwh,
		CdrToken:               cdrToken(sc.auth, sc.partner),
		AuthMethod:             authMethod(tx),
		AuthorizationReference: tx.AuthorizationReference,
		Currency:               sc.currency,
		Status:                 sessionStatus(tx),
		LastUpdated:            tx.UpdatedAt,
	}
	if sc.location != nil {
		s.LocationID = strconv.Itoa(sc.location.ID)
	}
	if sc.evse != nil {
		s.EvseUID = sc.evse.EvseUID
	}
	if sc.connector != nil {
		s.ConnectorID = sc.connector.ConnectorUID
	}
	for _, mv := range tx.MeterValues {
		if p, ok := ToChargingPeriod(mv); ok {
			s.ChargingPeriods = append(s.ChargingPeriods, p)
		}
	}
	return s
}

// ToChargingPeriod keeps the measurands partners understand. ok is false when
// none is present.
func ToChargingPeriod(mv models.MeterValue) (ChargingPeriod, bool) {
	p := ChargingPeriod{StartDateTime: mv.Timestamp}
	if mv.TariffID != nil {
		p.TariffID = strconv.Itoa(*mv.TariffID)
	}
	for _, sv := range mv.SampledValues {
		switch sv.Measurand {
		case "", "Energy.Active.Import.Register":
			v := sv.Value
			if strings.EqualFold(sv.Unit, "Wh") {
				v /= 1000
			}
			p.Dimensions = append(p.Dimensions, CdrDimension{Type: "ENERGY", Volume: v})
		case "Power.Active.Import":
			p.Dimensions = append(p.Dimensions, CdrDimension{Type: "MAX_POWER", Volume: sv.Value})
		case "Current.Import":
			p.Dimensions = append(p.Dimensions, CdrDimension{Type: "CURRENT", Volume: sv.Value})
		case "SoC":
			p.Dimensions = append(p.Dimensions, CdrDimension{Type: "STATE_OF_CHARGE", Volume: sv.Value})
		}
	}
	return p, len(p.Dimensions) > 0
}

func ToCdr(sc sessionContext, cdr *models.CDR) Cdr {
	out := Cdr{
		CountryCode:            sc.tenant.CountryCode,
		PartyID:                sc.tenant.PartyID,
		ID:                     cdr.ID,
		StartDateTime:          cdr.StartTime,
		EndDateTime:            cdr.EndTime,
		SessionID:              cdr.TransactionID,
		CdrToken:               cdrToken(sc.auth, sc.partner),
		AuthorizationReference: cdr.AuthorizationReference,
		AuthMethod:             "AUTH_REQUEST",
		Currency:               cdr.Currency,
		TotalCost:              Price{ExclVat: cdr.TotalCost},
		TotalEnergy:            cdr.TotalEnergy,
		TotalTime:              cdr.TotalTime.Hours(),
		TotalParkingTime:       cdr.TotalParkingTime.Hours(),
		LastUpdated:            cdr.CreatedAt,
	}
	if cdr.AuthorizationReference != nil && *cdr.AuthorizationReference != "" {
		out.AuthMethod = "COMMAND"
	}
	if out.Currency == "" {
		out.Currency = sc.currency
	}
	if l := sc.location; l != nil {
		out.CdrLocation.ID = strconv.Itoa(l.ID)
		out.CdrLocation.Name = l.Name
		out.CdrLocation.Address = l.Address
		out.CdrLocation.City = l.City
		out.CdrLocation.PostalCode = l.PostalCode
		out.CdrLocation.Country = l.Country
		out.CdrLocation.Coordinates = coordinates(l.Latitude, l.Longitude)
	}
	if e := sc.evse; e != nil {
		out.CdrLocation.EvseUID = e.EvseUID
		out.CdrLocation.EvseID = e.EvseUID
	}
	if c := sc.connector; c != nil {
		out.CdrLocation.ConnectorID = c.ConnectorUID
		out.CdrLocation.ConnectorStandard = c.Type
		out.CdrLocation.ConnectorFormat = c.Format
		out.CdrLocation.ConnectorPowerType = c.PowerType
	}
	return out
}
