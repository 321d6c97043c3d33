package models

import "encoding/json"

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
)

type EntityType string

const (
	EntityTransaction     EntityType = "Transaction"
	EntityMeterValue      EntityType = "MeterValue"
	EntityLocation        EntityType = "Location"
	EntityEvse            EntityType = "Evse"
	EntityConnector       EntityType = "Connector"
	EntityChargingStation EntityType = "ChargingStation"
)

// ChangeEvent is one core mutation as delivered by the bus. New holds the row
// after the mutation, Old the row before it (updates only).
type ChangeEvent struct {
	ID         string          `json:"id"`
	EventType  EventType       `json:"event_type"`
	EntityType EntityType      `json:"entity_type"`
	TenantID   int             `json:"tenant_id"`
	New        json.RawMessage `json:"new"`
	Old        json.RawMessage `json:"old,omitempty"`
}
