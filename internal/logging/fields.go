package logging

import "log/slog"

const (
	FieldRequestID     = "request_id"
	FieldEventID       = "event_id"
	FieldEntityType    = "entity_type"
	FieldEventType     = "event_type"
	FieldCommand       = "command"
	FieldCorrelationID = "correlation_id"
	FieldTenantID      = "tenant_id"
	FieldPartner       = "partner"
	FieldModule        = "module"
	FieldStationID     = "station_id"
	FieldTransactionID = "transaction_id"
	FieldError         = "error"
)

func EventID(id string) slog.Attr { return slog.String(FieldEventID, id) }

func EntityType(t string) slog.Attr { return slog.String(FieldEntityType, t) }

func EventType(t string) slog.Attr { return slog.String(FieldEventType, t) }

func Command(name string) slog.Attr { return slog.String(FieldCommand, name) }

func CorrelationID(id string) slog.Attr { return slog.String(FieldCorrelationID, id) }

func TenantID(id int) slog.Attr { return slog.Int(FieldTenantID, id) }

// Partner renders a roaming party as "CC*PID".
func Partner(countryCode, partyID string) slog.Attr {
	return slog.String(FieldPartner, countryCode+"*"+partyID)
}

func Module(m string) slog.Attr { return slog.String(FieldModule, m) }

func StationID(id string) slog.Attr { return slog.String(FieldStationID, id) }

func TransactionID(id string) slog.Attr { return slog.String(FieldTransactionID, id) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}
