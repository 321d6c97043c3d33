package models

type CommandType string

const (
	CommandCancelReservation CommandType = "CANCEL_RESERVATION"
	CommandReserveNow        CommandType = "RESERVE_NOW"
	CommandStartSession      CommandType = "START_SESSION"
	CommandStopSession       CommandType = "STOP_SESSION"
	CommandUnlockConnector   CommandType = "UNLOCK_CONNECTOR"
)

type CommandResponseType string

const (
	CommandAccepted       CommandResponseType = "ACCEPTED"
	CommandRejected       CommandResponseType = "REJECTED"
	CommandNotSupported   CommandResponseType = "NOT_SUPPORTED"
	CommandUnknownSession CommandResponseType = "UNKNOWN_SESSION"
)

// CommandResultType is reported asynchronously to the partner's response_url.
type CommandResultType string

const (
	ResultAccepted CommandResultType = "ACCEPTED"
	ResultFailed   CommandResultType = "FAILED"
	ResultRejected CommandResultType = "REJECTED"
	ResultTimeout  CommandResultType = "TIMEOUT"
)

type DisplayText struct {
	Language string `json:"language"`
	Text     string `json:"text"`
}

type CommandResponse struct {
	Result  CommandResponseType `json:"result"`
	Timeout int                 `json:"timeout"`
	Message []DisplayText       `json:"message,omitempty"`
}

type CommandResult struct {
	Result  CommandResultType `json:"result"`
	Message []DisplayText     `json:"message,omitempty"`
}

type StartSession struct {
	ResponseURL            string  `json:"response_url"`
	Token                  Token   `json:"token"`
	LocationID             string  `json:"location_id"`
	EvseUID                *string `json:"evse_uid,omitempty"`
	ConnectorID            *string `json:"connector_id,omitempty"`
	AuthorizationReference *string `json:"authorization_reference,omitempty"`
}

type StopSession struct {
	ResponseURL string `json:"response_url"`
	SessionID   string `json:"session_id"`
}

type ReserveNow struct {
	ResponseURL            string  `json:"response_url"`
	Token                  Token   `json:"token"`
	ExpiryDate             string  `json:"expiry_date"`
	ReservationID          string  `json:"reservation_id"`
	LocationID             string  `json:"location_id"`
	EvseUID                *string `json:"evse_uid,omitempty"`
	ConnectorID            *string `json:"connector_id,omitempty"`
	AuthorizationReference *string `json:"authorization_reference,omitempty"`
}

type UnlockConnector struct {
	ResponseURL string  `json:"response_url"`
	LocationID  string  `json:"location_id"`
	EvseUID     *string `json:"evse_uid,omitempty"`
	ConnectorID *string `json:"connector_id,omitempty"`
}

type CancelReservation struct {
	ResponseURL   string `json:"response_url"`
	ReservationID string `json:"reservation_id"`
}
