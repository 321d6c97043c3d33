// Package commands validates remote commands from partners and hands them to
// the station gateway without making the partner wait for the outcome.
package commands

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/metrics"
	"ocpi/internal/models"

	"github.com/google/uuid"
)

type StationStore interface {
	Get(ctx context.Context, tenantID int, id string) (*models.ChargingStation, error)
}

type EvseStore interface {
	GetEvseByUID(ctx context.Context, tenantID int, uid string) (*models.Evse, error)
}

type ConnectorStore interface {
	FindConnector(ctx context.Context, evseID int, connectorUID string) (*models.Connector, error)
}

type TransactionStore interface {
	FindByTransactionID(ctx context.Context, tenantID int, transactionID string) (*models.Transaction, error)
}

type TokenStore interface {
	Upsert(ctx context.Context, partner *models.TenantPartner, token models.Token) (*models.Authorization, error)
	ForIDToken(ctx context.Context, idToken string) (*models.Authorization, error)
}

type ReferenceStager interface {
	Stage(ctx context.Context, idToken, reference string) error
}

// Spawner starts detached work; Runner is the production implementation.
type Spawner interface {
	Go(ctx context.Context, command, correlationID string, fn func(context.Context) error)
}

type Pipeline struct {
	Stations     StationStore
	Evses        EvseStore
	Connectors   ConnectorStore
	Transactions TransactionStore
	Tokens       TokenStore
	References   ReferenceStager
	Executor     Executor
	Runner       Spawner
	Timeout      time.Duration
	Log          *logging.Logger
}

// Handle decodes and runs one command. It always produces a response.
func (p *Pipeline) Handle(ctx context.Context, partner *models.TenantPartner, command models.CommandType, body []byte) models.CommandResponse {
	var resp models.CommandResponse
	switch command {
	case models.CommandStartSession:
		var c models.StartSession
		if bad, ok := decode(p, body, &c); !ok {
			return p.count(command, bad)
		}
		resp = p.StartSession(ctx, partner, c)
	case models.CommandStopSession:
		var c models.StopSession
		if bad, ok := decode(p, body, &c); !ok {
			return p.count(command, bad)
		}
		resp = p.StopSession(ctx, partner, c)
	case models.CommandReserveNow:
		var c models.ReserveNow
		if bad, ok := decode(p, body, &c); !ok {
			return p.count(command, bad)
		}
		resp = p.ReserveNow(ctx, partner, c)
	case models.CommandUnlockConnector:
		var c models.UnlockConnector
		if bad, ok := decode(p, body, &c); !ok {
			return p.count(command, bad)
		}
		resp = p.UnlockConnector(ctx, partner, c)
	case models.CommandCancelReservation:
		resp = p.CancelReservation(ctx, partner)
	default:
		resp = p.respond(models.CommandNotSupported, "unknown command "+string(command))
	}
	return p.count(command, resp)
}

func decode(p *Pipeline, body []byte, v any) (models.CommandResponse, bool) {
	if err := json.Unmarshal(body, v); err != nil {
		return p.respond(models.CommandRejected, "invalid command payload"), false
	}
	return models.CommandResponse{}, true
}

func (p *Pipeline) StartSession(ctx context.Context, partner *models.TenantPartner, c models.StartSession) models.CommandResponse {
	if !sameParty(partner, c.Token.CountryCode, c.Token.PartyID) {
		return p.respond(models.CommandRejected, "token does not belong to requesting party")
	}
	if c.EvseUID == nil || *c.EvseUID == "" {
		return p.respond(models.CommandRejected, "evse_uid is required")
	}
	auth, err := p.Tokens.Upsert(ctx, partner, c.Token)
	if err != nil {
		p.Log.WarnContext(ctx, "save token for start session", logging.Error(err))
		return p.respond(models.CommandRejected, "unable to save token")
	}

	target, resp, ok := p.resolve(ctx, partner.TenantID, c.LocationID, *c.EvseUID, c.ConnectorID)
	if !ok {
		return resp
	}

	payload := map[string]any{
		"idToken": map[string]any{"idToken": auth.IDToken, "type": string(auth.IDTokenType)},
		"evseId":  target.evse.StationEvseID,
	}
	if target.connector != nil {
		payload["connectorId"] = target.connector.StationConnectorID
	}
	if auth.GroupID != nil {
		payload["groupId"] = *auth.GroupID
	}
	if c.AuthorizationReference != nil && *c.AuthorizationReference != "" {
		payload["remoteStartId"] = *c.AuthorizationReference
		if err := p.References.Stage(ctx, auth.IDToken, *c.AuthorizationReference); err != nil {
			p.Log.WarnContext(ctx, "stage authorization reference", logging.Error(err))
		}
	}

	return p.dispatch(ctx, Execution{
		Command:     models.CommandStartSession,
		Partner:     partner,
		TenantID:    partner.TenantID,
		StationID:   target.station.ID,
		ResponseURL: c.ResponseURL,
		Payload:     payload,
	}, p.Executor.StartSession)
}

func (p *Pipeline) ReserveNow(ctx context.Context, partner *models.TenantPartner, c models.ReserveNow) models.CommandResponse {
	if !sameParty(partner, c.Token.CountryCode, c.Token.PartyID) {
		return p.respond(models.CommandRejected, "token does not belong to requesting party")
	}
	if c.EvseUID == nil || *c.EvseUID == "" {
		return p.respond(models.CommandRejected, "evse_uid is required")
	}
	if c.ReservationID == "" {
		return p.respond(models.CommandRejected, "reservation_id is required")
	}
	auth, err := p.Tokens.Upsert(ctx, partner, c.Token)
	if err != nil {
		p.Log.WarnContext(ctx, "save token for reservation", logging.Error(err))
		return p.respond(models.CommandRejected, "unable to save token")
	}

	target, resp, ok := p.resolve(ctx, partner.TenantID, c.LocationID, *c.EvseUID, c.ConnectorID)
	if !ok {
		return resp
	}

	payload := map[string]any{
		"id":             c.ReservationID,
		"expiryDateTime": c.ExpiryDate,
		"idToken":        map[string]any{"idToken": auth.IDToken, "type": string(auth.IDTokenType)},
		"evseId":         target.evse.StationEvseID,
	}
	if target.connector != nil {
		payload["connectorId"] = target.connector.StationConnectorID
		payload["connectorType"] = target.connector.Type
	}
	if auth.GroupID != nil {
		payload["groupId"] = *auth.GroupID
	}

	return p.dispatch(ctx, Execution{
		Command:     models.CommandReserveNow,
		Partner:     partner,
		TenantID:    partner.TenantID,
		StationID:   target.station.ID,
		ResponseURL: c.ResponseURL,
		Payload:     payload,
	}, p.Executor.ReserveNow)
}

func (p *Pipeline) StopSession(ctx context.Context, partner *models.TenantPartner, c models.StopSession) models.CommandResponse {
	if c.SessionID == "" {
		return p.respond(models.CommandRejected, "session_id is required")
	}
	tx, err := p.Transactions.FindByTransactionID(ctx, partner.TenantID, c.SessionID)
	if err != nil {
		p.Log.ErrorContext(ctx, "load transaction", logging.TransactionID(c.SessionID), logging.Error(err))
		return p.respond(models.CommandRejected, "unable to load session")
	}
	if tx == nil {
		return p.respond(models.CommandUnknownSession, "unknown session")
	}

	auth, err := p.Tokens.ForIDToken(ctx, tx.IDToken)
	if err != nil {
		p.Log.ErrorContext(ctx, "load authorization", logging.TransactionID(c.SessionID), logging.Error(err))
		return p.respond(models.CommandRejected, "unable to load session token")
	}
	if !ownsAuthorization(partner, auth) {
		return p.respond(models.CommandRejected, "session does not belong to requesting party")
	}
	if !tx.IsActive {
		return p.respond(models.CommandRejected, "session already stopped")
	}

	station, err := p.Stations.Get(ctx, partner.TenantID, tx.StationID)
	if err != nil || station == nil {
		return p.respond(models.CommandRejected, "unknown charging station")
	}
	if !station.IsOnline {
		return p.respond(models.CommandRejected, "charging station is offline")
	}

	return p.dispatch(ctx, Execution{
		Command:     models.CommandStopSession,
		Partner:     partner,
		TenantID:    partner.TenantID,
		StationID:   station.ID,
		ResponseURL: c.ResponseURL,
		Payload:     map[string]any{"transactionId": tx.TransactionID},
	}, p.Executor.StopSession)
}

func (p *Pipeline) UnlockConnector(ctx context.Context, partner *models.TenantPartner, c models.UnlockConnector) models.CommandResponse {
	if c.EvseUID == nil || *c.EvseUID == "" {
		return p.respond(models.CommandRejected, "evse_uid is required")
	}
	if c.ConnectorID == nil || *c.ConnectorID == "" {
		return p.respond(models.CommandRejected, "connector_id is required")
	}

	target, resp, ok := p.resolve(ctx, partner.TenantID, c.LocationID, *c.EvseUID, c.ConnectorID)
	if !ok {
		return resp
	}

	return p.dispatch(ctx, Execution{
		Command:     models.CommandUnlockConnector,
		Partner:     partner,
		TenantID:    partner.TenantID,
		StationID:   target.station.ID,
		ResponseURL: c.ResponseURL,
		Payload: map[string]any{
			"evseId":      target.evse.StationEvseID,
			"connectorId": target.connector.StationConnectorID,
		},
	}, p.Executor.UnlockConnector)
}

// CancelReservation is not offered by the stations behind this adapter.
func (p *Pipeline) CancelReservation(context.Context, *models.TenantPartner) models.CommandResponse {
	return p.respond(models.CommandNotSupported, "")
}

type target struct {
	station   *models.ChargingStation
	evse      *models.Evse
	connector *models.Connector
}

// resolve finds the EVSE, its station and optionally the connector, then
// checks the station is online.
func (p *Pipeline) resolve(ctx context.Context, tenantID int, locationID, evseUID string, connectorUID *string) (target, models.CommandResponse, bool) {
	var t target

	evse, err := p.Evses.GetEvseByUID(ctx, tenantID, evseUID)
	if err != nil {
		p.Log.ErrorContext(ctx, "load evse", "evse_uid", evseUID, logging.Error(err))
	}
	if evse == nil {
		return t, p.respond(models.CommandRejected, "unknown EVSE"), false
	}
	t.evse = evse

	station, err := p.Stations.Get(ctx, tenantID, evse.StationID)
	if err != nil {
		p.Log.ErrorContext(ctx, "load station", logging.StationID(evse.StationID), logging.Error(err))
	}
	if station == nil || strconv.Itoa(station.LocationID) != locationID {
		return t, p.respond(models.CommandRejected, "unknown charging station"), false
	}
	t.station = station

	if connectorUID != nil && *connectorUID != "" {
		conn, err := p.Connectors.FindConnector(ctx, evse.ID, *connectorUID)
		if err != nil {
			p.Log.ErrorContext(ctx, "load connector", "connector_uid", *connectorUID, logging.Error(err))
		}
		if conn == nil {
			return t, p.respond(models.CommandRejected, "unknown connector"), false
		}
		t.connector = conn
	}

	if !station.IsOnline {
		return t, p.respond(models.CommandRejected, "charging station is offline"), false
	}
	return t, models.CommandResponse{}, true
}

func (p *Pipeline) dispatch(ctx context.Context, x Execution, run func(context.Context, Execution) error) models.CommandResponse {
	x.CorrelationID = uuid.NewString()
	p.Runner.Go(ctx, string(x.Command), x.CorrelationID, func(ctx context.Context) error {
		return run(ctx, x)
	})
	p.Log.InfoContext(ctx, "command accepted",
		logging.Command(string(x.Command)),
		logging.StationID(x.StationID),
		logging.CorrelationID(x.CorrelationID),
		logging.Partner(x.Partner.CountryCode, x.Partner.PartyID))
	return p.respond(models.CommandAccepted, "")
}

func (p *Pipeline) respond(result models.CommandResponseType, reason string) models.CommandResponse {
	resp := models.CommandResponse{Result: result, Timeout: int(p.Timeout / time.Second)}
	if reason != "" {
		resp.Message = []models.DisplayText{{Language: "en", Text: reason}}
	}
	return resp
}

func (p *Pipeline) count(command models.CommandType, resp models.CommandResponse) models.CommandResponse {
	metrics.CommandsTotal.WithLabelValues(string(command), string(resp.Result)).Inc()
	return resp
}

func sameParty(partner *models.TenantPartner, countryCode, partyID string) bool {
	return partner.CountryCode == countryCode && partner.PartyID == partyID
}

func ownsAuthorization(partner *models.TenantPartner, auth *models.Authorization) bool {
	if auth == nil {
		return false
	}
	if ext := auth.ExternalToken; ext != nil {
		return sameParty(partner, ext.CountryCode, ext.PartyID)
	}
	return auth.PartnerID != nil && *auth.PartnerID == partner.ID
}
