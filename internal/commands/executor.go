package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ocpi/internal/gatewayclient"
	"ocpi/internal/logging"
	"ocpi/internal/models"
)

// Execution is a validated command ready for the station.
type Execution struct {
	Command       models.CommandType
	CorrelationID string
	Partner       *models.TenantPartner
	TenantID      int
	StationID     string
	ResponseURL   string
	Payload       map[string]any
}

type Executor interface {
	StartSession(ctx context.Context, x Execution) error
	StopSession(ctx context.Context, x Execution) error
	ReserveNow(ctx context.Context, x Execution) error
	UnlockConnector(ctx context.Context, x Execution) error
}

type CommandRecorder interface {
	Create(ctx context.Context, c models.CommandRecord) (string, error)
	MarkAcked(ctx context.Context, id string, response []byte) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
}

type StationGateway interface {
	Send(ctx context.Context, cmd gatewayclient.StationCommand) ([]byte, error)
}

type ResultPoster interface {
	PostResult(ctx context.Context, partner *models.TenantPartner, url string, result models.CommandResult) error
}

// GatewayExecutor executes commands through the station gateway and reports
// the outcome to the partner's response_url.
type GatewayExecutor struct {
	Commands CommandRecorder
	Gateway  StationGateway
	Results  ResultPoster
	Log      *logging.Logger
}

func NewGatewayExecutor(commands CommandRecorder, gw StationGateway, results ResultPoster, log *logging.Logger) *GatewayExecutor {
	return &GatewayExecutor{Commands: commands, Gateway: gw, Results: results, Log: log}
}

func (e *GatewayExecutor) StartSession(ctx context.Context, x Execution) error {
	return e.execute(ctx, "RequestStartTransaction", x)
}

func (e *GatewayExecutor) StopSession(ctx context.Context, x Execution) error {
	return e.execute(ctx, "RequestStopTransaction", x)
}

func (e *GatewayExecutor) ReserveNow(ctx context.Context, x Execution) error {
	return e.execute(ctx, "ReserveNow", x)
}

func (e *GatewayExecutor) UnlockConnector(ctx context.Context, x Execution) error {
	return e.execute(ctx, "UnlockConnector", x)
}

func (e *GatewayExecutor) execute(ctx context.Context, action string, x Execution) error {
	cmd := gatewayclient.StationCommand{
		Action:        action,
		StationID:     x.StationID,
		TenantID:      x.TenantID,
		CorrelationID: x.CorrelationID,
		Payload:       x.Payload,
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}

	rec := models.CommandRecord{
		TenantID:      x.TenantID,
		StationID:     x.StationID,
		Type:          string(x.Command),
		CorrelationID: x.CorrelationID,
		PayloadJSON:   payload,
		Status:        "Queued",
	}
	if x.Partner != nil {
		rec.PartnerID = x.Partner.ID
	}
	id, err := e.Commands.Create(ctx, rec)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}

	resp, sendErr := e.Gateway.Send(ctx, cmd)
	if sendErr != nil {
		_ = e.Commands.MarkFailed(ctx, id, sendErr.Error())
		return errors.Join(fmt.Errorf("send %s: %w", action, sendErr), e.report(ctx, x, models.ResultFailed))
	}
	if err := e.Commands.MarkAcked(ctx, id, resp); err != nil {
		e.Log.WarnContext(ctx, "mark command acked", logging.CorrelationID(x.CorrelationID), logging.Error(err))
	}
	e.Log.InfoContext(ctx, "command sent to station",
		logging.Command(string(x.Command)),
		logging.StationID(x.StationID),
		logging.CorrelationID(x.CorrelationID))
	return e.report(ctx, x, models.ResultAccepted)
}

func (e *GatewayExecutor) report(ctx context.Context, x Execution, result models.CommandResultType) error {
	if x.ResponseURL == "" || x.Partner == nil || e.Results == nil {
		return nil
	}
	if err := e.Results.PostResult(ctx, x.Partner, x.ResponseURL, models.CommandResult{Result: result}); err != nil {
		return fmt.Errorf("post command result: %w", err)
	}
	return nil
}
