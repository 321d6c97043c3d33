package services

import (
	"context"
	"math"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/models"
)

type BillingStore interface {
	GetBillingConfig(ctx context.Context, locationID int) (*models.BillingConfig, error)
}

type StatusEventStore interface {
	ListStatusEvents(ctx context.Context, tenantID int, stationID string, connectorID int, start, end time.Time) ([]models.StatusEvent, error)
}

type ConnectorStore interface {
	GetConnector(ctx context.Context, tenantID, id int) (*models.Connector, error)
}

// Cost is the billed amount of one transaction.
type Cost struct {
	Base     float64
	Idle     float64
	Total    float64
	IdleTime time.Duration
	Currency string
}

type CostCalculator struct {
	Billing    BillingStore
	Events     StatusEventStore
	Connectors ConnectorStore
	Log        *logging.Logger
	Now        func() time.Time
}

func NewCostCalculator(billing BillingStore, events StatusEventStore, connectors ConnectorStore, log *logging.Logger) *CostCalculator {
	return &CostCalculator{Billing: billing, Events: events, Connectors: connectors, Log: log, Now: time.Now}
}

// Calculate never fails: missing billing data prices the transaction at zero.
func (c *CostCalculator) Calculate(ctx context.Context, tx *models.Transaction) Cost {
	end := c.Now().UTC()
	if tx.EndTime != nil {
		end = *tx.EndTime
	}
	log := c.Log.With(logging.TransactionID(tx.TransactionID), logging.TenantID(tx.TenantID))

	if tx.LocationID == nil {
		log.WarnContext(ctx, "transaction has no location, pricing at zero")
		return Cost{}
	}
	cfg, err := c.Billing.GetBillingConfig(ctx, *tx.LocationID)
	if err != nil || cfg == nil {
		log.WarnContext(ctx, "billing config unavailable, pricing at zero", "location_id", *tx.LocationID, logging.Error(err))
		return Cost{}
	}

	cost := Cost{Currency: cfg.Currency}
	switch cfg.ChargeMethod {
	case models.ChargePerKwh:
		cost.Base = tx.TotalKwh * cfg.PricePerKwh
	case models.ChargePerMinute:
		cost.Base = end.Sub(tx.StartTime).Minutes() * cfg.PricePerMinute
	case models.ChargeFlatRate:
		cost.Base = cfg.FlatRate
	case models.ChargeFree:
	default:
		log.WarnContext(ctx, "unknown charge method", "charge_method", cfg.ChargeMethod)
	}

	cost.IdleTime = c.idleTime(ctx, log, tx, end)
	cost.Idle = cost.IdleTime.Hours() * 60 * cfg.IdleRatePerMinute
	cost.Total = RoundDown(cost.Base+cost.Idle, 2)
	return cost
}

func (c *CostCalculator) idleTime(ctx context.Context, log *logging.Logger, tx *models.Transaction, end time.Time) time.Duration {
	if tx.ConnectorID == nil {
		return 0
	}
	conn, err := c.Connectors.GetConnector(ctx, tx.TenantID, *tx.ConnectorID)
	if err != nil || conn == nil {
		log.WarnContext(ctx, "connector unavailable, idle time not billed", logging.Error(err))
		return 0
	}
	events, err := c.Events.ListStatusEvents(ctx, tx.TenantID, tx.StationID, conn.StationConnectorID, tx.StartTime, end)
	if err != nil {
		log.WarnContext(ctx, "status events unavailable, idle time not billed", logging.Error(err))
		return 0
	}
	return IdleDuration(events, tx.StartTime, end)
}

// RoundDown truncates v to places decimals. Billing never rounds up.
func RoundDown(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	// the epsilon absorbs representation error such as 0.29*100 = 28.999999999999996
	return math.Floor(v*pow+1e-9) / pow
}
