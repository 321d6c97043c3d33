package services

import (
	"context"
	"errors"
	"fmt"

	"ocpi/internal/models"

	"github.com/google/uuid"
)

type CdrStore interface {
	CreateForTransaction(ctx context.Context, c models.CDR) (*models.CDR, error)
}

type CdrService struct {
	Cdrs  CdrStore
	Costs *CostCalculator
}

func NewCdrService(cdrs CdrStore, costs *CostCalculator) *CdrService {
	return &CdrService{Cdrs: cdrs, Costs: costs}
}

// Generate prices a finished transaction and stores its CDR. Idempotent: a
// transaction has at most one CDR and a repeat returns the stored one.
func (s *CdrService) Generate(ctx context.Context, tx *models.Transaction) (*models.CDR, error) {
	if tx.IsActive || tx.EndTime == nil {
		return nil, errors.New("transaction still active")
	}
	cost := s.Costs.Calculate(ctx, tx)

	cdr, err := s.Cdrs.CreateForTransaction(ctx, models.CDR{
		ID:                     uuid.NewString(),
		TenantID:               tx.TenantID,
		TransactionID:          tx.TransactionID,
		TransactionDatabaseID:  tx.ID,
		LocationID:             tx.LocationID,
		StationID:              tx.StationID,
		EvseID:                 tx.EvseID,
		ConnectorID:            tx.ConnectorID,
		IDToken:                tx.IDToken,
		AuthorizationReference: tx.AuthorizationReference,
		StartTime:              tx.StartTime,
		EndTime:                *tx.EndTime,
		TotalEnergy:            tx.TotalKwh,
		TotalTime:              tx.EndTime.Sub(tx.StartTime),
		TotalParkingTime:       cost.IdleTime,
		TotalCost:              cost.Total,
		Currency:               cost.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("store cdr: %w", err)
	}
	return cdr, nil
}
