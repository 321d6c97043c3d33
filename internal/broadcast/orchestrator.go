// Package broadcast turns core change events into pushes to roaming partners.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ocpi/internal/dispatch"
	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/partnerclient"
)

type TransactionStore interface {
	GetByID(ctx context.Context, tenantID, id int) (*models.Transaction, error)
	SetAuthorizationReference(ctx context.Context, id int, ref string) error
}

type ReferenceConsumer interface {
	Consume(ctx context.Context, idToken string) (string, bool, error)
}

type AuthorizationLookup interface {
	ForIDToken(ctx context.Context, idToken string) (*models.Authorization, error)
}

type PartnerStore interface {
	Get(ctx context.Context, id int) (*models.TenantPartner, error)
	ListByTenant(ctx context.Context, tenantID int) ([]models.TenantPartner, error)
}

type SiteStore interface {
	GetLocation(ctx context.Context, tenantID, id int) (*models.Location, error)
	GetEvse(ctx context.Context, tenantID, id int) (*models.Evse, error)
	ListEvsesByStation(ctx context.Context, tenantID int, stationID string) ([]models.Evse, error)
}

type StationStore interface {
	Get(ctx context.Context, tenantID int, id string) (*models.ChargingStation, error)
}

type ConnectorStore interface {
	GetConnector(ctx context.Context, tenantID, id int) (*models.Connector, error)
	ListConnectors(ctx context.Context, tenantID, evseID int) ([]models.Connector, error)
}

type TariffStore interface {
	Get(ctx context.Context, id int) (*models.Tariff, error)
}

type CdrGenerator interface {
	Generate(ctx context.Context, tx *models.Transaction) (*models.CDR, error)
}

type Pusher interface {
	Push(ctx context.Context, partner *models.TenantPartner, req partnerclient.Request) (*partnerclient.Envelope, error)
}

// StartTolerance is how close to the transaction start a meter value must be
// to count as the start reading already carried by the session PUT.
const StartTolerance = time.Second

const defaultCurrency = "EUR"

type Orchestrator struct {
	Transactions   TransactionStore
	References     ReferenceConsumer
	Authorizations AuthorizationLookup
	Partners       PartnerStore
	Sites          SiteStore
	Stations       StationStore
	Connectors     ConnectorStore
	Tariffs        TariffStore
	Cdrs           CdrGenerator
	Pusher         Pusher
	Log            *logging.Logger
}

// Register binds every handler of the orchestrator.
func (o *Orchestrator) Register(r *dispatch.Registry) {
	r.Register(models.EventInsert, models.EntityTransaction, o.TransactionInserted)
	r.Register(models.EventUpdate, models.EntityTransaction, o.TransactionUpdated)
	r.Register(models.EventInsert, models.EntityMeterValue, o.MeterValueInserted)
	r.Register(models.EventUpdate, models.EntityConnector, o.ConnectorUpdated)
	r.Register(models.EventInsert, models.EntityLocation, o.LocationInserted)
	r.Register(models.EventUpdate, models.EntityLocation, o.LocationUpdated)
	r.Register(models.EventInsert, models.EntityEvse, o.EvseInserted)
	r.Register(models.EventUpdate, models.EntityEvse, o.EvseUpdated)
	r.Register(models.EventUpdate, models.EntityChargingStation, o.ChargingStationUpdated)
}

func (o *Orchestrator) logger(ev models.ChangeEvent) *logging.Logger {
	return o.Log.With(
		logging.EventID(ev.ID),
		logging.EntityType(string(ev.EntityType)),
		logging.EventType(string(ev.EventType)),
		logging.TenantID(ev.TenantID))
}

// decode unmarshals the new row of ev. It logs and returns false on failure.
func decode(ctx context.Context, log *logging.Logger, raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		log.WarnContext(ctx, "change event without row")
		return false
	}
	if err := json.Unmarshal(raw, v); err != nil {
		log.WarnContext(ctx, "undecodable change event row", logging.Error(err))
		return false
	}
	return true
}

func (o *Orchestrator) push(ctx context.Context, log *logging.Logger, partner *models.TenantPartner, req partnerclient.Request) {
	if _, err := o.Pusher.Push(ctx, partner, req); err != nil {
		log.ErrorContext(ctx, "partner push failed",
			logging.Partner(partner.CountryCode, partner.PartyID),
			logging.Module(req.Module),
			"method", req.Method,
			"path", req.Path,
			logging.Error(err))
	}
}

// pushAll sends the request built per partner to every partner of tenantID.
func (o *Orchestrator) pushAll(ctx context.Context, log *logging.Logger, tenantID int, build func(tenant *models.Tenant) partnerclient.Request) {
	partners, err := o.Partners.ListByTenant(ctx, tenantID)
	if err != nil {
		log.ErrorContext(ctx, "list tenant partners", logging.Error(err))
		return
	}
	if len(partners) == 0 {
		log.DebugContext(ctx, "tenant has no roaming partners")
		return
	}
	for i := range partners {
		p := &partners[i]
		if p.Tenant == nil {
			log.WarnContext(ctx, "partner without tenant identity", logging.Partner(p.CountryCode, p.PartyID))
			continue
		}
		o.push(ctx, log, p, build(p.Tenant))
	}
}

func patch(module, schema, path string, body any) partnerclient.Request {
	return partnerclient.Request{Module: module, Method: http.MethodPatch, Path: path, SchemaID: schema, Body: body}
}

func put(module, schema, path string, body any) partnerclient.Request {
	return partnerclient.Request{Module: module, Method: http.MethodPut, Path: path, SchemaID: schema, Body: body}
}

func objectPath(tenant *models.Tenant, ids ...string) string {
	path := tenant.CountryCode + "/" + tenant.PartyID
	for _, id := range ids {
		path += "/" + id
	}
	return path
}
