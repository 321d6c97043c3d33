package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/metrics"
	"ocpi/internal/models"
	"ocpi/internal/partnerclient"
)

// TransactionInserted pushes the full session once the station opened it,
// attaching the authorization reference staged by a remote start.
func (o *Orchestrator) TransactionInserted(ctx context.Context, ev models.ChangeEvent) {
	log := o.logger(ev)
	var row models.Transaction
	if !decode(ctx, log, ev.New, &row) {
		return
	}
	tenantID := tenantOf(ev, row.TenantID)

	tx, err := o.Transactions.GetByID(ctx, tenantID, row.ID)
	if err != nil || tx == nil {
		log.WarnContext(ctx, "transaction not found", "transaction_db_id", row.ID, logging.Error(err))
		return
	}
	log = log.With(logging.TransactionID(tx.TransactionID))

	ref, ok, err := o.References.Consume(ctx, tx.IDToken)
	switch {
	case err != nil:
		log.WarnContext(ctx, "consume authorization reference", logging.Error(err))
	case ok:
		if err := o.Transactions.SetAuthorizationReference(ctx, tx.ID, ref); err != nil {
			log.ErrorContext(ctx, "store authorization reference", logging.Error(err))
		} else {
			tx.AuthorizationReference = &ref
		}
	}

	sc, ok := o.sessionContext(ctx, log, tx)
	if !ok {
		return
	}
	session := ToSession(sc, tx)
	o.push(ctx, log, sc.partner, put(partnerclient.ModuleSessions, "Session", objectPath(sc.tenant, session.ID), session))
}

// TransactionUpdated patches the session and, when the transaction just
// ended, generates and pushes its CDR.
func (o *Orchestrator) TransactionUpdated(ctx context.Context, ev models.ChangeEvent) {
	log := o.logger(ev)
	var row models.Transaction
	if !decode(ctx, log, ev.New, &row) {
		return
	}
	tenantID := tenantOf(ev, row.TenantID)
	row.TenantID = tenantID
	log = log.With(logging.TransactionID(row.TransactionID))

	sc, ok := o.sessionContext(ctx, log, &row)
	if !ok {
		return
	}

	kwh := row.TotalKwh
	body := SessionPatch{
		Kwh:         &kwh,
		EndDateTime: row.EndTime,
		Status:      sessionStatus(&row),
		LastUpdated: lastUpdated(row.UpdatedAt),
	}
	o.push(ctx, log, sc.partner, patch(partnerclient.ModuleSessions, "SessionPatch", objectPath(sc.tenant, row.TransactionID), body))

	if row.IsActive || !wasActive(ev) {
		return
	}

	tx, err := o.Transactions.GetByID(ctx, tenantID, row.ID)
	if err != nil || tx == nil {
		log.WarnContext(ctx, "ended transaction not found", logging.Error(err))
		return
	}
	cdr, err := o.Cdrs.Generate(ctx, tx)
	if err != nil {
		log.ErrorContext(ctx, "generate cdr", logging.Error(err))
		return
	}
	o.push(ctx, log, sc.partner, partnerclient.Request{
		Module:   partnerclient.ModuleCdrs,
		Method:   http.MethodPost,
		SchemaID: "Cdr",
		Body:     ToCdr(sc, cdr),
	})
}

// MeterValueInserted adds a charging period to an active session. The
// reading taken at the transaction start is skipped: the session PUT already
// carries it, and the two events may arrive in either order.
func (o *Orchestrator) MeterValueInserted(ctx context.Context, ev models.ChangeEvent) {
	log := o.logger(ev)
	var mv models.MeterValue
	if !decode(ctx, log, ev.New, &mv) {
		return
	}
	if mv.TransactionDatabaseID == nil {
		log.DebugContext(ctx, "meter value outside a transaction")
		return
	}
	tenantID := tenantOf(ev, mv.TenantID)

	tx, err := o.Transactions.GetByID(ctx, tenantID, *mv.TransactionDatabaseID)
	if err != nil || tx == nil {
		log.WarnContext(ctx, "transaction of meter value not found", logging.Error(err))
		return
	}
	if !tx.IsActive {
		log.DebugContext(ctx, "meter value of inactive transaction", logging.TransactionID(tx.TransactionID))
		return
	}
	if IsStartReading(mv.Timestamp, tx.StartTime) {
		metrics.SuppressedMeterValues.Inc()
		log.DebugContext(ctx, "start reading already sent with session", logging.TransactionID(tx.TransactionID))
		return
	}
	if mv.TariffID == nil {
		log.WarnContext(ctx, "meter value without tariff dropped", logging.TransactionID(tx.TransactionID))
		return
	}

	period, ok := ToChargingPeriod(mv)
	if !ok {
		log.DebugContext(ctx, "meter value without billable measurands")
		return
	}
	sc, ok := o.sessionContext(ctx, log, tx)
	if !ok {
		return
	}
	body := SessionPatch{
		ChargingPeriods: []ChargingPeriod{period},
		LastUpdated:     lastUpdated(mv.Timestamp),
	}
	o.push(ctx, log, sc.partner, patch(partnerclient.ModuleSessions, "SessionPatch", objectPath(sc.tenant, tx.TransactionID), body))
}

// IsStartReading reports whether ts is within StartTolerance of start.
func IsStartReading(ts, start time.Time) bool {
	d := ts.Sub(start)
	if d < 0 {
		d = -d
	}
	return d <= StartTolerance
}

// sessionContext resolves the partner owning the transaction's token and
// the location data a session payload needs. ok is false when the session
// has no roaming partner or required context is missing.
func (o *Orchestrator) sessionContext(ctx context.Context, log *logging.Logger, tx *models.Transaction) (sessionContext, bool) {
	var sc sessionContext

	auth, err := o.Authorizations.ForIDToken(ctx, tx.IDToken)
	if err != nil {
		log.ErrorContext(ctx, "load authorization", logging.Error(err))
		return sc, false
	}
	if auth == nil || auth.PartnerID == nil {
		log.DebugContext(ctx, "transaction not authorized by a roaming partner")
		return sc, false
	}
	partner, err := o.Partners.Get(ctx, *auth.PartnerID)
	if err != nil || partner == nil || partner.Tenant == nil {
		log.WarnContext(ctx, "partner of authorization not found", "partner_id", *auth.PartnerID, logging.Error(err))
		return sc, false
	}
	sc.auth = auth
	sc.partner = partner
	sc.tenant = partner.Tenant
	sc.currency = defaultCurrency

	if tx.LocationID != nil {
		if sc.location, err = o.Sites.GetLocation(ctx, tx.TenantID, *tx.LocationID); err != nil {
			log.WarnContext(ctx, "load location", logging.Error(err))
		}
	}
	if tx.EvseID != nil {
		if sc.evse, err = o.Sites.GetEvse(ctx, tx.TenantID, *tx.EvseID); err != nil {
			log.WarnContext(ctx, "load evse", logging.Error(err))
		}
	}
	if tx.ConnectorID != nil {
		if sc.connector, err = o.Connectors.GetConnector(ctx, tx.TenantID, *tx.ConnectorID); err != nil {
			log.WarnContext(ctx, "load connector", logging.Error(err))
		}
	}
	if tx.TariffID != nil {
		tariff, err := o.Tariffs.Get(ctx, *tx.TariffID)
		if err != nil {
			log.WarnContext(ctx, "load tariff", logging.Error(err))
		} else if tariff != nil && tariff.Currency != "" {
			sc.currency = tariff.Currency
		}
	}
	return sc, true
}

// wasActive reports whether the previous row was active. A missing or
// partial previous image counts as active; CDR generation is idempotent.
func wasActive(ev models.ChangeEvent) bool {
	if len(ev.Old) == 0 {
		return true
	}
	var old struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.Unmarshal(ev.Old, &old); err != nil || old.IsActive == nil {
		return true
	}
	return *old.IsActive
}

func tenantOf(ev models.ChangeEvent, rowTenant int) int {
	if ev.TenantID != 0 {
		return ev.TenantID
	}
	return rowTenant
}

func lastUpdated(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
