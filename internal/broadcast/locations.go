package broadcast

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strconv"

	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/partnerclient"
)

// Fields that identify or audit a connector row rather than describe it.
var connectorIdentityFields = map[string]bool{
	"id":                 true,
	"tenantId":           true,
	"stationId":          true,
	"evseId":             true,
	"connectorUid":       true,
	"stationConnectorId": true,
	"createdAt":          true,
	"updatedAt":          true,
	"timestamp":          true,
}

// ChangedFields lists the descriptive fields that differ between two
// versions of a connector row, sorted.
func ChangedFields(newRow, oldRow json.RawMessage) ([]string, error) {
	var n, o map[string]any
	if err := json.Unmarshal(newRow, &n); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(oldRow, &o); err != nil {
		return nil, err
	}
	var changed []string
	seen := make(map[string]bool, len(n))
	for k, v := range n {
		seen[k] = true
		if connectorIdentityFields[k] {
			continue
		}
		if ov, ok := o[k]; !ok || !reflect.DeepEqual(v, ov) {
			changed = append(changed, k)
		}
	}
	for k := range o {
		if !seen[k] && !connectorIdentityFields[k] {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// ConnectorUpdated sends a status-only change as the aggregated status of
// the EVSE, and any other change as the connector itself.
func (o *Orchestrator) ConnectorUpdated(ctx context.Context, ev models.ChangeEvent) {
	log := o.logger(ev)
	var conn models.Connector
	if !decode(ctx, log, ev.New, &conn) {
		return
	}
	tenantID := tenantOf(ev, conn.TenantID)

	statusOnly := false
	if len(ev.Old) > 0 {
		changed, err := ChangedFields(ev.New, ev.Old)
		if err != nil {
			log.WarnContext(ctx, "compare connector versions", logging.Error(err))
			return
		}
		if len(changed) == 0 {
			log.DebugContext(ctx, "connector update without descriptive changes")
			return
		}
		statusOnly = len(changed) == 1 && changed[0] == "status"
	}

	evse, err := o.Sites.GetEvse(ctx, tenantID, conn.EvseID)
	if err != nil || evse == nil {
		log.WarnContext(ctx, "evse of connector not found", "evse_id", conn.EvseID, logging.Error(err))
		return
	}
	station, err := o.Stations.Get(ctx, tenantID, evse.StationID)
	if err != nil || station == nil {
		log.WarnContext(ctx, "station of evse not found", logging.StationID(evse.StationID), logging.Error(err))
		return
	}
	locationID := strconv.Itoa(station.LocationID)

	if !statusOnly {
		body := ToConnector(conn)
		o.pushAll(ctx, log, tenantID, func(t *models.Tenant) partnerclient.Request {
			return put(partnerclient.ModuleLocations, "Connector", objectPath(t, locationID, evse.EvseUID, conn.ConnectorUID), body)
		})
		return
	}

	siblings, err := o.Connectors.ListConnectors(ctx, tenantID, evse.ID)
	if err != nil {
		log.ErrorContext(ctx, "list evse connectors", logging.Error(err))
		return
	}
	statuses := make([]string, 0, len(siblings))
	for _, c := range siblings {
		if c.ID == conn.ID {
			c.Status = conn.Status
		}
		statuses = append(statuses, c.Status)
	}
	body := EvseStatusPatch{Status: AggregateEvseStatus(statuses), LastUpdated: lastUpdated(conn.UpdatedAt)}
	if !station.IsOnline {
		body.Status = EvseUnknown
	}
	o.pushAll(ctx, log, tenantID, func(t *models.Tenant) partnerclient.Request {
		return patch(partnerclient.ModuleLocations, "EvsePatch", objectPath(t, locationID, evse.EvseUID), body)
	})
}

func (o *Orchestrator) LocationInserted(ctx context.Context, ev models.ChangeEvent) {
	o.location(ctx, ev, false)
}

func (o *Orchestrator) LocationUpdated(ctx context.Context, ev models.ChangeEvent) {
	o.location(ctx, ev, true)
}

func (o *Orchestrator) location(ctx context.Context, ev models.ChangeEvent, update bool) {
	log := o.logger(ev)
	var l models.Location
	if !decode(ctx, log, ev.New, &l) {
		return
	}
	tenantID := tenantOf(ev, l.TenantID)
	id := strconv.Itoa(l.ID)

	o.pushAll(ctx, log, tenantID, func(t *models.Tenant) partnerclient.Request {
		body := ToLocation(t, l, nil)
		if update {
			return patch(partnerclient.ModuleLocations, "LocationPatch", objectPath(t, id), body)
		}
		return put(partnerclient.ModuleLocations, "Location", objectPath(t, id), body)
	})
}

func (o *Orchestrator) EvseInserted(ctx context.Context, ev models.ChangeEvent) {
	o.evse(ctx, ev, false)
}

func (o *Orchestrator) EvseUpdated(ctx context.Context, ev models.ChangeEvent) {
	o.evse(ctx, ev, true)
}

// evse resolves the owning station first: the partner addresses an EVSE
// through its location.
func (o *Orchestrator) evse(ctx context.Context, ev models.ChangeEvent, update bool) {
	log := o.logger(ev)
	var e models.Evse
	if !decode(ctx, log, ev.New, &e) {
		return
	}
	tenantID := tenantOf(ev, e.TenantID)

	station, err := o.Stations.Get(ctx, tenantID, e.StationID)
	if err != nil || station == nil {
		log.WarnContext(ctx, "station of evse not found", logging.StationID(e.StationID), logging.Error(err))
		return
	}
	o.pushEvse(ctx, log, tenantID, station, e, update)
}

// ChargingStationUpdated re-sends every EVSE of the station, whose payload
// embeds station state such as availability.
func (o *Orchestrator) ChargingStationUpdated(ctx context.Context, ev models.ChangeEvent) {
	log := o.logger(ev)
	var station models.ChargingStation
	if !decode(ctx, log, ev.New, &station) {
		return
	}
	tenantID := tenantOf(ev, station.TenantID)
	log = log.With(logging.StationID(station.ID))

	evses, err := o.Sites.ListEvsesByStation(ctx, tenantID, station.ID)
	if err != nil {
		log.ErrorContext(ctx, "list station evses", logging.Error(err))
		return
	}
	for _, e := range evses {
		o.pushEvse(ctx, log, tenantID, &station, e, false)
	}
}

func (o *Orchestrator) pushEvse(ctx context.Context, log *logging.Logger, tenantID int, station *models.ChargingStation, e models.Evse, update bool) {
	connectors, err := o.Connectors.ListConnectors(ctx, tenantID, e.ID)
	if err != nil {
		log.ErrorContext(ctx, "list evse connectors", logging.Error(err))
		return
	}
	body := ToEvse(e, station, connectors)
	locationID := strconv.Itoa(station.LocationID)

	o.pushAll(ctx, log, tenantID, func(t *models.Tenant) partnerclient.Request {
		if update {
			return patch(partnerclient.ModuleLocations, "EvsePatch", objectPath(t, locationID, e.EvseUID), body)
		}
		return put(partnerclient.ModuleLocations, "Evse", objectPath(t, locationID, e.EvseUID), body)
	})
}
