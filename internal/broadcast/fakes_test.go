package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/partnerclient"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type fakeTransactions struct {
	rows     map[int]*models.Transaction
	refs     map[int]string
	setCalls int
}

func (f *fakeTransactions) GetByID(_ context.Context, _ int, id int) (*models.Transaction, error) {
	if tx, ok := f.rows[id]; ok {
		cp := *tx
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeTransactions) SetAuthorizationReference(_ context.Context, id int, ref string) error {
	f.setCalls++
	f.refs[id] = ref
	if tx, ok := f.rows[id]; ok {
		tx.AuthorizationReference = &ref
	}
	return nil
}

type fakeRefs struct {
	mu   sync.Mutex
	refs map[string]string
}

func (f *fakeRefs) Consume(_ context.Context, id string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.refs[id]
	delete(f.refs, id)
	return v, ok, nil
}

type fakeAuths map[string]*models.Authorization

func (f fakeAuths) ForIDToken(_ context.Context, id string) (*models.Authorization, error) {
	return f[id], nil
}

type fakePartners []models.TenantPartner

func (f fakePartners) Get(_ context.Context, id int) (*models.TenantPartner, error) {
	for i := range f {
		if f[i].ID == id {
			return &f[i], nil
		}
	}
	return nil, nil
}

func (f fakePartners) ListByTenant(_ context.Context, tenantID int) ([]models.TenantPartner, error) {
	var out []models.TenantPartner
	for _, p := range f {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeSites struct {
	locations map[int]*models.Location
	evses     map[int]*models.Evse
}

func (f *fakeSites) GetLocation(_ context.Context, _ int, id int) (*models.Location, error) {
	return f.locations[id], nil
}

func (f *fakeSites) GetEvse(_ context.Context, _ int, id int) (*models.Evse, error) {
	return f.evses[id], nil
}

func (f *fakeSites) ListEvsesByStation(_ context.Context, _ int, stationID string) ([]models.Evse, error) {
	var out []models.Evse
	for _, e := range f.evses {
		if e.StationID == stationID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeStations map[string]*models.ChargingStation

func (f fakeStations) Get(_ context.Context, _ int, id string) (*models.ChargingStation, error) {
	return f[id], nil
}

type fakeConnectors map[int]*models.Connector

func (f fakeConnectors) GetConnector(_ context.Context, _ int, id int) (*models.Connector, error) {
	return f[id], nil
}

func (f fakeConnectors) ListConnectors(_ context.Context, _ int, evseID int) ([]models.Connector, error) {
	ids := make([]int, 0, len(f))
	for id, c := range f {
		if c.EvseID == evseID {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	out := make([]models.Connector, 0, len(ids))
	for _, id := range ids {
		out = append(out, *f[id])
	}
	return out, nil
}

type fakeTariffs map[int]*models.Tariff

func (f fakeTariffs) Get(_ context.Context, id int) (*models.Tariff, error) {
	return f[id], nil
}

type fakeCdrs struct{ generated []*models.Transaction }

func (f *fakeCdrs) Generate(_ context.Context, tx *models.Transaction) (*models.CDR, error) {
	f.generated = append(f.generated, tx)
	return &models.CDR{
		ID:            "cdr-1",
		TransactionID: tx.TransactionID,
		StartTime:     tx.StartTime,
		EndTime:       *tx.EndTime,
		TotalEnergy:   tx.TotalKwh,
		TotalCost:     4.2,
		Currency:      "EUR",
		TotalTime:     tx.EndTime.Sub(tx.StartTime),
	}, nil
}

type pushed struct {
	Partner string
	Req     partnerclient.Request
}

type recordingPusher struct {
	mu     sync.Mutex
	pushes []pushed
	failOn string
}

func (r *recordingPusher) Push(_ context.Context, p *models.TenantPartner, req partnerclient.Request) (*partnerclient.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pushes = append(r.pushes, pushed{Partner: p.PartyID, Req: req})
	if r.failOn == p.PartyID {
		return nil, errors.New("partner unreachable")
	}
	return &partnerclient.Envelope{StatusCode: 1000}, nil
}

type world struct {
	o      *Orchestrator
	txs    *fakeTransactions
	refs   *fakeRefs
	cdrs   *fakeCdrs
	pusher *recordingPusher
	conns  fakeConnectors
	sites  *fakeSites
}

func ptr[T any](v T) *T { return &v }

func newWorld() *world {
	tenant := &models.Tenant{ID: 1, CountryCode: "NL", PartyID: "CPO"}
	partners := fakePartners{
		{ID: 1, TenantID: 1, CountryCode: "DE", PartyID: "EMS", Tenant: tenant},
		{ID: 2, TenantID: 1, CountryCode: "BE", PartyID: "MSP", Tenant: tenant},
	}
	txs := &fakeTransactions{
		rows: map[int]*models.Transaction{
			1: {
				ID: 1, TenantID: 1, TransactionID: "tx-1", StationID: "CS-1",
				EvseID: ptr(10), ConnectorID: ptr(1), LocationID: ptr(100),
				IsActive: true, StartTime: t0, TotalKwh: 0, IDToken: "AB12", TariffID: ptr(3),
			},
			2: {
				ID: 2, TenantID: 1, TransactionID: "tx-local", StationID: "CS-1",
				IsActive: true, StartTime: t0, IDToken: "LOCAL1",
			},
		},
		refs: map[int]string{},
	}
	conns := fakeConnectors{
		1: {ID: 1, TenantID: 1, StationID: "CS-1", EvseID: 10, ConnectorUID: "1", StationConnectorID: 1, Status: models.ConnectorAvailable, Type: "IEC_62196_T2", Format: "SOCKET", PowerType: "AC_3_PHASE", MaxVoltage: 230, MaxAmperage: 32},
		2: {ID: 2, TenantID: 1, StationID: "CS-1", EvseID: 10, ConnectorUID: "2", StationConnectorID: 2, Status: models.ConnectorFaulted, Type: "IEC_62196_T2_COMBO", Format: "CABLE", PowerType: "DC", MaxVoltage: 400, MaxAmperage: 125},
	}
	sites := &fakeSites{
		locations: map[int]*models.Location{100: {ID: 100, TenantID: 1, Name: "Depot", City: "Utrecht", Country: "NLD"}},
		evses:     map[int]*models.Evse{10: {ID: 10, TenantID: 1, StationID: "CS-1", EvseUID: "NL*CPO*E10", StationEvseID: 1}},
	}
	w := &world{
		txs:    txs,
		refs:   &fakeRefs{refs: map[string]string{}},
		cdrs:   &fakeCdrs{},
		pusher: &recordingPusher{},
		conns:  conns,
		sites:  sites,
	}
	w.o = &Orchestrator{
		Transactions: txs,
		References:   w.refs,
		Authorizations: fakeAuths{
			"AB12": {IDToken: "AB12", IDTokenType: models.IDTokenISO14443, PartnerID: ptr(1),
				ExternalToken: &models.ExternalToken{UID: "ab12-original", Type: models.TokenRFID, CountryCode: "DE", PartyID: "EMS", ContractID: "DE-EMS-C1"}},
			"LOCAL1": {IDToken: "LOCAL1", IDTokenType: models.IDTokenLocal},
		},
		Partners:   partners,
		Sites:      sites,
		Stations:   fakeStations{"CS-1": {ID: "CS-1", TenantID: 1, LocationID: 100, IsOnline: true}},
		Connectors: conns,
		Tariffs:    fakeTariffs{3: {ID: 3, Currency: "EUR"}},
		Cdrs:       w.cdrs,
		Pusher:     w.pusher,
		Log:        logging.Nop(),
	}
	return w
}

func event(t *testing.T, et models.EventType, entity models.EntityType, newRow, oldRow any) models.ChangeEvent {
	t.Helper()
	ev := models.ChangeEvent{ID: "ev-1", EventType: et, EntityType: entity, TenantID: 1}
	b, err := json.Marshal(newRow)
	require.NoError(t, err)
	ev.New = b
	if oldRow != nil {
		b, err = json.Marshal(oldRow)
		require.NoError(t, err)
		ev.Old = b
	}
	return ev
}
