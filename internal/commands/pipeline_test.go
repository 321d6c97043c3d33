package commands

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStations map[string]*models.ChargingStation

func (f fakeStations) Get(_ context.Context, _ int, id string) (*models.ChargingStation, error) {
	return f[id], nil
}

type fakeEvses map[string]*models.Evse

func (f fakeEvses) GetEvseByUID(_ context.Context, _ int, uid string) (*models.Evse, error) {
	return f[uid], nil
}

type fakeConnectors map[string]*models.Connector

func (f fakeConnectors) FindConnector(_ context.Context, _ int, uid string) (*models.Connector, error) {
	return f[uid], nil
}

type fakeTransactions map[string]*models.Transaction

func (f fakeTransactions) FindByTransactionID(_ context.Context, _ int, id string) (*models.Transaction, error) {
	return f[id], nil
}

type fakeTokens struct {
	auths   map[string]*models.Authorization
	saveErr error
	saved   []models.Token
}

func (f *fakeTokens) Upsert(_ context.Context, p *models.TenantPartner, t models.Token) (*models.Authorization, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, t)
	a := &models.Authorization{ID: 1, IDToken: t.UID, IDTokenType: models.IDTokenISO14443, PartnerID: &p.ID}
	return a, nil
}

func (f *fakeTokens) ForIDToken(_ context.Context, id string) (*models.Authorization, error) {
	return f.auths[id], nil
}

type fakeRefs map[string]string

func (f fakeRefs) Stage(_ context.Context, id, ref string) error {
	f[id] = ref
	return nil
}

// syncSpawner runs work inline so tests can observe it.
type syncSpawner struct{ calls int }

func (s *syncSpawner) Go(ctx context.Context, _, _ string, fn func(context.Context) error) {
	s.calls++
	_ = fn(ctx)
}

type recordingExecutor struct {
	mu    sync.Mutex
	calls []Execution
}

func (r *recordingExecutor) record(_ context.Context, x Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, x)
	return nil
}

func (r *recordingExecutor) StartSession(ctx context.Context, x Execution) error {
	return r.record(ctx, x)
}
func (r *recordingExecutor) StopSession(ctx context.Context, x Execution) error {
	return r.record(ctx, x)
}
func (r *recordingExecutor) ReserveNow(ctx context.Context, x Execution) error {
	return r.record(ctx, x)
}
func (r *recordingExecutor) UnlockConnector(ctx context.Context, x Execution) error {
	return r.record(ctx, x)
}

var emsp = &models.TenantPartner{ID: 4, TenantID: 1, CountryCode: "DE", PartyID: "EMS"}

type fixture struct {
	p        *Pipeline
	exec     *recordingExecutor
	spawner  *syncSpawner
	tokens   *fakeTokens
	refs     fakeRefs
	stations fakeStations
}

func newFixture() *fixture {
	exec := &recordingExecutor{}
	spawner := &syncSpawner{}
	tokens := &fakeTokens{auths: map[string]*models.Authorization{
		"AB12": {IDToken: "AB12", ExternalToken: &models.ExternalToken{UID: "AB12", CountryCode: "DE", PartyID: "EMS"}},
		"FR99": {IDToken: "FR99", ExternalToken: &models.ExternalToken{UID: "FR99", CountryCode: "FR", PartyID: "OTH"}},
	}}
	refs := fakeRefs{}
	stations := fakeStations{
		"CS-1": {ID: "CS-1", TenantID: 1, LocationID: 10, IsOnline: true},
		"CS-2": {ID: "CS-2", TenantID: 1, LocationID: 10, IsOnline: false},
	}
	p := &Pipeline{
		Stations: stations,
		Evses: fakeEvses{
			"NL*CPO*E1": {ID: 100, StationID: "CS-1", EvseUID: "NL*CPO*E1", StationEvseID: 1},
			"NL*CPO*E2": {ID: 200, StationID: "CS-2", EvseUID: "NL*CPO*E2", StationEvseID: 1},
		},
		Connectors: fakeConnectors{
			"1": {ID: 1000, EvseID: 100, ConnectorUID: "1", StationConnectorID: 7, Type: "IEC_62196_T2"},
		},
		Transactions: fakeTransactions{
			"tx-active":  {ID: 1, TransactionID: "tx-active", StationID: "CS-1", IsActive: true, IDToken: "AB12"},
			"tx-stopped": {ID: 2, TransactionID: "tx-stopped", StationID: "CS-1", IsActive: false, IDToken: "AB12"},
			"tx-foreign": {ID: 3, TransactionID: "tx-foreign", StationID: "CS-1", IsActive: true, IDToken: "FR99"},
		},
		Tokens:     tokens,
		References: refs,
		Executor:   exec,
		Runner:     spawner,
		Timeout:    30 * time.Second,
		Log:        logging.Nop(),
	}
	return &fixture{p: p, exec: exec, spawner: spawner, tokens: tokens, refs: refs, stations: stations}
}

func str(s string) *string { return &s }

func startSession() models.StartSession {
	return models.StartSession{
		ResponseURL: "https://emsp.example/cmd/1",
		Token: models.Token{
			CountryCode: "DE", PartyID: "EMS", UID: "AB12", Type: models.TokenRFID, Valid: true,
		},
		LocationID:             "10",
		EvseUID:                str("NL*CPO*E1"),
		ConnectorID:            str("1"),
		AuthorizationReference: str("auth-ref-1"),
	}
}

func TestStartSessionAccepted(t *testing.T) {
	f := newFixture()
	resp := f.p.StartSession(context.Background(), emsp, startSession())

	assert.Equal(t, models.CommandAccepted, resp.Result)
	assert.Equal(t, 30, resp.Timeout)
	require.Len(t, f.exec.calls, 1)

	x := f.exec.calls[0]
	assert.Equal(t, "CS-1", x.StationID)
	assert.Equal(t, 7, x.Payload["connectorId"], "external connector id replaced by station connector id")
	assert.Equal(t, 1, x.Payload["evseId"])
	assert.NotEmpty(t, x.CorrelationID)
	assert.Equal(t, "auth-ref-1", f.refs["AB12"])
}

func TestStartSessionCredentialMismatch(t *testing.T) {
	f := newFixture()
	c := startSession()
	c.Token.CountryCode = "FR"

	resp := f.p.StartSession(context.Background(), emsp, c)

	assert.Equal(t, models.CommandRejected, resp.Result)
	assert.Zero(t, f.spawner.calls)
	assert.Empty(t, f.exec.calls)
	assert.Empty(t, f.tokens.saved)
}

func TestStartSessionRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*fixture, *models.StartSession)
		reason string
	}{
		{"missing evse", func(_ *fixture, c *models.StartSession) { c.EvseUID = nil }, "evse_uid is required"},
		{"token save fails", func(f *fixture, _ *models.StartSession) { f.tokens.saveErr = errors.New("db down") }, "unable to save token"},
		{"unknown evse", func(_ *fixture, c *models.StartSession) { c.EvseUID = str("nope") }, "unknown EVSE"},
		{"location mismatch", func(_ *fixture, c *models.StartSession) { c.LocationID = "11" }, "unknown charging station"},
		{"unknown connector", func(_ *fixture, c *models.StartSession) { c.ConnectorID = str("9") }, "unknown connector"},
		{"offline", func(_ *fixture, c *models.StartSession) { c.EvseUID = str("NL*CPO*E2"); c.ConnectorID = nil }, "charging station is offline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			c := startSession()
			tt.mutate(f, &c)

			resp := f.p.StartSession(context.Background(), emsp, c)

			assert.Equal(t, models.CommandRejected, resp.Result)
			require.Len(t, resp.Message, 1)
			assert.Equal(t, tt.reason, resp.Message[0].Text)
			assert.Empty(t, f.exec.calls)
		})
	}
}

func TestStopSession(t *testing.T) {
	tests := []struct {
		session string
		want    models.CommandResponseType
		reason  string
	}{
		{"tx-active", models.CommandAccepted, ""},
		{"tx-stopped", models.CommandRejected, "session already stopped"},
		{"tx-foreign", models.CommandRejected, "session does not belong to requesting party"},
		{"tx-missing", models.CommandUnknownSession, "unknown session"},
	}
	for _, tt := range tests {
		t.Run(tt.session, func(t *testing.T) {
			f := newFixture()
			resp := f.p.StopSession(context.Background(), emsp, models.StopSession{SessionID: tt.session})

			assert.Equal(t, tt.want, resp.Result)
			if tt.reason != "" {
				require.Len(t, resp.Message, 1)
				assert.Equal(t, tt.reason, resp.Message[0].Text)
				assert.Empty(t, f.exec.calls)
				return
			}
			require.Len(t, f.exec.calls, 1)
			assert.Equal(t, "tx-active", f.exec.calls[0].Payload["transactionId"])
		})
	}
}

func TestUnlockConnector(t *testing.T) {
	f := newFixture()

	resp := f.p.UnlockConnector(context.Background(), emsp, models.UnlockConnector{LocationID: "10", EvseUID: str("NL*CPO*E1")})
	assert.Equal(t, models.CommandRejected, resp.Result)

	resp = f.p.UnlockConnector(context.Background(), emsp, models.UnlockConnector{LocationID: "10", EvseUID: str("NL*CPO*E1"), ConnectorID: str("1")})
	assert.Equal(t, models.CommandAccepted, resp.Result)
	require.Len(t, f.exec.calls, 1)
	assert.Equal(t, 7, f.exec.calls[0].Payload["connectorId"])
}

func TestReserveNow(t *testing.T) {
	f := newFixture()
	resp := f.p.ReserveNow(context.Background(), emsp, models.ReserveNow{
		Token:         startSession().Token,
		ExpiryDate:    "2026-03-01T12:00:00Z",
		ReservationID: "r-1",
		LocationID:    "10",
		EvseUID:       str("NL*CPO*E1"),
	})
	assert.Equal(t, models.CommandAccepted, resp.Result)
	require.Len(t, f.exec.calls, 1)
	assert.Equal(t, "r-1", f.exec.calls[0].Payload["id"])
}

func TestCancelReservationNotSupported(t *testing.T) {
	f := newFixture()
	resp := f.p.Handle(context.Background(), emsp, models.CommandCancelReservation, []byte(`garbage`))
	assert.Equal(t, models.CommandNotSupported, resp.Result)
	assert.Empty(t, f.exec.calls)
}

func TestHandleDecodes(t *testing.T) {
	f := newFixture()
	body, err := json.Marshal(startSession())
	require.NoError(t, err)

	resp := f.p.Handle(context.Background(), emsp, models.CommandStartSession, body)
	assert.Equal(t, models.CommandAccepted, resp.Result)

	resp = f.p.Handle(context.Background(), emsp, models.CommandStopSession, []byte(`{`))
	assert.Equal(t, models.CommandRejected, resp.Result)

	resp = f.p.Handle(context.Background(), emsp, "SET_CHARGING_PROFILE", nil)
	assert.Equal(t, models.CommandNotSupported, resp.Result)
}
