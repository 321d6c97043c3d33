package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ocpi/internal/logging"
	"ocpi/internal/models"
	"ocpi/internal/partnerclient"
	"ocpi/internal/security"
	"ocpi/internal/tokens"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const partnerSecret = "s3cret-partner-token"

var emsp = &models.TenantPartner{
	ID:          4,
	TenantID:    1,
	CountryCode: "DE",
	PartyID:     "EMS",
	TokenHash:   security.HashSecretSHA256(partnerSecret),
}

type fakePartners struct{}

func (fakePartners) GetByParty(_ context.Context, cc, pid string) (*models.TenantPartner, error) {
	if cc == emsp.CountryCode && pid == emsp.PartyID {
		return emsp, nil
	}
	return nil, nil
}

type fakeCommands struct {
	command models.CommandType
	body    string
	partner *models.TenantPartner
}

func (f *fakeCommands) Handle(_ context.Context, p *models.TenantPartner, c models.CommandType, body []byte) models.CommandResponse {
	f.command, f.body, f.partner = c, string(body), p
	return models.CommandResponse{Result: models.CommandAccepted, Timeout: 30}
}

type fakeTokens struct {
	upserted []models.Token
	patched  []models.TokenPatch
	err      error
}

func (f *fakeTokens) Upsert(_ context.Context, _ *models.TenantPartner, t models.Token) (*models.Authorization, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.upserted = append(f.upserted, t)
	return &models.Authorization{}, nil
}

func (f *fakeTokens) Patch(_ context.Context, _ *models.TenantPartner, _ string, _ models.TokenType, p models.TokenPatch) (*models.Authorization, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.patched = append(f.patched, p)
	return &models.Authorization{}, nil
}

func (f *fakeTokens) Get(_ context.Context, p *models.TenantPartner, uid string, tt models.TokenType) (*models.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Token{CountryCode: p.CountryCode, PartyID: p.PartyID, UID: uid, Type: tt, Valid: true}, nil
}

type fakeCdrs map[string]*models.CDR

func (f fakeCdrs) Get(_ context.Context, tenantID int, id string) (*models.CDR, error) {
	c := f[id]
	if c == nil || c.TenantID != tenantID {
		return nil, nil
	}
	return c, nil
}

type fixture struct {
	srv      *httptest.Server
	commands *fakeCommands
	tokens   *fakeTokens
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{commands: &fakeCommands{}, tokens: &fakeTokens{}}
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	cdrs := fakeCdrs{"cdr-1": {ID: "cdr-1", TenantID: 1, TransactionID: "tx-1", StartTime: start, EndTime: start.Add(90 * time.Minute), TotalTime: 90 * time.Minute, TotalCost: 7.5, Currency: "EUR"}}
	s := NewServer(fakePartners{}, f.commands, f.tokens, cdrs, logging.Nop())
	f.srv = httptest.NewServer(s.Routes())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, authed bool) (*http.Response, partnerclient.Envelope) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if authed {
		req.Header.Set("Authorization", security.EncodeCredentialToken(partnerSecret))
		req.Header.Set(HeaderFromCountryCode, "DE")
		req.Header.Set(HeaderFromPartyID, "EMS")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env partnerclient.Envelope
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp, env
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequirePartner(t *testing.T) {
	f := newFixture(t)

	resp, env := f.do(t, http.MethodGet, "/ocpi/2.2.1/cdrs/cdr-1", "", false)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, StatusClientError, env.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, f.srv.URL+"/ocpi/2.2.1/cdrs/cdr-1", nil)
	req.Header.Set("Authorization", "Token wrong")
	req.Header.Set(HeaderFromCountryCode, "DE")
	req.Header.Set(HeaderFromPartyID, "EMS")
	bad, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, bad.StatusCode)

	req.Header.Set("Authorization", "Token "+partnerSecret)
	req.Header.Del(HeaderFromPartyID)
	missing, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusBadRequest, missing.StatusCode)
}

func TestPostCommand(t *testing.T) {
	f := newFixture(t)
	body := `{"response_url":"https://emsp/cb","session_id":"tx-1"}`

	resp, env := f.do(t, http.MethodPost, "/ocpi/2.2.1/commands/STOP_SESSION", body, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StatusSuccess, env.StatusCode)
	assert.Equal(t, models.CommandStopSession, f.commands.command)
	assert.JSONEq(t, body, f.commands.body)
	assert.Equal(t, emsp, f.commands.partner)

	var cr models.CommandResponse
	require.NoError(t, json.Unmarshal(env.Data, &cr))
	assert.Equal(t, models.CommandAccepted, cr.Result)
	assert.Equal(t, 30, cr.Timeout)
}

func TestPostCommandOversizedBodyRejected(t *testing.T) {
	f := newFixture(t)
	body := `{"response_url":"` + strings.Repeat("x", maxBodySize) + `"}`

	resp, env := f.do(t, http.MethodPost, "/ocpi/2.2.1/commands/START_SESSION", body, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, StatusInvalidParameters, env.StatusCode)
	assert.Empty(t, f.commands.command)

	var cr models.CommandResponse
	require.NoError(t, json.Unmarshal(env.Data, &cr))
	assert.Equal(t, models.CommandRejected, cr.Result)
	require.Len(t, cr.Message, 1)
}

func TestPutToken(t *testing.T) {
	f := newFixture(t)
	body := `{"country_code":"DE","party_id":"EMS","uid":"012345678","type":"RFID","contract_id":"DE-EMS-C1","issuer":"EMS","valid":true,"whitelist":"ALLOWED","last_updated":"2026-03-01T09:00:00Z"}`

	resp, env := f.do(t, http.MethodPut, "/ocpi/2.2.1/tokens/DE/EMS/012345678?type=RFID", body, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, StatusSuccess, env.StatusCode)
	require.Len(t, f.tokens.upserted, 1)
	assert.Equal(t, "DE-EMS-C1", f.tokens.upserted[0].ContractID)
}

func TestPutTokenRejectsMismatchedBody(t *testing.T) {
	f := newFixture(t)
	body := `{"country_code":"DE","party_id":"EMS","uid":"other","type":"RFID","valid":true,"whitelist":"ALLOWED"}`

	resp, env := f.do(t, http.MethodPut, "/ocpi/2.2.1/tokens/DE/EMS/012345678", body, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, StatusInvalidParameters, env.StatusCode)
	assert.Empty(t, f.tokens.upserted)
}

func TestTokenOfOtherParty(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodGet, "/ocpi/2.2.1/tokens/NL/XYZ/abc", "", true)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGetToken(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, http.MethodGet, "/ocpi/2.2.1/tokens/DE/EMS/abc?type=APP_USER", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tok models.Token
	require.NoError(t, json.Unmarshal(env.Data, &tok))
	assert.Equal(t, "abc", tok.UID)
	assert.Equal(t, models.TokenAppUser, tok.Type)
}

func TestTokenErrors(t *testing.T) {
	tests := []struct {
		err        error
		httpStatus int
		code       int
	}{
		{tokens.ErrUnknownToken, http.StatusNotFound, StatusUnknownToken},
		{tokens.ErrUnknownTokenType, http.StatusBadRequest, StatusInvalidParameters},
		{tokens.ErrPartyMismatch, http.StatusForbidden, StatusClientError},
		{assert.AnError, http.StatusInternalServerError, StatusServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.tokens.err = tt.err
			resp, env := f.do(t, http.MethodPatch, "/ocpi/2.2.1/tokens/DE/EMS/abc", `{"valid":false}`, true)
			assert.Equal(t, tt.httpStatus, resp.StatusCode)
			assert.Equal(t, tt.code, env.StatusCode)
		})
	}
}

func TestPatchToken(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, http.MethodPatch, "/ocpi/2.2.1/tokens/DE/EMS/abc", `{"visual_number":"V-42"}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.tokens.patched, 1)
	require.NotNil(t, f.tokens.patched[0].VisualNumber)
	assert.Equal(t, "V-42", *f.tokens.patched[0].VisualNumber)
}

func TestGetCdr(t *testing.T) {
	f := newFixture(t)
	resp, env := f.do(t, http.MethodGet, "/ocpi/2.2.1/cdrs/cdr-1", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c cdrView
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, "tx-1", c.SessionID)
	assert.Equal(t, 1.5, c.TotalTime)
	assert.Equal(t, 7.5, c.TotalCost)

	resp, env = f.do(t, http.MethodGet, "/ocpi/2.2.1/cdrs/nope", "", true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, StatusClientError, env.StatusCode)
}
