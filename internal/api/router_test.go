package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cardsheets/internal/api/handlers"
	"cardsheets/internal/api/middleware"
	"cardsheets/internal/engine/cards"
	"cardsheets/internal/engine/reconcile"
	"cardsheets/internal/engine/team"
	"cardsheets/internal/platform/audit"
	"cardsheets/internal/platform/auth"
	"cardsheets/internal/platform/config"
	"cardsheets/internal/platform/docstore"
	"cardsheets/internal/platform/email"
	"cardsheets/internal/platform/repositories"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "https://app.cardsheets.io"

type discardSender struct{}

func (discardSender) Send(email.Message) error { return nil }

// brokenCommits fails every batch commit.
type brokenCommits struct {
	*docstore.MemoryStore
}

func (s brokenCommits) NewBatch() docstore.Batch {
	return brokenBatch{s.MemoryStore.NewBatch()}
}

type brokenBatch struct {
	docstore.Batch
}

func (brokenBatch) Commit(ctx context.Context) error {
	return errors.New("transaction aborted")
}

type testServer struct {
	handler  http.Handler
	store    *docstore.MemoryStore
	tokenSvc *auth.TokenService
	auditLog *audit.Logger
}

func newTestServer(t *testing.T, store docstore.Store, mem *docstore.MemoryStore) *testServer {
	t.Helper()

	tokenSvc := auth.NewTokenService(config.JWTConfig{Secret: "test", Issuer: "cardsheets", AccessTokenTTL: time.Hour})
	businesses := repositories.NewBusinessRepository(store, 0)
	auditLog := audit.NewLogger(mem)
	t.Cleanup(auditLog.Wait)

	reg := prometheus.NewRegistry()
	reconcileMetrics, err := reconcile.NewMetrics(reg)
	require.NoError(t, err)
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	require.NoError(t, err)

	limiter := middleware.NewRateLimiter(config.RateLimitConfig{APIReadPerMinute: 1000, APIWritePerMinute: 1000, SignupPerMinute: 1000})
	t.Cleanup(limiter.Close)

	teamSvc := team.NewService(store, businesses, discardSender{}, auditLog, team.Options{AppURL: "https://app.example.com"})

	handler := NewRouter(&Dependencies{
		ReconcileHandler: handlers.NewReconcileHandler(reconcile.NewService(store, businesses, reconcileMetrics), auditLog),
		BusinessHandler:  handlers.NewBusinessHandler(teamSvc, tokenSvc),
		TeamHandler:      handlers.NewTeamHandler(teamSvc, tokenSvc),
		CardHandler:      handlers.NewCardHandler(cards.NewService(store, businesses, discardSender{}, auditLog, "https://app.example.com")),
		AuditHandler:     handlers.NewAuditHandler(mem),
		MetricsHandler:   handlers.NewMetricsHandler(reg),
		AuthMiddleware:   middleware.NewAuthMiddleware(tokenSvc),
		TenantMiddleware: middleware.NewTenantMiddleware(businesses),
		RateLimiter:      limiter,
		HTTPMetrics:      httpMetrics,
		CORS:             config.CORSConfig{AllowedOrigins: []string{origin}, MaxAge: 600},
	})

	return &testServer{handler: handler, store: mem, tokenSvc: tokenSvc, auditLog: auditLog}
}

func seededStore(t *testing.T) *docstore.MemoryStore {
	t.Helper()
	store := docstore.NewMemoryStore()
	b := store.NewBatch()
	b.Set("businesses/b1", docstore.Document{"id": "b1", "name": "Acme", "ownerUid": "u1", "ownerEmail": "owner@acme.io"})
	b.Set("businesses/b1/templateProfiles/p1", docstore.Document{"id": "p1", "name": "Old"})
	b.Set("businesses/b1/cards/c1", docstore.Document{"typeOfCards": "T1", "typeOfProfile": "Old"})
	b.Set("businesses/b1/cards/c2", docstore.Document{"typeOfCards": "T1", "typeOfProfile": "Old"})
	b.Set("businesses/b1/cards/c3", docstore.Document{"typeOfCards": "T1", "typeOfProfile": "Other"})
	require.NoError(t, b.Commit(context.Background()))
	return store
}

func (s *testServer) token(t *testing.T, businessID, role string) string {
	t.Helper()
	token, err := s.tokenSvc.GenerateAccessToken("u1", businessID, role, "owner@acme.io")
	require.NoError(t, err)
	return token
}

func (s *testServer) do(method, path, token, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Origin", origin)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

const reconcilePath = "/api/v1/card-templates/reconcile"

func TestReconcileEndpoint_StatusCodes(t *testing.T) {
	mem := seededStore(t)
	srv := newTestServer(t, mem, mem)
	token := srv.token(t, "b1", "owner")
	rename := `{"businessId":"b1","profiles":[{"id":"p1","name":"New","templates":[{"typeOfCards":"T1"}]}]}`

	tests := []struct {
		name        string
		method      string
		token       string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "Preflight", method: http.MethodOptions, wantStatus: http.StatusNoContent},
		{name: "Wrong Method", method: http.MethodGet, token: token, wantStatus: http.StatusMethodNotAllowed},
		{name: "Missing Token", method: http.MethodPost, contentType: "application/json", body: rename, wantStatus: http.StatusUnauthorized},
		{name: "Bad Token", method: http.MethodPost, token: "garbage", contentType: "application/json", body: rename, wantStatus: http.StatusUnauthorized},
		{name: "Wrong Content Type", method: http.MethodPost, token: token, contentType: "text/plain", body: rename, wantStatus: http.StatusBadRequest},
		{name: "Malformed JSON", method: http.MethodPost, token: token, contentType: "application/json", body: `{"businessId":`, wantStatus: http.StatusBadRequest},
		{name: "Missing BusinessID", method: http.MethodPost, token: srv.token(t, "", "owner"), contentType: "application/json", body: `{"profiles":[{"id":"p1","name":"x"}]}`, wantStatus: http.StatusBadRequest},
		{name: "Empty Arrays", method: http.MethodPost, token: token, contentType: "application/json", body: `{"businessId":"b1","profiles":[],"updates":[]}`, wantStatus: http.StatusBadRequest},
		{name: "Other Business Token", method: http.MethodPost, token: srv.token(t, "b2", "owner"), contentType: "application/json", body: rename, wantStatus: http.StatusForbidden},
		{name: "Token Without Business", method: http.MethodPost, token: srv.token(t, "", "owner"), contentType: "application/json", body: rename, wantStatus: http.StatusForbidden},
		{name: "Unknown Business", method: http.MethodPost, token: srv.token(t, "nope", "owner"), contentType: "application/json", body: `{"businessId":"nope","profiles":[{"id":"p1","name":"x"}]}`, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(tt.method, reconcilePath, tt.token, tt.contentType, tt.body)
			assert.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
		})
	}

	snap, err := mem.Get(context.Background(), "businesses/b1/cards/c1")
	require.NoError(t, err)
	assert.Equal(t, "Old", snap.Data["typeOfProfile"], "rejected requests must not write")
}

func TestReconcileEndpoint_Success(t *testing.T) {
	mem := seededStore(t)
	srv := newTestServer(t, mem, mem)

	rr := srv.do(http.MethodPost, reconcilePath, srv.token(t, "b1", "member"), "application/json; charset=utf-8",
		`{"businessId":"b1","profiles":[{"id":"p1","name":"New","templates":[{"typeOfCards":"T1"}]}]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, origin, rr.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["updatedCardsCount"])
	assert.Equal(t, float64(0), body["updatedTemplatesCount"])
	assert.Equal(t, float64(1), body["updatedProfilesCount"])
	assert.NotContains(t, body, "Committed")
}

func TestReconcileEndpoint_CommitFailure(t *testing.T) {
	mem := seededStore(t)
	srv := newTestServer(t, brokenCommits{mem}, mem)

	rr := srv.do(http.MethodPost, reconcilePath, srv.token(t, "b1", "owner"), "application/json",
		`{"businessId":"b1","profiles":[{"id":"p1","name":"New","templates":[{"typeOfCards":"T1"}]}]}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "transaction aborted")

	snap, err := mem.Get(context.Background(), "businesses/b1/cards/c1")
	require.NoError(t, err)
	assert.Equal(t, "Old", snap.Data["typeOfProfile"])
}

func TestAccountFlow(t *testing.T) {
	mem := docstore.NewMemoryStore()
	srv := newTestServer(t, mem, mem)

	rr := srv.do(http.MethodPost, "/api/v1/businesses/signup", "", "application/json",
		`{"businessName":"Acme","email":"owner@acme.io","password":"correct-horse","fullName":"Olive"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var owner handlers.SignupResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &owner))
	assert.NotContains(t, rr.Body.String(), "passwordHash")

	rr = srv.do(http.MethodPost, "/api/v1/businesses/signup", "", "application/json",
		`{"businessName":"Acme 2","email":"owner@acme.io","password":"correct-horse","fullName":"Olive"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(http.MethodPost, "/api/v1/businesses/signup", "", "application/json", `{"businessName":"Acme"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(http.MethodPost, "/api/v1/invitations", owner.AccessToken, "application/json", `{"email":"new@acme.io","permissions":["cards:write"]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var invitation handlers.InvitationResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &invitation))

	signUp := `{"invitationCode":"` + invitation.InvitationCode + `","email":"new@acme.io","password":"member-pass","fullName":"Nina"}`
	rr = srv.do(http.MethodPost, "/api/v1/team-members/signup", "", "application/json", signUp)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var member handlers.SignupResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &member))
	assert.Equal(t, owner.BusinessID, member.BusinessID)

	rr = srv.do(http.MethodPost, "/api/v1/team-members/signup", "", "application/json", signUp)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = srv.do(http.MethodPost, "/api/v1/invitations", member.AccessToken, "application/json", `{"email":"x@acme.io"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code, "members cannot invite")

	rr = srv.do(http.MethodPost, "/api/v1/cards", member.AccessToken, "application/json", `{"typeOfCards":"Leads","fields":{"company":"Initech"}}`)
	assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = srv.do(http.MethodDelete, "/api/v1/team-members/"+owner.UID, owner.AccessToken, "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = srv.do(http.MethodDelete, "/api/v1/team-members/"+member.UID, owner.AccessToken, "", "")
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = srv.do(http.MethodDelete, "/api/v1/team-members/"+member.UID, owner.AccessToken, "", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	srv.auditLog.Wait()
	rr = srv.do(http.MethodGet, "/api/v1/audit-logs?limit=2", owner.AccessToken, "", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var trail struct {
		Entries []audit.Entry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trail))
	assert.Len(t, trail.Entries, 2)

	rr = srv.do(http.MethodGet, "/api/v1/audit-logs?limit=zero", owner.AccessToken, "", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	mem := seededStore(t)
	srv := newTestServer(t, mem, mem)

	srv.do(http.MethodPost, reconcilePath, srv.token(t, "b1", "owner"), "application/json", `{"businessId":"b1","updates":[{"docId":"x"}]}`)

	rr := srv.do(http.MethodGet, "/metrics", "", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `cardsheets_reconcile_requests_total{outcome="noop"} 1`)
}
