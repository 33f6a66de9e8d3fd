package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosisky/leaderboard-system/internal/config"
	"github.com/nosisky/leaderboard-system/internal/domain"
	"github.com/nosisky/leaderboard-system/internal/identity"
	"github.com/nosisky/leaderboard-system/internal/websocket"
)

type fakeScores struct {
	submitEntry domain.ScoreEntry
	submitErr   error
	entries     []domain.ScoreEntry
	total       int
	listErr     error
	lastBearer  string
	lastScore   int64
}

func (f *fakeScores) Submit(_ context.Context, bearer string, score int64) (domain.ScoreEntry, error) {
	f.lastBearer = bearer
	f.lastScore = score
	return f.submitEntry, f.submitErr
}

func (f *fakeScores) Leaderboard(context.Context) ([]domain.ScoreEntry, int, error) {
	return f.entries, f.total, f.listErr
}

type fakeIdentity struct {
	signUpErr  error
	loginErr   error
	confirmErr error
	tokens     *identity.TokenSet
}

func (f *fakeIdentity) SignUp(context.Context, string, string, string, string) error {
	return f.signUpErr
}

func (f *fakeIdentity) Login(context.Context, string, string) (*identity.TokenSet, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.tokens, nil
}

func (f *fakeIdentity) Confirm(context.Context, string, string) error {
	return f.confirmErr
}

type staticVerifier struct {
	claim domain.IdentityClaim
	err   error
}

func (v *staticVerifier) Verify(context.Context, string) (domain.IdentityClaim, error) {
	return v.claim, v.err
}

func okVerifier() *staticVerifier {
	return &staticVerifier{claim: domain.IdentityClaim{
		IsAuthenticated: true,
		UserID:          "user-1",
		Username:        "alice",
		Email:           "alice@example.com",
	}}
}

func deniedVerifier() *staticVerifier {
	return &staticVerifier{
		claim: domain.IdentityClaim{IsAuthenticated: false, Error: "token verification failed"},
		err:   domain.ErrInvalidToken,
	}
}

type testDeps struct {
	scores   *fakeScores
	identity *fakeIdentity
	verifier domain.TokenVerifier
	registry domain.ConnectionRegistry
}

func newTestServer(t *testing.T, deps testDeps) *Server {
	t.Helper()

	if deps.scores == nil {
		deps.scores = &fakeScores{}
	}
	if deps.identity == nil {
		deps.identity = &fakeIdentity{tokens: &identity.TokenSet{}}
	}
	if deps.verifier == nil {
		deps.verifier = okVerifier()
	}

	clock := clockwork.NewRealClock()
	hub := websocket.NewHub(clock)
	t.Cleanup(hub.Stop)

	if deps.registry == nil {
		deps.registry = hub
	}

	cfg := &config.Config{Port: "0"}
	return NewServer(cfg, deps.scores, deps.identity, deps.verifier, hub, deps.registry,
		NewConnectionLimits(100, 10, 100, 100), clock)
}

func doJSON(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

// --- Submit ---

func TestHandleSubmit_Success(t *testing.T) {
	scores := &fakeScores{submitEntry: domain.ScoreEntry{ID: "score-1"}}
	s := newTestServer(t, testDeps{scores: scores})

	rec := doJSON(t, s, http.MethodPost, "/submit", `{"score":1500}`,
		map[string]string{"Authorization": "Bearer token"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Score submitted","scoreId":"score-1"}`, rec.Body.String())
	assert.Equal(t, "Bearer token", scores.lastBearer)
	assert.Equal(t, int64(1500), scores.lastScore)
}

func TestHandleSubmit_MissingScore(t *testing.T) {
	s := newTestServer(t, testDeps{})

	rec := doJSON(t, s, http.MethodPost, "/submit", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSubmit_UnauthorizedIsGeneric(t *testing.T) {
	scores := &fakeScores{submitErr: domain.ErrUnauthenticated}
	s := newTestServer(t, testDeps{scores: scores})

	rec := doJSON(t, s, http.MethodPost, "/submit", `{"score":100}`, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	// The response must not leak the internal verification reason.
	assert.JSONEq(t, `{"error":"Unauthorized","type":"unauthorized"}`, rec.Body.String())
}

func TestHandleSubmit_InvalidScore(t *testing.T) {
	scores := &fakeScores{submitErr: domain.ErrInvalidScore}
	s := newTestServer(t, testDeps{scores: scores})

	rec := doJSON(t, s, http.MethodPost, "/submit", `{"score":-5}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Leaderboard ---

func TestHandleLeaderboard_Success(t *testing.T) {
	scores := &fakeScores{
		entries: []domain.ScoreEntry{{ID: "a", UserID: "u1", UserName: "alice", Score: 900, Timestamp: 5}},
		total:   3,
	}
	s := newTestServer(t, testDeps{scores: scores})

	rec := doJSON(t, s, http.MethodGet, "/leaderboard", "",
		map[string]string{"Authorization": "Bearer token"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"leaderboard": [{"id":"a","userId":"u1","userName":"alice","score":900,"timestamp":5}],
		"totalEntries": 3
	}`, rec.Body.String())
}

func TestHandleLeaderboard_EmptyIsArray(t *testing.T) {
	s := newTestServer(t, testDeps{scores: &fakeScores{}})

	rec := doJSON(t, s, http.MethodGet, "/leaderboard", "",
		map[string]string{"Authorization": "Bearer token"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"leaderboard":[],"totalEntries":0}`, rec.Body.String())
}

func TestHandleLeaderboard_Unauthorized(t *testing.T) {
	s := newTestServer(t, testDeps{verifier: deniedVerifier()})

	rec := doJSON(t, s, http.MethodGet, "/leaderboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- Identity ---

func TestHandleSignUp_Success(t *testing.T) {
	s := newTestServer(t, testDeps{})

	rec := doJSON(t, s, http.MethodPost, "/signup",
		`{"username":"alice","password":"Passw0rd!","email":"alice@example.com","name":"Alice"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "User registered successfully")
}

func TestHandleSignUp_ValidationFailure(t *testing.T) {
	s := newTestServer(t, testDeps{})

	rec := doJSON(t, s, http.MethodPost, "/signup",
		`{"username":"al","password":"Passw0rd!","email":"alice@example.com","name":"Alice"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSignUp_Conflict(t *testing.T) {
	s := newTestServer(t, testDeps{identity: &fakeIdentity{signUpErr: identity.ErrUsernameExists}})

	rec := doJSON(t, s, http.MethodPost, "/signup",
		`{"username":"alice","password":"Passw0rd!","email":"alice@example.com","name":"Alice"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleLogin_Success(t *testing.T) {
	s := newTestServer(t, testDeps{identity: &fakeIdentity{tokens: &identity.TokenSet{
		IDToken:      "id-token",
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresIn:    3600,
	}}})

	rec := doJSON(t, s, http.MethodPost, "/login", `{"username":"alice","password":"Passw0rd!"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"message": "Login successful",
		"idToken": "id-token",
		"accessToken": "access-token",
		"refreshToken": "refresh-token",
		"expiresIn": 3600
	}`, rec.Body.String())
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	s := newTestServer(t, testDeps{identity: &fakeIdentity{loginErr: identity.ErrNotAuthorized}})

	rec := doJSON(t, s, http.MethodPost, "/login", `{"username":"alice","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleConfirm_CodeMismatch(t *testing.T) {
	s := newTestServer(t, testDeps{identity: &fakeIdentity{confirmErr: identity.ErrCodeMismatch}})

	rec := doJSON(t, s, http.MethodPost, "/confirm", `{"username":"alice","code":"123456"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleConfirm_RejectsShortCode(t *testing.T) {
	s := newTestServer(t, testDeps{})

	rec := doJSON(t, s, http.MethodPost, "/confirm", `{"username":"alice","code":"123"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- Gateway callbacks ---

func TestHandleGatewayConnect(t *testing.T) {
	s := newTestServer(t, testDeps{})

	rec := doJSON(t, s, http.MethodPost, "/gateway/connect", `{"connectionId":"gw-1"}`,
		map[string]string{"Authorization": "Bearer token"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Connected"}`, rec.Body.String())

	records, err := s.registry.ListReachable(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "gw-1", records[0].ConnectionID)
	assert.Equal(t, "user-1", records[0].UserID)
}

func TestHandleGatewayConnect_Unauthorized(t *testing.T) {
	s := newTestServer(t, testDeps{verifier: deniedVerifier()})

	rec := doJSON(t, s, http.MethodPost, "/gateway/connect", `{"connectionId":"gw-1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleGatewayDisconnect_IsIdempotent(t *testing.T) {
	s := newTestServer(t, testDeps{})

	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodPost, "/gateway/disconnect", `{"connectionId":"gw-1"}`, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"Disconnected"}`, rec.Body.String())
	}
}

// --- Health ---

func TestHandleHealthEndpoints(t *testing.T) {
	s := newTestServer(t, testDeps{})

	rec := doJSON(t, s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
}

func TestHandleReadiness_FailingCheck(t *testing.T) {
	s := newTestServer(t, testDeps{})
	s.readiness = []HealthCheck{{
		Name:  "redis",
		Check: func(context.Context) error { return assert.AnError },
	}}

	rec := doJSON(t, s, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, "redis", body["failed_check"])
}
