package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcollado/adforge/internal/service/auth"
)

const testSigningKey = "test-signing-key-needs-32-chars!!"

func newAuthHandler(t *testing.T) (*AuthHandler, auth.JWTService) {
	t.Helper()

	jwtService, err := auth.NewJWTService(auth.Config{
		SigningKey:    testSigningKey,
		TokenLifetime: time.Hour,
	})
	require.NoError(t, err)

	hash, err := auth.HashPassword("correct horse battery")
	require.NoError(t, err)

	creds := NewOperatorCredentials("operator", hash)
	return NewAuthHandler(creds, jwtService, auth.NewBcryptVerifier(), testLogger()), jwtService
}

func loginRequest(t *testing.T, username, password string) *http.Request {
	t.Helper()
	body, err := json.Marshal(LoginRequest{Username: username, Password: password})
	require.NoError(t, err)
	return httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
}

func TestAuthHandler_LoginSuccess(t *testing.T) {
	t.Parallel()

	handler, jwtService := newAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Login(rec, loginRequest(t, "operator", "correct horse battery"))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)

	claims, err := jwtService.ValidateToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, NewOperatorCredentials("operator", "").UserID, claims.UserID)
}

func TestAuthHandler_LoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	handler, _ := newAuthHandler(t)

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "operator", password: "nope"},
		{name: "unknown user", username: "intruder", password: "correct horse battery"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			handler.Login(rec, loginRequest(t, tc.username, tc.password))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Invalid credentials")
		})
	}
}

func TestAuthHandler_LoginRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	handler, _ := newAuthHandler(t)

	rec := httptest.NewRecorder()
	handler.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"operator"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_RequiresAuthentication(t *testing.T) {
	t.Parallel()

	handler, jwtService := newAuthHandler(t)

	router := NewRouter(RouterDeps{
		Tasks:      newHandler(&mockTaskService{}, &mockCatalog{}),
		Auth:       handler,
		JWTService: jwtService,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/providers/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/providers/health", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_AcceptsValidToken(t *testing.T) {
	t.Parallel()

	handler, jwtService := newAuthHandler(t)

	router := NewRouter(RouterDeps{
		Tasks:      newHandler(&mockTaskService{}, &mockCatalog{}),
		Auth:       handler,
		JWTService: jwtService,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, loginRequest(t, "operator", "correct horse battery"))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/providers/health", nil)
	req.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Healthz(t *testing.T) {
	t.Parallel()

	handler, jwtService := newAuthHandler(t)
	router := NewRouter(RouterDeps{
		Tasks:      newHandler(&mockTaskService{}, &mockCatalog{}),
		Auth:       handler,
		JWTService: jwtService,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}
