package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/lcollado/adforge/internal/api/shared"
	"github.com/lcollado/adforge/internal/service/auth"
)

// OperatorCredentials is the single configured operator account.
type OperatorCredentials struct {
	Username     string
	PasswordHash string

	// UserID identifies the operator in issued tokens. Derived from the
	// username so it is stable across restarts.
	UserID uuid.UUID
}

// NewOperatorCredentials builds the operator account from config.
func NewOperatorCredentials(username, passwordHash string) OperatorCredentials {
	return OperatorCredentials{
		Username:     username,
		PasswordHash: passwordHash,
		UserID:       uuid.NewSHA1(uuid.NameSpaceOID, []byte(username)),
	}
}

// AuthHandler serves the authentication endpoints.
type AuthHandler struct {
	creds    OperatorCredentials
	jwt      auth.JWTService
	verifier auth.PasswordVerifier
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(creds OperatorCredentials, jwt auth.JWTService, verifier auth.PasswordVerifier, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		creds:    creds,
		jwt:      jwt,
		verifier: verifier,
		logger:   logger.With("component", "auth_handler"),
	}
}

// Login handles POST /api/auth/login, exchanging operator credentials
// for an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Username and password are required")
		return
	}

	if req.Username != h.creds.Username ||
		h.verifier.Compare(h.creds.PasswordHash, req.Password) != nil {
		h.logger.Warn("failed login attempt", "username", req.Username)
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.jwt.GenerateToken(r.Context(), h.creds.UserID)
	if err != nil {
		h.logger.Error("failed to issue access token", "error", err)
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, LoginResponse{AccessToken: token})
}
