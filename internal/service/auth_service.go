package service

import (
	"log/slog"
	"net/http"

	"github.com/divvyup/divvy/internal/auth"
	"github.com/divvyup/divvy/internal/models"
)

// AuthService handles registration and login. An account is created on first
// successful registration, together with its canonical member ID.
type AuthService struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
}

// NewAuthService creates a new authentication service.
func NewAuthService(authenticator auth.Authenticator, jwtManager *auth.JWTManager) *AuthService {
	return &AuthService{
		authenticator: authenticator,
		jwtManager:    jwtManager,
	}
}

type credentialsRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type sessionResponse struct {
	Account accountBody `json:"account"`
	Token   string      `json:"token"`
}

type accountBody struct {
	ID                string   `json:"id"`
	Email             string   `json:"email"`
	DisplayName       string   `json:"display_name"`
	CanonicalMemberID string   `json:"canonical_member_id"`
	AliasMemberIDs    []string `json:"alias_member_ids,omitempty"`
	CreatedAt         int64    `json:"created_at"`
}

// Register creates a new account.
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.DisplayName == "" {
		respondBadRequest(w, "email and display_name are required")
		return
	}

	slog.Info("Register request", "email", req.Email)

	account, err := s.authenticator.Register(r.Context(), req.Email, req.DisplayName, req.Password)
	if err != nil {
		slog.Error("Registration failed", "email", req.Email, "error", err)
		respondError(w, err)
		return
	}

	s.respondSession(w, account)
	slog.Info("Account registered", "account_id", account.ID, "email", account.Email)
}

// Login authenticates an account and returns a session token.
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondBadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		respondBadRequest(w, "email and password are required")
		return
	}

	account, err := s.authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		slog.Warn("Login failed", "email", req.Email, "error", err)
		respondError(w, auth.ErrInvalidCredentials)
		return
	}

	s.respondSession(w, account)
	slog.Info("Account logged in", "account_id", account.ID)
}

func (s *AuthService) respondSession(w http.ResponseWriter, account *models.Account) {
	token, err := s.jwtManager.Generate(account)
	if err != nil {
		slog.Error("Failed to generate token", "account_id", account.ID, "error", err)
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{
		Account: toAccountBody(account),
		Token:   token,
	})
}

func toAccountBody(account *models.Account) accountBody {
	return accountBody{
		ID:                account.ID,
		Email:             account.Email,
		DisplayName:       account.DisplayName,
		CanonicalMemberID: account.CanonicalMemberID,
		AliasMemberIDs:    account.AliasMemberIDs,
		CreatedAt:         account.CreatedAt,
	}
}
