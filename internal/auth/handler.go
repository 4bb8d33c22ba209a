package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/beexponential/insights/internal/logger"
	"github.com/beexponential/insights/internal/session"
	"github.com/beexponential/insights/internal/tenant"
)

// Users looks up credentials.
type Users interface {
	GetByUsername(ctx context.Context, tenantID, name string) (*User, error)
}

type Handler struct {
	Repo     Users
	JWT      *JWT
	Sessions session.Store
}

type loginBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Role        string    `json:"role"`
	Department  string    `json:"department"`
}

type loginInput struct {
	Body loginBody
}

type loginOutput struct {
	Body tokenResponse
}

// Register mounts the public login endpoint.
func Register(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/v1/auth/login",
		Summary:     "Login",
		Tags:        []string{"Auth"},
	}, h.login)
}

// RegisterSession mounts the endpoints that need a valid token.
func RegisterSession(api huma.API, h *Handler) {
	huma.Register(api, huma.Operation{
		OperationID: "refresh",
		Method:      http.MethodPost,
		Path:        "/v1/auth/refresh",
		Summary:     "Refresh token",
		Tags:        []string{"Auth"},
	}, h.refresh)

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/v1/auth/logout",
		Summary:       "Logout",
		Tags:          []string{"Auth"},
		DefaultStatus: http.StatusNoContent,
	}, h.logout)
}

func (h *Handler) issue(ctx context.Context, u User, sid string) (*loginOutput, error) {
	tok, err := h.JWT.Generate(u, sid)
	if err != nil {
		return nil, err
	}
	return &loginOutput{Body: tokenResponse{
		AccessToken: tok,
		ExpiresAt:   time.Now().Add(h.JWT.TTL()),
		Role:        u.Role,
		Department:  u.Department,
	}}, nil
}

func (h *Handler) login(ctx context.Context, in *loginInput) (*loginOutput, error) {
	tid := tenant.FromContext(ctx)
	u, err := h.Repo.GetByUsername(ctx, tid, in.Body.Username)
	if err != nil {
		logger.L.Error("login lookup", "tenant", tid, "err", err)
		return nil, huma.Error401Unauthorized("invalid credentials")
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Body.Password)) != nil {
		return nil, huma.Error401Unauthorized("invalid credentials")
	}
	s, err := h.Sessions.Create(ctx, session.Session{
		UserID:     u.ID,
		Username:   u.Username,
		TenantID:   u.TenantID,
		Role:       u.Role,
		Department: u.Department,
	})
	if err != nil {
		return nil, huma.Error503ServiceUnavailable("session store unavailable", err)
	}
	return h.issue(ctx, *u, s.ID)
}

type emptyInput struct{}

func (h *Handler) refresh(ctx context.Context, _ *emptyInput) (*loginOutput, error) {
	c := ClaimsFromContext(ctx)
	if c == nil || c.Subject == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	u := User{ID: c.Subject, TenantID: c.TenantID, Role: c.Role, Department: c.Department}
	return h.issue(ctx, u, c.SessionID)
}

func (h *Handler) logout(ctx context.Context, _ *emptyInput) (*struct{}, error) {
	c := ClaimsFromContext(ctx)
	if c == nil {
		return nil, huma.Error401Unauthorized("unauthorized")
	}
	if c.SessionID != "" {
		if err := h.Sessions.Teardown(ctx, c.SessionID); err != nil {
			return nil, huma.Error503ServiceUnavailable("session store unavailable", err)
		}
	}
	return nil, nil
}
