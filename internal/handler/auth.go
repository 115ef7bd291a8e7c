package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/config"
	mw "github.com/iliyamo/trainer-booking/internal/middleware"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
	"github.com/iliyamo/trainer-booking/internal/utils"
)

// UserStore reads and creates staff accounts.
type UserStore interface {
	Create(ctx context.Context, studioID string, trainerID *string, email, password, role string, cost int) (string, error)
	GetByEmail(ctx context.Context, email string) (model.StaffUser, error)
	GetByID(ctx context.Context, id string) (model.StaffUser, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID string, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
	Log    *zap.Logger
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Log: log}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type staffReq struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Role      string  `json:"role"` // TRAINER | ADMIN
	TrainerID *string `json:"trainer_id"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	StudioID  string  `json:"studio_id"`
	TrainerID *string `json:"trainer_id,omitempty"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func unauthorized(c echo.Context, msg string) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": msg, "code": "UNAUTHENTICATED"})
}

// issue signs an access token for u and stores a fresh refresh token.
func (h *AuthHandler) issue(ctx context.Context, u model.StaffUser) (authResp, error) {
	trainerID := ""
	if u.TrainerID != nil {
		trainerID = *u.TrainerID
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, u.StudioID, trainerID, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, Role: u.Role, StudioID: u.StudioID, TrainerID: u.TrainerID},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// Login: verify and return new pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c, "invalid credentials")
		}
		return fail(c, h.Log, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return unauthorized(c, "invalid credentials")
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return unauthorized(c, "invalid refresh")
	}
	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return unauthorized(c, "invalid refresh")
		}
		return fail(c, h.Log, err)
	}
	if !u.IsActive {
		return unauthorized(c, "account disabled")
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return fail(c, h.Log, err)
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes one session when a refresh_token is posted, or every
// session of the bearer when only an Authorization header is present.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return unauthorized(c, "invalid refresh token")
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return fail(c, h.Log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return badRequest(c, "provide Authorization header or refresh_token")
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(authHeader, "Bearer "))
	if err != nil {
		return unauthorized(c, "invalid token")
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.Subject); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me: simple protected endpoint.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id":    mw.UserID(c),
		"role":       mw.Role(c),
		"studio_id":  mw.StudioID(c),
		"trainer_id": mw.TrainerID(c),
	})
}

// CreateStaff lets an admin add a staff account to their own studio.
func (h *AuthHandler) CreateStaff(c echo.Context) error {
	var req staffReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if req.Email == "" || len(req.Password) < 8 {
		return badRequest(c, "email and a password of at least 8 characters are required")
	}
	if role != model.RoleTrainer && role != model.RoleAdmin {
		return badRequest(c, "role must be TRAINER or ADMIN")
	}
	if role == model.RoleTrainer && (req.TrainerID == nil || strings.TrimSpace(*req.TrainerID) == "") {
		return badRequest(c, "trainer_id required for TRAINER accounts")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	studioID := mw.StudioID(c)
	id, err := h.Users.Create(ctx, studioID, req.TrainerID, req.Email, req.Password, role, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists", "code": "CONFLICT"})
		}
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, userPart{ID: id, Email: req.Email, Role: role, StudioID: studioID, TrainerID: req.TrainerID})
}
