package handler

import (
	"errors"   // sentinel comparisons against repository errors
	"net/http" // HTTP status codes and primitives
	"strings"  // string manipulation utilities
	"time"     // token expiry in responses

	"github.com/labstack/echo/v4" // Echo framework for HTTP routing

	"github.com/iliyamo/tour-booking/internal/config"     // app configuration
	"github.com/iliyamo/tour-booking/internal/model"      // user entity and roles
	"github.com/iliyamo/tour-booking/internal/repository" // store and its sentinels
	"github.com/iliyamo/tour-booking/internal/utils"      // hashing and token issuing
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg   config.Config
	Store repository.Store
}

func NewAuthHandler(cfg config.Config, store repository.Store) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Store: store}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=72"`
	Role     string `json:"role"` // TOURIST | GUIDE
	Phone    string `json:"phone" validate:"max=32"`
	Address  string `json:"address" validate:"max=255"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type changePasswordReq struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64     `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a TOURIST or GUIDE account and returns tokens
// immediately.  Admins are never self-registered.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	role := model.RoleTourist
	if strings.TrimSpace(req.Role) != "" {
		r, err := model.ParseRole(req.Role)
		if err != nil || r == model.RoleAdmin {
			return echo.NewHTTPError(http.StatusBadRequest, "role must be TOURIST or GUIDE")
		}
		role = r
	}

	hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
	if errors.Is(err, utils.ErrWeakPassword) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	u := &model.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		Phone:        strings.TrimSpace(req.Phone),
		Address:      strings.TrimSpace(req.Address),
		Lifecycle:    model.LifecycleActive,
	}
	ctx := c.Request().Context()
	if err := h.Store.Users().Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return echo.NewHTTPError(http.StatusConflict, "email already exists")
		}
		return err
	}

	resp, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "user registered successfully", resp)
}

// Login verifies credentials and returns a new token pair.  Accounts that
// are not ACTIVE cannot sign in.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	u, err := h.Store.Users().GetByEmail(c.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !u.Lifecycle.CanSignIn() {
		return echo.NewHTTPError(http.StatusForbidden, "account is "+strings.ToLower(string(u.Lifecycle)))
	}

	resp, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "logged in successfully", resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	u, hash, err := h.refreshUser(c)
	if err != nil {
		return err
	}
	if err := h.Store.Tokens().RevokeByHash(c.Request().Context(), hash); err != nil {
		return err
	}
	resp, err := h.issue(c, u)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "tokens refreshed", resp)
}

// RefreshAccess returns a new access token without rotating the refresh
// token.
func (h *AuthHandler) RefreshAccess(c echo.Context) error {
	u, _, err := h.refreshUser(c)
	if err != nil {
		return err
	}
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, string(u.Role), h.Cfg.AccessTTLMin)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "access token refreshed", echo.Map{
		"access": tokenPart{Token: access.Token, Expires: access.Exp},
	})
}

// Logout revokes one session when a refresh token is posted, or every
// session of the bearer when only an access token is sent.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)
	ctx := c.Request().Context()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Store.Tokens().ValidateRefresh(ctx, hash); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		if err := h.Store.Tokens().RevokeByHash(ctx, hash); err != nil {
			return err
		}
		return respond(c, http.StatusOK, "logged out", nil)
	}

	auth := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		id, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}
		if err := h.Store.Tokens().RevokeAllForUser(ctx, id.UserID); err != nil {
			return err
		}
		return respond(c, http.StatusOK, "logged out of all sessions", nil)
	}
	return echo.NewHTTPError(http.StatusBadRequest, "provide Authorization header or refresh_token")
}

// ChangePassword replaces the bearer's password once the old one checks
// out.  Every refresh session is revoked, so other devices must sign in
// again.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req changePasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	u, err := h.Store.Users().GetByID(ctx, a.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return echo.NewHTTPError(http.StatusUnauthorized, "user no longer exists")
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.OldPassword) {
		return echo.NewHTTPError(http.StatusBadRequest, "old password did not match")
	}
	hash, err := utils.HashPassword(req.NewPassword, h.Cfg.BcryptCost)
	if errors.Is(err, utils.ErrWeakPassword) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return err
	}
	err = h.Store.InTx(ctx, func(tx repository.Unit) error {
		if err := tx.Users().UpdatePassword(ctx, a.ID, hash); err != nil {
			return err
		}
		return tx.Tokens().RevokeAllForUser(ctx, a.ID)
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "password changed", nil)
}

func (h *AuthHandler) refreshUser(c echo.Context) (*model.User, string, error) {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
	ctx := c.Request().Context()

	userID, err := h.Store.Tokens().ValidateRefresh(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh")
		}
		return nil, "", err
	}
	u, err := h.Store.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh")
		}
		return nil, "", err
	}
	if !u.Lifecycle.CanSignIn() {
		return nil, "", echo.NewHTTPError(http.StatusForbidden, "account is "+strings.ToLower(string(u.Lifecycle)))
	}
	return u, hash, nil
}

func (h *AuthHandler) issue(c echo.Context, u *model.User) (*authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, string(u.Role), h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := h.Store.Tokens().StoreRefresh(c.Request().Context(), u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &authResp{
		User:    userPart{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}
