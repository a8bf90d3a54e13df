package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	authapp "github.com/agrovia/agrovia-api/internal/application"
	"github.com/agrovia/agrovia-api/internal/domain/apperror"
	"github.com/agrovia/agrovia-api/pkg/helpers"
	"github.com/agrovia/agrovia-api/pkg/response"
	"github.com/agrovia/agrovia-api/pkg/validation"
)

type AuthHandler struct {
	Svc     *authapp.AuthService
	Logger  *logrus.Logger
	Cookies *helpers.Manager
}

func NewAuthHandler(svc *authapp.AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

func clientIP(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	return c.ClientIP()
}

func requestMeta(c *gin.Context) authapp.RequestMeta {
	return authapp.RequestMeta{
		IPAddress: clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
	}
}

// writeError maps the domain error taxonomy onto HTTP statuses. The
// authentication message stays generic on purpose.
func (h *AuthHandler) writeError(c *gin.Context, err error) {
	var (
		ve   *apperror.ValidationError
		ae   *apperror.AuthenticationError
		ze   *apperror.AuthorizationError
		te   *apperror.TokenError
		ce   *apperror.ConflictError
		nf   *apperror.NotFoundError
		infe *apperror.InfrastructureError
	)
	switch {
	case errors.As(err, &ve):
		response.Error[any](c, http.StatusBadRequest, "invalid payload", map[string]string{ve.Field: ve.Reason})
	case errors.As(err, &ae):
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
	case errors.As(err, &ze):
		response.Error[any](c, http.StatusForbidden, "account not available", nil)
	case errors.As(err, &te):
		if te.Expired {
			response.Error[any](c, http.StatusUnauthorized, "token expired", nil)
		} else {
			response.Error[any](c, http.StatusUnauthorized, "invalid token", nil)
		}
	case errors.As(err, &ce):
		response.Error[any](c, http.StatusConflict, "email already registered", nil)
	case errors.As(err, &nf):
		response.Error[any](c, http.StatusNotFound, "not found", nil)
	case errors.As(err, &infe):
		h.Logger.WithError(err).Error("command failed on infrastructure")
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	default:
		h.Logger.WithError(err).Error("command failed")
		response.Error[any](c, http.StatusInternalServerError, "internal error", nil)
	}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,strongpwd"`
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"omitempty,phone"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Register(c.Request.Context(), authapp.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Phone:    req.Phone,
		Source:   "web",
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.Cookies.SetPair(c, res.Tokens.AccessToken, res.Tokens.AccessTokenExpiry, res.Tokens.RefreshToken, res.Tokens.RefreshTokenExpiry)
	response.Success(c, http.StatusCreated, gin.H{
		"user_id": res.UserID,
		"email":   res.Email,
		"name":    res.Name,
	}, "registered", map[string]any{
		"access_expires_at":  res.Tokens.AccessTokenExpiry,
		"refresh_expires_at": res.Tokens.RefreshTokenExpiry,
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, err := h.Svc.Login(c.Request.Context(), authapp.LoginInput{
		Email:    req.Email,
		Password: req.Password,
		Meta:     requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.Cookies.SetPair(c, res.Tokens.AccessToken, res.Tokens.AccessTokenExpiry, res.Tokens.RefreshToken, res.Tokens.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, gin.H{
		"user_id": res.UserID,
		"email":   res.Email,
		"name":    res.Name,
	}, "login successful", map[string]any{
		"access_expires_at":  res.Tokens.AccessTokenExpiry,
		"refresh_expires_at": res.Tokens.RefreshTokenExpiry,
	})
}

// Refresh POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	res, err := h.Svc.Refresh(c.Request.Context(), authapp.RefreshInput{
		RefreshToken: refresh,
		Meta:         requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.Cookies.SetPair(c, res.Tokens.AccessToken, res.Tokens.AccessTokenExpiry, res.Tokens.RefreshToken, res.Tokens.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{
		"access_expires_at":  res.Tokens.AccessTokenExpiry,
		"refresh_expires_at": res.Tokens.RefreshTokenExpiry,
	})
}

// Logout POST /api/auth/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	uid := c.GetString("userID")
	err := h.Svc.Logout(c.Request.Context(), authapp.LogoutInput{
		UserID:    uid,
		SessionID: c.GetString("sessionID"),
		Reason:    "user_requested",
		Meta:      requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,strongpwd"`
}

// ChangePassword POST /api/auth/password (auth required)
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Svc.ChangePassword(c.Request.Context(), authapp.ChangePasswordInput{
		UserID:      c.GetString("userID"),
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
		Meta:        requestMeta(c),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"changed": true}, "password updated", nil)
}

// Session GET /api/auth/session (auth required)
func (h *AuthHandler) Session(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"user_id":    c.GetString("userID"),
		"session_id": c.GetString("sessionID"),
		"email":      c.GetString("userEmail"),
	}, "session", nil)
}
