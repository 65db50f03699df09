package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cvCanvas/internal/api/middleware"
	"cvCanvas/internal/auth"
)

const refreshTokenCookieName = "refresh_token"

// AuthHandler 处理注册、登录、刷新与退出。
type AuthHandler struct {
	accounts     *auth.Accounts
	issuer       *auth.Issuer
	guard        *auth.Guard
	cookieDomain string
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(accounts *auth.Accounts, issuer *auth.Issuer, guard *auth.Guard, cookieDomain string) *AuthHandler {
	return &AuthHandler{
		accounts:     accounts,
		issuer:       issuer,
		guard:        guard,
		cookieDomain: strings.TrimSpace(cookieDomain),
	}
}

type credentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Register 创建新用户账号。
func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	logger := middleware.LoggerFromContext(c).With(slog.String("username", req.Username))

	user, err := h.accounts.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrRegistrationClosed):
		Forbidden(c, "registration disabled")
		return
	case errors.Is(err, auth.ErrWeakPassword):
		BadRequest(c, err.Error())
		return
	case errors.Is(err, auth.ErrUsernameTaken):
		logger.Info("register conflict: user already exists")
		Conflict(c, "username already taken")
		return
	case err != nil:
		logger.Error("register failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user registered", slog.Uint64("user_id", uint64(user.ID)))
	c.Status(http.StatusCreated)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c).With(slog.String("username", req.Username))

	if !h.guard.AllowLogin(ctx, c.ClientIP(), req.Username) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
		return
	}

	user, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		logger.Info("login failed: invalid credentials")
		Unauthorized(c)
		return
	}
	if err != nil {
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	pair, err := h.issuer.Issue(user.ID)
	if err != nil {
		logger.Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.replyWithTokenPair(c, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair，旧令牌随即作废。
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	claims, ok := h.refreshClaims(c, logger)
	if !ok {
		Unauthorized(c)
		return
	}

	if err := h.accounts.Exists(ctx, claims.UserID); err != nil {
		logger.Info("refresh user not available", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	pair, err := h.issuer.Issue(claims.UserID)
	if err != nil {
		logger.Error("refresh generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	if err := h.guard.Revoke(ctx, claims); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}
	h.replyWithTokenPair(c, pair)
}

// Logout 将刷新令牌加入黑名单并清除 Cookie。
func (h *AuthHandler) Logout(c *gin.Context) {
	logger := middleware.LoggerFromContext(c)

	claims, ok := h.refreshClaims(c, logger)
	if !ok {
		Unauthorized(c)
		return
	}
	if err := h.guard.Revoke(c.Request.Context(), claims); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	http.SetCookie(c.Writer, h.refreshCookie(c, "", -1))
	c.Status(http.StatusOK)
}

// refreshClaims 读取并校验刷新令牌，已吊销的令牌视为无效。
func (h *AuthHandler) refreshClaims(c *gin.Context, logger *slog.Logger) (*auth.Claims, bool) {
	raw := h.extractRefreshToken(c)
	if raw == "" {
		return nil, false
	}
	claims, err := h.issuer.Validate(raw, auth.TokenRefresh)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		return nil, false
	}
	revoked, err := h.guard.IsRevoked(c.Request.Context(), claims)
	if err != nil {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		return nil, false
	}
	if revoked {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		return nil, false
	}
	return claims, true
}

func (h *AuthHandler) replyWithTokenPair(c *gin.Context, pair auth.TokenPair) {
	maxAge := int(h.issuer.RefreshTTL().Seconds())
	http.SetCookie(c.Writer, h.refreshCookie(c, pair.RefreshToken, maxAge))
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.issuer.AccessTTL().Seconds()),
	})
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) refreshCookie(c *gin.Context, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    value,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   h.cookieDomain,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	return cookie
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}
