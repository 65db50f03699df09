package api

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvCanvas/internal/auth"
)

type memoryKV struct {
	values map[string]string
	counts map[string]int64
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string]string{}, counts: map[string]int64{}}
}

func (m *memoryKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.values[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryKV) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memoryKV) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func newTestIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})

	issuer, err := auth.NewIssuer(privatePEM, publicPEM, time.Minute, time.Hour)
	require.NoError(t, err)
	return issuer
}

func newAuthRouter(t *testing.T, registrationOpen bool, loginRate int) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(
		auth.NewAccounts(newTestDB(t), registrationOpen),
		newTestIssuer(t),
		auth.NewGuard(newMemoryKV(), loginRate),
		"",
	)
	r := gin.New()
	g := r.Group("/v1/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh)
	g.POST("/logout", h.Logout)
	return r
}

func refreshCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == refreshTokenCookieName {
			return c
		}
	}
	t.Fatalf("refresh cookie missing")
	return nil
}

func postWithCookie(r http.Handler, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_RegisterLoginRefreshLogout(t *testing.T) {
	r := newAuthRouter(t, true, 10)
	creds := gin.H{"username": "ada", "password": "analytical-engine"}

	w := doJSON(t, r, http.MethodPost, "/v1/auth/register", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/v1/auth/register", creds)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/v1/auth/login", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[tokenResponse](t, w)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, 60, tokens.ExpiresIn)
	first := refreshCookie(t, w)
	assert.True(t, first.HttpOnly)

	w = postWithCookie(r, "/v1/auth/refresh", first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := refreshCookie(t, w)

	// 刷新后旧令牌作废。
	w = postWithCookie(r, "/v1/auth/refresh", first)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = postWithCookie(r, "/v1/auth/logout", second)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, -1, refreshCookie(t, w).MaxAge)

	w = postWithCookie(r, "/v1/auth/refresh", second)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	r := newAuthRouter(t, true, 2)
	require.Equal(t, http.StatusCreated,
		doJSON(t, r, http.MethodPost, "/v1/auth/register", gin.H{"username": "ada", "password": "analytical-engine"}).Code)

	bad := gin.H{"username": "ada", "password": "wrong-password"}
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, r, http.MethodPost, "/v1/auth/login", bad).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(t, r, http.MethodPost, "/v1/auth/login", bad).Code)
	assert.Equal(t, http.StatusTooManyRequests, doJSON(t, r, http.MethodPost, "/v1/auth/login", bad).Code)
}

func TestAuthHandler_RegistrationClosed(t *testing.T) {
	r := newAuthRouter(t, false, 10)

	w := doJSON(t, r, http.MethodPost, "/v1/auth/register", gin.H{"username": "ada", "password": "analytical-engine"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuthHandler_RefreshWithoutToken(t *testing.T) {
	r := newAuthRouter(t, true, 10)

	w := doJSON(t, r, http.MethodPost, "/v1/auth/refresh", gin.H{})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_RegisterRejectsWeakPassword(t *testing.T) {
	r := newAuthRouter(t, true, 10)

	for _, password := range []string{"short", strings.Repeat("密", 25)} {
		w := doJSON(t, r, http.MethodPost, "/v1/auth/register", gin.H{"username": "ada", "password": password})
		assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	}
}
