package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvCanvas/internal/database"
)

func testKeys(t *testing.T) ([]byte, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	return privatePEM, publicPEM
}

func newTestIssuer(t *testing.T) *Issuer {
	t.Helper()
	priv, pub := testKeys(t)
	issuer, err := NewIssuer(priv, pub, time.Minute, time.Hour)
	require.NoError(t, err)
	return issuer
}

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	pair, err := issuer.Issue(42)
	require.NoError(t, err)

	access, err := issuer.Validate(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, uint(42), access.UserID)
	assert.Empty(t, access.ID)

	refresh, err := issuer.Validate(pair.RefreshToken, TokenRefresh)
	require.NoError(t, err)
	assert.NotEmpty(t, refresh.ID)

	_, err = issuer.Validate(pair.AccessToken, TokenRefresh)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestIssuer_Expired(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.Issue(1)
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = issuer.Validate(pair.AccessToken, TokenAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestIssuer_ForeignKey(t *testing.T) {
	a := newTestIssuer(t)
	b := newTestIssuer(t)

	pair, err := a.Issue(1)
	require.NoError(t, err)
	_, err = b.Validate(pair.AccessToken, TokenAccess)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccounts(newTestDB(t), true)

	user, err := accounts.Register(ctx, "ada", "correct horse")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)

	_, err = accounts.Register(ctx, "ada", "another pass")
	assert.True(t, errors.Is(err, ErrUsernameTaken))

	got, err := accounts.Authenticate(ctx, "ada", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = accounts.Authenticate(ctx, "ada", "wrong")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = accounts.Authenticate(ctx, "bob", "whatever")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	assert.NoError(t, accounts.Exists(ctx, user.ID))
	assert.True(t, errors.Is(accounts.Exists(ctx, 999), ErrAccountNotAvailable))

	_, created, err := accounts.Ensure(ctx, "ada", "reset password")
	require.NoError(t, err)
	assert.False(t, created)
	_, err = accounts.Authenticate(ctx, "ada", "reset password")
	assert.NoError(t, err)
}

func TestAccounts_RegistrationClosed(t *testing.T) {
	accounts := NewAccounts(newTestDB(t), false)
	_, err := accounts.Register(context.Background(), "ada", "correct horse")
	assert.True(t, errors.Is(err, ErrRegistrationClosed))

	_, created, err := accounts.Ensure(context.Background(), "admin", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)
}

type fakeKV struct {
	values map[string]string
	counts map[string]int64
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}, counts: map[string]int64{}}
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.values[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeKV) Incr(_ context.Context, key string) *redis.IntCmd {
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeKV) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func TestGuard_Revocation(t *testing.T) {
	ctx := context.Background()
	issuer := newTestIssuer(t)
	guard := NewGuard(newFakeKV(), 3)

	pair, err := issuer.Issue(5)
	require.NoError(t, err)
	claims, err := issuer.Validate(pair.RefreshToken, TokenRefresh)
	require.NoError(t, err)

	revoked, err := guard.IsRevoked(ctx, claims)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, guard.Revoke(ctx, claims))
	revoked, err = guard.IsRevoked(ctx, claims)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestGuard_AllowLogin(t *testing.T) {
	ctx := context.Background()
	guard := NewGuard(newFakeKV(), 2)

	assert.True(t, guard.AllowLogin(ctx, "10.0.0.1", "Ada"))
	assert.True(t, guard.AllowLogin(ctx, "10.0.0.1", "ada"))
	assert.False(t, guard.AllowLogin(ctx, "10.0.0.1", "ADA"))
	assert.True(t, guard.AllowLogin(ctx, "10.0.0.2", "ada"))
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret-pass", hash))
	assert.False(t, CheckPassword("other", hash))
	assert.False(t, NeedsRehash(hash))
}

func TestValidatePassword(t *testing.T) {
	cases := []struct {
		name     string
		password string
		ok       bool
	}{
		{"long enough", "correct horse", true},
		{"multibyte counts characters", "密码安全口令足够长", true},
		{"too short", "short", false},
		{"blank", "          ", false},
		{"past bcrypt limit", strings.Repeat("a", 73), false},
		{"multibyte past bcrypt limit", strings.Repeat("密", 25), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrWeakPassword)
			}
		})
	}

	_, err := HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestAuthenticate_UpgradesWeakHash(t *testing.T) {
	ctx := context.Background()
	accounts := NewAccounts(newTestDB(t), true)

	passwordCost = bcrypt.MinCost
	user, err := accounts.Register(ctx, "ada", "correct horse")
	passwordCost = bcrypt.DefaultCost
	require.NoError(t, err)
	require.True(t, NeedsRehash(user.PasswordHash))

	got, err := accounts.Authenticate(ctx, "ada", "correct horse")
	require.NoError(t, err)
	assert.False(t, NeedsRehash(got.PasswordHash))

	_, err = accounts.Authenticate(ctx, "ada", "correct horse")
	assert.NoError(t, err)
}
