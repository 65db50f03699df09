package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	revokedKeyPrefix = "auth:refresh:revoked:"
	loginRateWindow  = time.Hour
)

// KV 是 Guard 需要的 Redis 子集。
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Guard 负责刷新令牌吊销与登录限流。
type Guard struct {
	kv               KV
	loginRatePerHour int
	now              func() time.Time
}

func NewGuard(kv KV, loginRatePerHour int) *Guard {
	return &Guard{kv: kv, loginRatePerHour: loginRatePerHour, now: time.Now}
}

// Revoke 把刷新令牌加入黑名单，直到它自然过期。
func (g *Guard) Revoke(ctx context.Context, claims *Claims) error {
	ttl := time.Second
	if claims.ExpiresAt != nil {
		ttl = max(claims.ExpiresAt.Sub(g.now()), time.Second)
	}
	if err := g.kv.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// IsRevoked 查询黑名单。
func (g *Guard) IsRevoked(ctx context.Context, claims *Claims) (bool, error) {
	err := g.kv.Get(ctx, revokedKeyPrefix+claims.ID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return true, nil
}

// AllowLogin 按 IP+用户名 每小时计数。Redis 故障时放行。
func (g *Guard) AllowLogin(ctx context.Context, ip, username string) bool {
	if g.loginRatePerHour <= 0 {
		return true
	}
	key := "rate:login:" + ip + ":" + strings.ToLower(username) + ":" + g.now().UTC().Format("2006010215")
	count, err := g.kv.Incr(ctx, key).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		_ = g.kv.Expire(ctx, key, loginRateWindow).Err()
	}
	return count <= int64(g.loginRatePerHour)
}
