package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	ExpireNX(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// dailyUploadKey 按 UTC 自然日划分上传计数窗口。
func dailyUploadKey(userID uint, now time.Time) string {
	return fmt.Sprintf("rate:upload:%d:%s", userID, now.UTC().Format("20060102"))
}

// incrWithTTL 计数并确保 key 带过期时间。
// ExpireNX 只在 key 没有 TTL 时生效，上一次设置失败的 key 会在下次计数时补上。
func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = client.ExpireNX(ctx, key, ttl).Err()
	return count, nil
}
