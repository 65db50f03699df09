// Package notify carries export events from the worker to websocket clients over
// Redis Pub/Sub, one channel per user.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 事件状态。
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Message 是推送给前端的消息，字段名与前端解析保持一致。
type Message struct {
	Event         string   `json:"event"`
	Status        string   `json:"status"`
	DocumentID    string   `json:"document_id"`
	Version       int      `json:"version"`
	Pages         int      `json:"pages,omitempty"`
	CorrelationID string   `json:"correlation_id"`
	ErrorCode     int      `json:"error_code"`
	ErrorMessage  string   `json:"error_message,omitempty"`
	MissingKeys   []string `json:"missing_keys,omitempty"`

	// OverflowingPages 列出估算高度超出页面的页码。
	OverflowingPages []int `json:"overflowing_pages,omitempty"`
}

// Channel 返回用户的通知频道名。
func Channel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// Publisher 是发布通知所需的 Redis 子集。
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Send 序列化并发布消息。
func Send(ctx context.Context, pub Publisher, userID uint, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode notify message: %w", err)
	}
	if err := pub.Publish(ctx, Channel(userID), raw).Err(); err != nil {
		return fmt.Errorf("publish notify message: %w", err)
	}
	return nil
}
