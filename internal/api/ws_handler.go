package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"cvCanvas/internal/api/middleware"
	"cvCanvas/internal/auth"
	"cvCanvas/internal/notify"
)

const (
	wsAuthTimeout  = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 5 * time.Second
)

// WsHandler 负责 WebSocket 鉴权，并把用户频道上的导出通知转发给浏览器。
type WsHandler struct {
	redis    redis.UniversalClient
	tokens   middleware.TokenValidator
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只允许同源。
func NewWsHandler(redisClient redis.UniversalClient, tokens middleware.TokenValidator, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	return &WsHandler{
		redis:  redisClient,
		tokens: tokens,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r, allowedOrigins)
			},
		},
	}
}

func originAllowed(r *http.Request, allowed []string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(allowed) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	return slices.Contains(allowed, origin)
}

// 连接建立后客户端发送的第一条消息必须是 {"type":"auth","token":"<access token>"}。
type wsAuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleConnection 升级连接，完成鉴权后启动读循环与订阅循环，任一结束即关闭连接。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	log := h.logger.With(slog.String("client_ip", c.ClientIP()))

	claims, err := h.authenticate(conn)
	if err != nil {
		log.Warn("websocket authentication failed", slog.Any("error", err))
		return
	}
	log = log.With(slog.Uint64("user_id", uint64(claims.UserID)))
	log.Info("websocket authenticated")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go h.readLoop(ctx, conn, errCh)
	go h.subscribeLoop(ctx, conn, claims.UserID, errCh, log)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		log.Info("websocket connection closed", slog.Any("error", err))
	}
}

func (h *WsHandler) authenticate(conn *websocket.Conn) (*auth.Claims, error) {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read auth message: %w", err)
	}

	var msg wsAuthMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "invalid auth payload")
		return nil, fmt.Errorf("decode auth payload: %w", err)
	}
	if msg.Type != "auth" || msg.Token == "" {
		writeClose(conn, websocket.ClosePolicyViolation, "auth required")
		return nil, errors.New("invalid auth message")
	}

	claims, err := h.tokens.Validate(msg.Token, auth.TokenAccess)
	if err != nil {
		writeClose(conn, websocket.ClosePolicyViolation, "unauthorized")
		return nil, err
	}
	return claims, nil
}

// readLoop 只用于发现客户端断开，客户端消息被忽略。
func (h *WsHandler) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case errCh <- fmt.Errorf("read message: %w", err):
			case <-ctx.Done():
			}
			return
		}
	}
}

func (h *WsHandler) subscribeLoop(ctx context.Context, conn *websocket.Conn, userID uint, errCh chan<- error, log *slog.Logger) {
	channel := notify.Channel(userID)
	pubsub := h.redis.Subscribe(ctx, channel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	fail := func(err error) {
		select {
		case errCh <- err:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				fail(errors.New("pubsub channel closed"))
				return
			}
			log.Debug("forwarding message to client", slog.String("channel", channel))
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				fail(fmt.Errorf("write message: %w", err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(wsWriteTimeout)); err != nil {
				fail(fmt.Errorf("write ping: %w", err))
				return
			}
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteTimeout))
}
