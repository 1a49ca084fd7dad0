package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"formbuilder/internal/notify"
)

const wsPingInterval = 30 * time.Second

// WsHandler 订阅 Redis 通知频道，并把通知转发给 WebSocket 客户端。
// 客户端可通过 templateId / sessionId 查询参数只接收相关通知。
type WsHandler struct {
	redisClient    redis.UniversalClient
	channel        string
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。
func NewWsHandler(redisClient redis.UniversalClient, channel string, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	if channel == "" {
		channel = notify.Channel
	}
	h := &WsHandler{
		redisClient:    redisClient,
		channel:        channel,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// notificationFilter 为空字段表示不过滤。
type notificationFilter struct {
	templateID string
	sessionID  string
}

func (f notificationFilter) match(n notify.Notification) bool {
	if f.templateID != "" && n.TemplateID != f.templateID {
		return false
	}
	if f.sessionID != "" && n.SessionID != f.sessionID {
		return false
	}
	return true
}

// HandleConnection 负责升级连接并启动读写循环。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	filter := notificationFilter{
		templateID: c.Query("templateId"),
		sessionID:  c.Query("sessionId"),
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("template_id", filter.templateID),
		slog.String("session_id", filter.sessionID),
	)

	errCh := make(chan error, 2)
	go h.readLoop(ctx, conn, errCh, cancel)
	go h.subscribeLoop(ctx, conn, filter, errCh, cancel, log)

	select {
	case <-ctx.Done():
		log.Info("websocket connection closed")
	case err := <-errCh:
		log.Info("websocket connection closed", slog.Any("error", err))
	}
}

// readLoop 丢弃客户端消息，只用于发现断开。
func (h *WsHandler) readLoop(ctx context.Context, conn *websocket.Conn, errCh chan<- error, cancel context.CancelFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			errCh <- fmt.Errorf("read message: %w", err)
			cancel()
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

func (h *WsHandler) subscribeLoop(
	ctx context.Context,
	conn *websocket.Conn,
	filter notificationFilter,
	errCh chan<- error,
	cancel context.CancelFunc,
	log *slog.Logger,
) {
	pubsub := h.redisClient.Subscribe(ctx, h.channel)
	defer pubsub.Close()

	log.Info("subscribed to redis channel", slog.String("channel", h.channel))

	ch := pubsub.Channel()
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				writeClose(conn, websocket.CloseGoingAway, "notification stream closed")
				errCh <- fmt.Errorf("pubsub channel closed")
				cancel()
				return
			}

			var n notify.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Warn("drop malformed notification", slog.Any("error", err))
				continue
			}
			if !filter.match(n) {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg.Payload)); err != nil {
				errCh <- fmt.Errorf("write message: %w", err)
				cancel()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				errCh <- fmt.Errorf("write ping: %w", err)
				cancel()
				return
			}
		}
	}
}
