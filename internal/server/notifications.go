package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smallbiznis/backoffice/internal/authcontext"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	sseHeartbeatInterval = 15 * time.Second

	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// notificationFeed merges the channels a principal listens on. Events
// published to more than one of them are delivered once.
type notificationFeed struct {
	user      *events.Subscription
	broadcast *events.Subscription
	admin     *events.Subscription
	backlog   []events.Event
	seen      map[string]struct{}
}

func (s *Server) openFeed(principal authcontext.Principal) (*notificationFeed, error) {
	channels := []string{events.UserChannel(principal.UserID.String()), events.ChannelBroadcast}
	if principal.IsAdmin() {
		channels = append(channels, events.ChannelAdmin)
	}

	feed := &notificationFeed{seen: make(map[string]struct{})}
	for i, channel := range channels {
		sub, backlog, err := s.hub.Subscribe(channel)
		if err != nil {
			feed.Close()
			return nil, err
		}
		switch i {
		case 0:
			feed.user = sub
		case 1:
			feed.broadcast = sub
		default:
			feed.admin = sub
		}
		for _, event := range backlog {
			if feed.first(event) {
				feed.backlog = append(feed.backlog, event)
			}
		}
	}
	return feed, nil
}

func (f *notificationFeed) first(event events.Event) bool {
	if event.ID == "" {
		return true
	}
	if _, ok := f.seen[event.ID]; ok {
		return false
	}
	if len(f.seen) >= 1024 {
		f.seen = make(map[string]struct{})
	}
	f.seen[event.ID] = struct{}{}
	return true
}

func (f *notificationFeed) Close() {
	f.user.Close()
	f.broadcast.Close()
	f.admin.Close()
}

func (s *Server) StreamNotifications(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	feed, err := s.openFeed(principal)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer feed.Close()

	writer := c.Writer
	headers := writer.Header()
	headers.Set("Content-Type", "text/event-stream")
	headers.Set("Cache-Control", "no-cache")
	headers.Set("Connection", "keep-alive")
	headers.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, ok := writer.(http.Flusher)
	if !ok {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	if _, err := io.WriteString(writer, "retry: 2000\n\n"); err != nil {
		return
	}

	for _, event := range feed.backlog {
		if err := writeNotificationEvent(writer, event); err != nil {
			return
		}
	}
	flusher.Flush()

	ctx := c.Request.Context()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		var event events.Event
		select {
		case <-ctx.Done():
			return
		case event = <-feed.user.Events():
		case event = <-feed.broadcast.Events():
		case event = <-feed.admin.Events():
		case <-heartbeat.C:
			if _, err := io.WriteString(writer, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
			continue
		}

		if !feed.first(event) {
			continue
		}
		if err := writeNotificationEvent(writer, event); err != nil {
			return
		}
		flusher.Flush()
	}
}

func writeNotificationEvent(w io.Writer, event events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func (s *Server) NotificationsWebsocket(c *gin.Context) {
	if s.hub == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	principal, ok := principalFrom(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	feed, err := s.openFeed(principal)
	if err != nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	defer feed.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.FromContext(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go readWebsocket(conn, closed)

	for _, event := range feed.backlog {
		if err := writeWebsocketEvent(conn, event); err != nil {
			return
		}
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		var event events.Event
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case event = <-feed.user.Events():
		case event = <-feed.broadcast.Events():
		case event = <-feed.admin.Events():
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			continue
		}

		if !feed.first(event) {
			continue
		}
		if err := writeWebsocketEvent(conn, event); err != nil {
			return
		}
	}
}

// readWebsocket drains client frames so pongs and close frames are
// processed. Clients are not expected to send data.
func readWebsocket(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(wsReadLimit)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeWebsocketEvent(conn *websocket.Conn, event events.Event) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(event)
}

type SendNotificationRequest struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	UserID  string         `json:"user_id"`
	Data    map[string]any `json:"data"`
}

// SendNotification broadcasts an operator message, or targets a single user
// when user_id is set.
func (s *Server) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		AbortWithError(c, newValidationError("message", "required", "message is required"))
		return
	}

	eventType := strings.TrimSpace(req.Type)
	if eventType == "" {
		eventType = events.TypeNotification
	}

	channel := events.ChannelBroadcast
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		parsed, err := snowflake.ParseString(userID)
		if err != nil || parsed == 0 {
			AbortWithError(c, newValidationError("user_id", "invalid_user_id", "invalid user id"))
			return
		}
		channel = events.UserChannel(parsed.String())
	}

	event := events.New(eventType, message, strings.TrimSpace(req.UserID), req.Data)
	event.Channels = []string{channel}
	if err := s.emitter.Emit(c.Request.Context(), event); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": event})
}
