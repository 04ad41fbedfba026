package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/auth"
	"campusnotify/internal/httputil"
	"campusnotify/internal/logger"
	"campusnotify/internal/metrics"
	"campusnotify/internal/model"
)

// Ledger is the read-state store the hub answers client requests from.
type Ledger interface {
	UnreadCount(ctx context.Context, userID int64, role model.Role) (model.UnreadCount, error)
	MarkRead(ctx context.Context, userID, noticeID int64) error
	BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (*model.BulkMarkReadResult, error)
}

// TokenValidator authenticates the handshake.
type TokenValidator interface {
	Validate(token string) (*auth.Identity, error)
}

type HubConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	SendBuffer     int
	// AllowedOrigins restricts browser handshakes by Origin host. Empty allows any.
	AllowedOrigins []string
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 4096,
		SendBuffer:     32,
	}
}

// Hub accepts authenticated WebSocket connections, places each one in its
// user and role rooms, and answers read-state requests from clients.
type Hub struct {
	rooms    Broadcaster
	presence Presence
	ledger   Ledger
	tokens   TokenValidator
	upgrader websocket.Upgrader
	cfg      HubConfig
	log      logrus.FieldLogger

	mu      sync.Mutex
	clients map[string]*Client
}

func NewHub(rooms Broadcaster, presence Presence, ledger Ledger, tokens TokenValidator, cfg HubConfig, log logrus.FieldLogger) *Hub {
	defaults := DefaultHubConfig()
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = defaults.WriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = defaults.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaults.SendBuffer
	}

	h := &Hub{
		rooms:    rooms,
		presence: presence,
		ledger:   ledger,
		tokens:   tokens,
		cfg:      cfg,
		log:      logger.Component(log, "realtime"),
		clients:  make(map[string]*Client),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == u.Host || allowed == origin {
			return true
		}
	}
	return false
}

// ServeWS authenticates the handshake and upgrades it. Unauthenticated
// requests get a 401 before any upgrade happens.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.tokens.Validate(auth.TokenFromRequest(r))
	if err != nil {
		metrics.RealtimeRejected.Inc()
		code := model.CodeTokenInvalid
		if errors.Is(err, auth.ErrTokenExpired) {
			code = model.CodeTokenExpired
		}
		httputil.WriteUnauthorizedWithCode(w, code, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.WithError(err).Debug("Upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		id:     uuid.NewString(),
		userID: identity.UserID,
		role:   identity.Role,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.cfg.SendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}
	c.log = h.log.WithFields(logrus.Fields{"user_id": c.userID, "conn_id": c.id})

	h.register(c)
	c.emit(model.EventConnected, model.ConnectedPayload{UserID: c.userID, Timestamp: time.Now().UTC()})

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()

	h.rooms.JoinRoom(c, UserRoom(c.userID))
	if c.role.Valid() {
		h.rooms.JoinRoom(c, RoleRoom(c.role))
	}
	if err := h.presence.Connect(c.ctx, c.userID); err != nil {
		c.log.WithError(err).Warn("Presence connect failed")
	}
	metrics.RealtimeConnections.Inc()
	c.log.Info("Client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	h.mu.Unlock()
	if !ok {
		return
	}

	h.rooms.LeaveAll(c)
	// c.ctx may already be cancelled; the counter must still drop.
	ctx, cancel := context.WithTimeout(context.Background(), h.cfg.WriteWait)
	defer cancel()
	if err := h.presence.Disconnect(ctx, c.userID); err != nil {
		c.log.WithError(err).Warn("Presence disconnect failed")
	}
	metrics.RealtimeConnections.Dec()
	c.log.Info("Client disconnected")
}

// ConnectionCount is the number of open connections in this process.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// EmitToUser sends an event to every connection of userID.
func (h *Hub) EmitToUser(ctx context.Context, userID int64, event string, data interface{}) error {
	return h.publish(ctx, UserRoom(userID), event, data)
}

// EmitToRole sends an event to every connection whose user has role.
func (h *Hub) EmitToRole(ctx context.Context, role model.Role, event string, data interface{}) error {
	return h.publish(ctx, RoleRoom(role), event, data)
}

// Broadcast sends an event to every connected user through the role rooms.
func (h *Hub) Broadcast(ctx context.Context, event string, data interface{}) error {
	var errs []error
	for _, role := range model.Roles {
		if err := h.publish(ctx, RoleRoom(role), event, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *Hub) publish(ctx context.Context, room, event string, data interface{}) error {
	if err := h.rooms.Publish(ctx, room, Event{Event: event, Data: data}); err != nil {
		return err
	}
	h.countOut(event)
	return nil
}

// IsOnline reports whether userID has a live connection anywhere. When
// presence cannot be read the user is treated as online: emitting to an
// empty room costs nothing, missing a live user loses the alert.
func (h *Hub) IsOnline(ctx context.Context, userID int64) bool {
	online, err := h.presence.IsOnline(ctx, userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Warn("Presence lookup failed")
		return true
	}
	return online
}

// Shutdown closes every open connection.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	h.log.WithField("connections", len(clients)).Info("Realtime hub shut down")
}

func (h *Hub) countOut(event string) {
	metrics.RealtimeEvents.WithLabelValues("out", event).Inc()
}

// handleInbound dispatches one client frame. Failures are reported to the
// sender as error events and never close the connection.
func (h *Hub) handleInbound(c *Client, raw []byte) {
	var msg inbound
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Event == "" {
		c.emitError("malformed message")
		return
	}
	metrics.RealtimeEvents.WithLabelValues("in", msg.Event).Inc()

	switch msg.Event {
	case model.EventGetUnreadCount:
		h.replyUnreadCount(c)
	case model.EventMarkNotificationRead:
		h.markRead(c, msg.Data)
	case model.EventBulkMarkRead:
		h.bulkMarkRead(c, msg.Data)
	default:
		c.emitError("unknown event: " + msg.Event)
	}
}

func (h *Hub) replyUnreadCount(c *Client) {
	count, err := h.ledger.UnreadCount(c.ctx, c.userID, c.role)
	if err != nil {
		c.log.WithError(err).Error("Unread count failed")
		c.emitError("could not load unread count")
		return
	}
	c.emit(model.EventUnreadCount, count)
}

func (h *Hub) markRead(c *Client, data json.RawMessage) {
	var req markReadData
	if err := json.Unmarshal(data, &req); err != nil || req.NoticeID <= 0 {
		c.emitError("noticeId is required")
		return
	}
	if err := h.ledger.MarkRead(c.ctx, c.userID, req.NoticeID); err != nil {
		if errors.Is(err, model.ErrNoticeNotFound) {
			c.emitError("notice not found")
			return
		}
		c.log.WithError(err).WithField("notice_id", req.NoticeID).Error("Mark read failed")
		c.emitError("could not mark notice as read")
		return
	}
	c.emit(model.EventNotificationMarkedRead, model.NoticeRefPayload{NoticeID: req.NoticeID})
	h.syncUnreadCount(c)
}

func (h *Hub) bulkMarkRead(c *Client, data json.RawMessage) {
	var req bulkMarkReadData
	if err := json.Unmarshal(data, &req); err != nil || len(req.NoticeIDs) == 0 {
		c.emitError("noticeIds is required")
		return
	}
	res, err := h.ledger.BulkMarkRead(c.ctx, c.userID, req.NoticeIDs)
	if err != nil {
		c.log.WithError(err).Error("Bulk mark read failed")
		c.emitError("could not mark notices as read")
		return
	}
	c.emit(model.EventBulkMarkedRead, model.BulkMarkedReadPayload{NoticeIDs: res.NoticeIDs, Marked: res.Marked})
	h.syncUnreadCount(c)
}

// syncUnreadCount pushes the new count to every connection of the user, so
// their other tabs and devices update too.
func (h *Hub) syncUnreadCount(c *Client) {
	count, err := h.ledger.UnreadCount(c.ctx, c.userID, c.role)
	if err != nil {
		c.log.WithError(err).Warn("Unread count after mark read failed")
		return
	}
	if err := h.EmitToUser(c.ctx, c.userID, model.EventUnreadCount, count); err != nil {
		c.log.WithError(err).Warn("Unread count sync failed")
	}
}
