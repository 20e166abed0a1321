package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/truthlens/server/domain/repositories"
	"github.com/satriahrh/truthlens/server/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Outbound envelopes waiting for the writer.
	sendBufferSize = 16
)

// HubConfig tunes connection handling.
type HubConfig struct {
	AllowedOrigins  []string
	MaxMessageSize  int64
	ProviderTimeout time.Duration
}

// Hub maintains the set of live sessions. Sessions never talk to each other;
// the hub only exists for counting and for closing everything on shutdown.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	stopped chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	upgrader websocket.Upgrader
	provider repositories.VoiceProvider
	config   HubConfig
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(provider repositories.VoiceProvider, config HubConfig, m *metrics.Metrics, logger *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		provider:   provider,
		config:     config,
		metrics:    m,
		logger:     logger,
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin:     h.checkOrigin,
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// non-browser clients
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", zap.String("origin", origin))
	return false
}

// Run starts the hub's main loop
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Debug("Client registered", zap.String("sessionID", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, client.id)
			h.mu.Unlock()
			h.logger.Debug("Client unregistered", zap.String("sessionID", client.id))
		}
	}
}

// ActiveCount returns the number of registered sessions.
func (h *Hub) ActiveCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every live session. Upgraded connections are hijacked, so
// the HTTP server's own Shutdown does not reach them.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		client.Close()
	}
	h.logger.Info("Closed all sessions", zap.Int("count", len(clients)))
}

// HandleWebSocket handles websocket requests from the peer.
func (h *Hub) HandleWebSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied with an HTTP error
		h.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return nil
	}

	client := newClient(h, conn)

	// open before registering so Shutdown never sees an unopened client
	client.open()

	select {
	case h.register <- client:
	case <-h.stopped:
		h.logger.Warn("Hub stopped, refusing connection")
		client.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// ConnState is the liveness state of one client connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client owns one browser connection. Messages are processed one at a time
// by readPump, so a session never has more than one provider call in flight.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan *OutboundMessage

	// Session ID for this client
	id string

	// Logger
	logger *zap.Logger

	// Cancelled on teardown so an in-flight provider call stops early.
	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	done      chan struct{}
	closeOnce sync.Once
	openedAt  time.Time
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan *OutboundMessage, sendBufferSize),
		id:     id,
		logger: h.logger.With(zap.String("sessionID", id)),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// State reports the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *Client) open() {
	c.openedAt = time.Now()
	c.state.Store(int32(StateOpen))
	c.hub.metrics.SessionOpened()
	c.logger.Info("Voice WebSocket connection established",
		zap.String("remoteAddr", c.conn.RemoteAddr().String()))

	c.queue(CreateStatusMessage(StatusReady))
}

// Close tears the session down. Safe to call from any goroutine, any number of
// times; only the first call has an effect.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))

		c.cancel()
		close(c.done)

		// WriteControl may run concurrently with writePump.
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.conn.Close()

		select {
		case c.hub.unregister <- c:
		case <-c.hub.stopped:
		}

		c.hub.metrics.SessionClosed(time.Since(c.openedAt))
		c.state.Store(int32(StateClosed))
		c.logger.Info("Voice WebSocket connection closed",
			zap.Duration("lifetime", time.Since(c.openedAt)))
	})
}

// readPump reads client messages and processes them sequentially.
func (c *Client) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			// errors after a server-side Close are expected
			if c.State() == StateOpen &&
				websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Error("WebSocket error", zap.Error(err))
			} else {
				c.logger.Info("Voice WebSocket client disconnected")
			}
			return
		}

		c.processMessage(messageType, message)

		// a slow provider call must not eat into the keepalive window
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump pumps queued envelopes and keepalive pings to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}
			c.hub.metrics.MessageSent(string(message.Type))

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queue hands an envelope to writePump. It blocks while the buffer is full
// and gives up once the session is closed.
func (c *Client) queue(message *OutboundMessage) {
	select {
	case c.send <- message:
	case <-c.done:
	}
}

// processMessage handles a single inbound frame. Nothing that goes wrong here
// closes the connection.
func (c *Client) processMessage(messageType int, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Error processing message",
				zap.Any("panic", r),
				zap.Stack("stack"))
			c.queue(CreateErrorMessage(ErrProcessingInput))
		}
	}()

	if messageType != websocket.TextMessage {
		c.logger.Warn("Received non-text message", zap.Int("type", messageType))
		c.hub.metrics.MessageReceived("invalid")
		c.queue(CreateErrorMessage(ErrInvalidFormat))
		return
	}

	msg, err := DecodeInbound(data)
	if err != nil {
		c.logger.Error("Invalid JSON received from client", zap.Error(err))
		c.hub.metrics.MessageReceived("invalid")
		c.queue(CreateErrorMessage(ErrInvalidFormat))
		return
	}
	c.hub.metrics.MessageReceived(msg.Kind())

	switch m := msg.(type) {
	case *PingMessage:
		c.queue(CreatePongMessage())
	case *AudioInputMessage:
		c.handleAudioInput(m)
	case *UnrecognizedMessage:
		c.logger.Warn("Unknown message type", zap.String("type", m.Type))
	}
}

// handleAudioInput relays one utterance to the provider and the reply back.
func (c *Client) handleAudioInput(msg *AudioInputMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Error processing audio input",
				zap.Any("panic", r),
				zap.Stack("stack"))
			c.queue(CreateErrorMessage(ErrVoiceInput))
		}
	}()

	if msg.Audio == "" {
		c.queue(CreateErrorMessage(ErrNoAudioData))
		return
	}

	c.queue(CreateStatusMessage(StatusProcessing))

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	audio, err := c.hub.provider.Exchange(ctx, msg.Audio, msg.Format)
	if err != nil {
		c.logProviderError(err, time.Since(start))
		c.queue(CreateErrorMessage(ErrVoiceResponse))
		return
	}
	if audio == "" {
		c.logger.Error("Voice provider returned empty audio")
		c.queue(CreateErrorMessage(ErrVoiceResponse))
		return
	}

	c.logger.Info("Voice response generated",
		zap.String("format", msg.Format),
		zap.Int("inputSize", len(msg.Audio)),
		zap.Int("outputSize", len(audio)),
		zap.Duration("elapsed", time.Since(start)))

	c.queue(CreateAudioResponseMessage(audio))
}

func (c *Client) logProviderError(err error, elapsed time.Duration) {
	kind := repositories.VoiceErrorKind(err)
	fields := []zap.Field{zap.String("kind", kind), zap.Duration("elapsed", elapsed), zap.Error(err)}

	var providerErr *repositories.ProviderError
	switch {
	case errors.Is(err, repositories.ErrVoiceNotConfigured):
		c.logger.Warn("Voice provider credentials not configured", fields...)
	case errors.As(err, &providerErr):
		c.logger.Error("Voice provider API error", append(fields,
			zap.Int("statusCode", providerErr.StatusCode),
			zap.String("response", providerErr.Body))...)
	case errors.Is(err, context.Canceled):
		c.logger.Debug("Voice provider call cancelled", fields...)
	default:
		c.logger.Error("Error calling voice provider", fields...)
	}
}
