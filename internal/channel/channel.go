package channel

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/pkg/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned by Connect after the channel has been torn down.
	ErrClosed = errors.New("channel is closed")
	// ErrReconnectExhausted is surfaced through OnError when the maximum
	// attempt count is reached. The channel stays Failed until an external
	// Connect.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)

// Callbacks are the channel's event surface. Each successful attempt emits
// exactly one OnOpen, followed eventually by exactly one OnClose before any
// subsequent OnOpen. Heartbeat replies never reach OnMessage.
type Callbacks struct {
	OnOpen         func()
	OnMessage      func(data []byte)
	OnClose        func()
	OnError        func(err error)
	OnReconnecting func(attempt int)
}

// Channel owns the tab's single duplex connection to the generation backend
// and its connect/heartbeat/reconnect state machine. A tab holds at most one
// live connection at any instant; Connect while open is a no-op.
type Channel struct {
	logger    *zap.Logger
	metrics   *metrics.Metrics
	cfg       config.ChannelConfig
	url       string
	sessionID string
	cb        Callbacks

	mu             sync.Mutex
	state          State
	conn           *websocket.Conn
	attempts       int
	gen            int
	closed         bool
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer

	// gorilla allows one concurrent writer per connection
	writeMu sync.Mutex
}

// New creates a channel for the given endpoint. The session identifier is
// announced to the server as the first control message after every open.
func New(logger *zap.Logger, m *metrics.Metrics, cfg config.ChannelConfig, wsURL, sessionID string, cb Callbacks) *Channel {
	cfg.SetDefaults()
	return &Channel{
		logger:    logger.Named("channel"),
		metrics:   m,
		cfg:       cfg,
		url:       wsURL,
		sessionID: sessionID,
		cb:        cb,
		state:     StateIdle,
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the current reconnect attempt count. It resets to zero
// only on a successful open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect starts a connection attempt. If the channel is already open this
// is a no-op; any non-open connection is discarded first. The attempt runs
// asynchronously; outcomes surface through the callbacks.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateOpen {
		c.mu.Unlock()
		c.logger.Debug("connect ignored, channel already open")
		return nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.state = StateConnecting
	c.mu.Unlock()

	go c.dial()
	return nil
}

// Send writes payload if the connection is open. Otherwise the payload is
// dropped and logged; nothing is queued for later delivery.
func (c *Channel) Send(payload []byte) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		c.logger.Warn("send dropped, connection not open",
			zap.String("state", c.State().String()))
		return
	}
	c.write(conn, payload)
}

// Close tears the channel down: heartbeat timer, reconnect timer and the
// connection are all cancelled together so no timer fires into a dead tab.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.state = StateClosing
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		// The read loop unblocks and finishes the close transition.
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	} else {
		c.mu.Lock()
		c.state = StateIdle
		c.mu.Unlock()
	}
	c.logger.Info("channel closed")
}

func (c *Channel) dial() {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.Dial(c.url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		c.logger.Warn("dial failed",
			zap.String("url", c.url),
			zap.Error(err))
		c.emitError(err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	if c.closed || c.state != StateConnecting {
		// Torn down (or externally redialed) while the handshake ran.
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.gen++
	gen := c.gen
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	c.metrics.ConnOpened()
	c.logger.Info("connection open", zap.String("url", c.url))

	// Session announcement first, then the initial heartbeat.
	c.write(conn, []byte(cnst.SessionAnnouncePrefix+c.sessionID))
	c.write(conn, []byte(cnst.HeartbeatRequest))
	c.metrics.HeartbeatSent()

	go c.heartbeatLoop(conn, stop)

	if c.cb.OnOpen != nil {
		c.cb.OnOpen()
	}

	c.readLoop(conn, gen)
}

func (c *Channel) readLoop(conn *websocket.Conn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		if string(data) == cnst.HeartbeatReply {
			c.logger.Debug("heartbeat reply")
			continue
		}
		if !json.Valid(data) {
			c.logger.Warn("dropping malformed message",
				zap.ByteString("data", data))
			c.metrics.MessageDropped()
			continue
		}
		if c.cb.OnMessage != nil {
			c.cb.OnMessage(data)
		}
	}
}

func (c *Channel) heartbeatLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.write(conn, []byte(cnst.HeartbeatRequest))
			c.metrics.HeartbeatSent()
		}
	}
}

func (c *Channel) handleClose(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// A stale read loop from a replaced connection.
		c.mu.Unlock()
		return
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	tearingDown := c.closed || c.state == StateClosing
	if tearingDown {
		c.state = StateIdle
	} else {
		c.state = StateReconnecting
	}
	c.mu.Unlock()

	c.metrics.ConnClosed()
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Warn("connection lost", zap.Error(err))
	} else {
		c.logger.Info("connection closed")
	}

	if c.cb.OnClose != nil {
		c.cb.OnClose()
	}
	if !tearingDown {
		c.scheduleReconnect()
	}
}

func (c *Channel) scheduleReconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.state = StateFailed
		c.mu.Unlock()
		c.logger.Error("reconnect attempts exhausted",
			zap.Int("attempts", c.cfg.MaxReconnectAttempts))
		c.emitError(ErrReconnectExhausted)
		return
	}
	c.attempts++
	attempt := c.attempts
	c.state = StateReconnecting
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		if c.closed || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.state = StateConnecting
		c.reconnectTimer = nil
		c.mu.Unlock()
		c.dial()
	})
	c.mu.Unlock()

	c.metrics.ReconnectAttempt()
	c.logger.Info("reconnect scheduled",
		zap.Int("attempt", attempt),
		zap.Duration("delay", c.cfg.ReconnectDelay))
	if c.cb.OnReconnecting != nil {
		c.cb.OnReconnecting(attempt)
	}
}

func (c *Channel) write(conn *websocket.Conn, payload []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.logger.Warn("write failed", zap.Error(err))
	}
}

func (c *Channel) emitError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}
