package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/animeshcode007/quizerr-go-client/internal/events"
)

// Config holds configuration for the server connection.
type Config struct {
	URL            string
	DialTimeout    time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	AckTimeout     time.Duration
	MaxMessageSize int64

	// Reconnect enables automatic redial after an unexpected disconnect.
	Reconnect     bool
	ReconnectWait time.Duration
	MaxReconnects int // negative means unlimited
}

// DefaultConfig returns the default connection configuration.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		DialTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		AckTimeout:     10 * time.Second,
		MaxMessageSize: 64 * 1024,
		Reconnect:      true,
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
	}
}

type pendingAck struct {
	handler AckHandler
	timer   clockwork.Timer
	settled chan struct{} // closed once the ack resolved, expired, or failed
}

// Conn is the single persistent connection to the server. It implements Bus.
type Conn struct {
	config Config
	clock  clockwork.Clock

	mu         sync.RWMutex
	ws         *websocket.Conn
	sendCh     chan []byte
	socketDone chan struct{}
	sessionID  string
	connected  bool
	connecting bool
	closed     bool
	subs       map[string]map[string]Handler
	pending    map[string]*pendingAck

	dispatchCh chan func()
	done       chan struct{}
}

// NewConn creates a connection manager. No network activity happens until
// Connect is called.
func NewConn(config Config, clock clockwork.Clock) *Conn {
	c := &Conn{
		config:     config,
		clock:      clock,
		subs:       make(map[string]map[string]Handler),
		pending:    make(map[string]*pendingAck),
		dispatchCh: make(chan func(), 256),
		done:       make(chan struct{}),
	}
	go c.dispatchLoop()
	return c
}

// Connect establishes the transport if it is not already established.
// Calling it while connected is a no-op and never creates a second session.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.connected || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	err := c.dial(ctx)

	c.mu.Lock()
	c.connecting = false
	c.mu.Unlock()

	if err != nil {
		c.fireError(events.ConnectError, err)
		return err
	}
	return nil
}

// dial opens the socket, performs the welcome handshake, and starts the
// pumps. The welcome frame carries the server-assigned session id.
func (c *Conn) dial(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.DialTimeout}
	ws, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.URL, err)
	}

	ws.SetReadDeadline(time.Now().Add(c.config.DialTimeout))
	_, raw, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return fmt.Errorf("read welcome frame: %w", err)
	}
	f, err := decodeFrame(raw)
	if err != nil || f.Type != frameWelcome {
		ws.Close()
		return fmt.Errorf("expected welcome frame, got %q", raw)
	}
	var welcome welcomeData
	if err := json.Unmarshal(f.Data, &welcome); err != nil || welcome.SessionID == "" {
		ws.Close()
		return fmt.Errorf("malformed welcome frame: %q", raw)
	}

	sendCh := make(chan []byte, 64)
	socketDone := make(chan struct{})

	c.mu.Lock()
	c.ws = ws
	c.sendCh = sendCh
	c.socketDone = socketDone
	c.sessionID = welcome.SessionID
	c.connected = true
	c.mu.Unlock()

	go c.writePump(ws, sendCh, socketDone)
	go c.readPump(ws)

	log.Info().
		Str("session_id", welcome.SessionID).
		Str("url", c.config.URL).
		Msg("connected to server")

	c.dispatch(func() { c.fire(events.Connect, nil) })
	return nil
}

// Close tears down the connection for good. After Close no handler or
// acknowledgment callback fires.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ws := c.ws
	c.mu.Unlock()

	close(c.done)
	if ws != nil {
		ws.Close()
	}
	log.Info().Msg("connection closed")
	return nil
}

// ID returns the server-assigned session id, empty when disconnected.
func (c *Conn) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// Connected reports whether the transport is currently established.
func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// On registers a handler for a push event.
func (c *Conn) On(event string, h Handler) Subscription {
	id := uuid.NewString()
	c.mu.Lock()
	if c.subs[event] == nil {
		c.subs[event] = make(map[string]Handler)
	}
	c.subs[event][id] = h
	c.mu.Unlock()
	return Subscription{Event: event, id: id}
}

// Off removes a previously registered handler.
func (c *Conn) Off(sub Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handlers, ok := c.subs[sub.Event]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(c.subs, sub.Event)
		}
	}
}

// Emit sends an unacknowledged event.
func (c *Conn) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	raw, err := encodeFrame(frame{Type: frameEvent, Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}
	return c.enqueue(raw)
}

// EmitWithAck sends a request and registers ack for the server's response.
// The callback fires exactly once with either the response payload, or
// ErrAckTimeout / ErrConnectionLost when no acknowledgment will arrive.
func (c *Conn) EmitWithAck(event string, payload any, ack AckHandler) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	id := uuid.NewString()
	raw, err := encodeFrame(frame{Type: frameEvent, Event: event, ID: id, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", event, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	timer := c.clock.NewTimer(c.config.AckTimeout)
	settled := make(chan struct{})
	c.pending[id] = &pendingAck{handler: ack, timer: timer, settled: settled}
	sendCh := c.sendCh
	c.mu.Unlock()

	go func() {
		select {
		case <-timer.Chan():
			c.dispatch(func() { c.expireAck(id) })
		case <-settled:
			stopAndDrainTimer(timer)
		case <-c.done:
			stopAndDrainTimer(timer)
		}
	}()

	select {
	case sendCh <- raw:
		return nil
	default:
		c.dropPending(id)
		return ErrSendBufferFull
	}
}

func (c *Conn) enqueue(raw []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClosed
	}
	if !c.connected {
		c.mu.RUnlock()
		return ErrNotConnected
	}
	sendCh := c.sendCh
	c.mu.RUnlock()

	select {
	case sendCh <- raw:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// writePump sends queued frames and periodic pings on one socket.
func (c *Conn) writePump(ws *websocket.Conn, sendCh chan []byte, socketDone chan struct{}) {
	ticker := c.clock.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case msg := <-sendCh:
			ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				log.Error().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.Chan():
			ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("failed to send ping")
				return
			}

		case <-socketDone:
			ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// readPump reads frames from one socket and feeds them to the dispatcher.
func (c *Conn) readPump(ws *websocket.Conn) {
	defer c.handleSocketClosed(ws)

	ws.SetReadLimit(c.config.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Msg("unexpected socket close")
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		f, err := decodeFrame(raw)
		if err != nil {
			log.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}

		switch f.Type {
		case frameAck:
			id, data := f.ID, f.Data
			c.dispatch(func() { c.resolveAck(id, data) })
		case frameEvent:
			event, data := f.Event, f.Data
			c.dispatch(func() { c.fire(event, data) })
		default:
			// Welcome frames only appear during the handshake.
		}
	}
}

// handleSocketClosed runs when a socket's read pump exits for any reason.
// Pending acknowledgments fail with ErrConnectionLost: the server may or may
// not have processed those requests, so callers must treat them as timed out.
func (c *Conn) handleSocketClosed(ws *websocket.Conn) {
	c.mu.Lock()
	if c.ws != ws {
		// A previous socket's pump outlived a reconnect; nothing to do.
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.connected = false
	c.sessionID = ""
	close(c.socketDone)
	c.sendCh = nil
	c.socketDone = nil
	closed := c.closed
	c.mu.Unlock()

	c.dispatch(func() {
		c.failPending(ErrConnectionLost)
		c.fire(events.Disconnect, nil)
	})

	if !closed && c.config.Reconnect {
		log.Warn().Msg("connection lost, scheduling reconnect")
		go c.reconnectLoop()
	}
}

// reconnectLoop redials with a fixed wait between attempts until it
// succeeds, the attempt budget runs out, or the connection is closed.
func (c *Conn) reconnectLoop() {
	for attempt := 1; c.config.MaxReconnects < 0 || attempt <= c.config.MaxReconnects; attempt++ {
		select {
		case <-c.clock.After(c.config.ReconnectWait):
		case <-c.done:
			return
		}

		c.mu.Lock()
		if c.closed || c.connected || c.connecting {
			c.mu.Unlock()
			return
		}
		c.connecting = true
		c.mu.Unlock()

		err := c.dial(context.Background())

		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()

		if err == nil {
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect attempt failed")
		c.fireError(events.ConnectError, err)
	}
	log.Error().Msg("giving up on reconnect")
}

// dispatchLoop invokes all handler and acknowledgment callbacks one at a
// time, in arrival order.
func (c *Conn) dispatchLoop() {
	for {
		select {
		case <-c.done:
			return
		case fn := <-c.dispatchCh:
			fn()
		}
	}
}

func (c *Conn) dispatch(fn func()) {
	select {
	case c.dispatchCh <- fn:
	case <-c.done:
	}
}

// fire invokes every handler registered for event. Runs on the dispatcher.
func (c *Conn) fire(event string, data json.RawMessage) {
	c.mu.RLock()
	handlers := make([]Handler, 0, len(c.subs[event]))
	for _, h := range c.subs[event] {
		handlers = append(handlers, h)
	}
	c.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
}

func (c *Conn) fireError(event string, err error) {
	data, _ := json.Marshal(events.ErrorPayload{Message: err.Error()})
	c.dispatch(func() { c.fire(event, data) })
}

// resolveAck delivers an acknowledgment to its waiting handler. Removing
// the pending entry before invoking guarantees at-most-once delivery even
// if the server misbehaves and acks twice.
func (c *Conn) resolveAck(id string, data json.RawMessage) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	close(p.settled)
	p.handler(data, nil)
}

// expireAck fails an acknowledgment that never arrived in time.
func (c *Conn) expireAck(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return
	}
	close(p.settled)
	log.Warn().Str("ack_id", id).Msg("acknowledgment timed out")
	p.handler(nil, ErrAckTimeout)
}

// failPending fails every in-flight acknowledgment. Runs on the dispatcher.
func (c *Conn) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*pendingAck)
	c.mu.Unlock()

	for _, p := range pending {
		close(p.settled)
		p.handler(nil, err)
	}
}

// dropPending removes a pending acknowledgment that was never sent.
func (c *Conn) dropPending(id string) {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if ok {
		close(p.settled)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel so the
// waiting goroutine does not leak.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
