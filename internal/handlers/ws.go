package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"blog/internal/auth"
)

// Subprotocols spoken on /graphql. graphql-ws is the older
// subscriptions-transport-ws dialect still used by many clients.
const (
	protocolTransportWS = "graphql-transport-ws"
	protocolGraphQLWS   = "graphql-ws"
)

const (
	writeWait   = 10 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 9) / 10
	initTimeout = 10 * time.Second
)

// Close codes of the graphql-transport-ws protocol.
const (
	closeBadRequest        = 4400
	closeUnauthorized      = 4401
	closeInitTimeout       = 4408
	closeSubscriberExists  = 4409
	closeTooManyInitialize = 4429
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type wsRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

type wsConn struct {
	h      *Handler
	conn   *websocket.Conn
	legacy bool
	log    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex

	mu          sync.Mutex
	token       string
	initialized bool
	subs        map[string]context.CancelFunc
	wg          sync.WaitGroup
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &wsConn{
		h:      h,
		conn:   conn,
		legacy: conn.Subprotocol() == protocolGraphQLWS,
		log:    h.log.With(zap.String("remote", r.RemoteAddr), zap.String("subprotocol", conn.Subprotocol())),
		ctx:    ctx,
		cancel: cancel,
		token:  auth.FromRequest(r),
		subs:   make(map[string]context.CancelFunc),
	}
	c.log.Debug("websocket connected")
	go c.pingLoop()
	c.readLoop()
}

// send writes one frame. Writes are serialized because every subscription
// goroutine shares the connection.
func (c *wsConn) send(msg wsMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) sendPayload(id, typ string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.send(wsMessage{ID: id, Type: typ, Payload: raw})
}

func (c *wsConn) closeWith(code int, text string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	c.conn.Close()
}

func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *wsConn) readLoop() {
	defer func() {
		c.cancel()
		c.wg.Wait()
		c.conn.Close()
		c.log.Debug("websocket disconnected")
	}()

	c.conn.SetReadLimit(maxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	initTimer := time.AfterFunc(initTimeout, func() {
		c.mu.Lock()
		ok := c.initialized
		c.mu.Unlock()
		if !ok {
			c.closeWith(closeInitTimeout, "Connection initialisation timeout")
		}
	})
	defer initTimer.Stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("websocket read failed", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.closeWith(closeBadRequest, "Invalid message received")
			return
		}
		if !c.handle(msg) {
			return
		}
	}
}

// handle processes one client message and reports whether the connection
// stays open.
func (c *wsConn) handle(msg wsMessage) bool {
	switch msg.Type {
	case "connection_init":
		return c.init(msg.Payload)
	case "subscribe", "start":
		return c.subscribe(msg)
	case "complete", "stop":
		c.stop(msg.ID)
	case "ping":
		if err := c.send(wsMessage{Type: "pong"}); err != nil {
			return false
		}
	case "pong":
	case "connection_terminate":
		return false
	default:
		c.closeWith(closeBadRequest, "Invalid message type "+msg.Type)
		return false
	}
	return true
}

func (c *wsConn) init(payload json.RawMessage) bool {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		c.closeWith(closeTooManyInitialize, "Too many initialisation requests")
		return false
	}
	c.initialized = true
	if token := tokenFromInit(payload); token != "" {
		c.token = token
	}
	c.mu.Unlock()

	if err := c.send(wsMessage{Type: "connection_ack"}); err != nil {
		return false
	}
	if c.legacy {
		if err := c.send(wsMessage{Type: "ka"}); err != nil {
			return false
		}
	}
	return true
}

// tokenFromInit reads the credential a browser client sends in the
// connection_init payload, with or without the Bearer prefix.
func tokenFromInit(payload json.RawMessage) string {
	if len(payload) == 0 {
		return ""
	}
	var p map[string]interface{}
	if err := json.Unmarshal(payload, &p); err != nil {
		return ""
	}
	for _, key := range []string{"Authorization", "authorization", "authToken"} {
		if v, ok := p[key].(string); ok && v != "" {
			if t := auth.BearerToken(v); t != "" {
				return t
			}
			return v
		}
	}
	return ""
}

func (c *wsConn) subscribe(msg wsMessage) bool {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		c.closeWith(closeUnauthorized, "Unauthorized")
		return false
	}
	if msg.ID == "" {
		c.mu.Unlock()
		c.closeWith(closeBadRequest, "Missing subscription id")
		return false
	}
	if _, exists := c.subs[msg.ID]; exists {
		c.mu.Unlock()
		c.closeWith(closeSubscriberExists, "Subscriber for "+msg.ID+" already exists")
		return false
	}
	var req wsRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		c.mu.Unlock()
		c.closeWith(closeBadRequest, "Invalid subscribe payload")
		return false
	}
	ctx, cancel := context.WithCancel(auth.WithToken(c.ctx, c.token))
	c.subs[msg.ID] = cancel
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run(ctx, msg.ID, req)
	return true
}

func (c *wsConn) stop(id string) {
	c.mu.Lock()
	cancel, ok := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// run executes one operation and streams its results until the operation
// ends or the client stops it.
func (c *wsConn) run(ctx context.Context, id string, req wsRequest) {
	defer c.wg.Done()
	log := c.log.With(zap.String("id", id), zap.String("operation", req.OperationName))

	responses, err := c.h.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		c.stop(id)
		_ = c.sendPayload(id, "error", []map[string]string{{"message": err.Error()}})
		return
	}

	nextType := "next"
	if c.legacy {
		nextType = "data"
	}
	for v := range responses {
		resp, ok := v.(*graphql.Response)
		if !ok {
			continue
		}
		if resp.Data == nil && len(resp.Errors) > 0 {
			// Operation rejected before producing data.
			c.stop(id)
			if c.legacy {
				_ = c.sendPayload(id, "error", resp.Errors[0])
			} else {
				_ = c.sendPayload(id, "error", resp.Errors)
			}
			return
		}
		if err := c.sendPayload(id, nextType, resp); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			c.stop(id)
			return
		}
	}

	c.mu.Lock()
	cancel, live := c.subs[id]
	delete(c.subs, id)
	c.mu.Unlock()
	// A subscription the client stopped gets no complete frame.
	if !live {
		return
	}
	stopped := ctx.Err() != nil
	cancel()
	if !stopped {
		_ = c.send(wsMessage{ID: id, Type: "complete"})
	}
}
