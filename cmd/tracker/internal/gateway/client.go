package gateway

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/hub"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/protocol"
)

const (
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

var _ hub.ClientInterface = (*ClientAdapter)(nil)

// ClientAdapter bridges one websocket connection to the hub.
type ClientAdapter struct {
	conn   net.Conn
	hub    *hub.Hub
	send   chan []byte
	logger *zap.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	// both pumps write frames; wmu keeps them whole
	wmu sync.Mutex

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, h *hub.Hub, logger *zap.Logger) *ClientAdapter {
	return &ClientAdapter{
		conn:       conn,
		hub:        h,
		send:       make(chan []byte, sendBuffer),
		logger:     logger,
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

// Handler upgrades requests and serves each connection as an operator client.
func Handler(h *hub.Hub, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Warn("Websocket upgrade failed", zap.Error(err))
			return
		}
		NewClient(conn, h, logger).Start()
	})
}

func (c *ClientAdapter) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.conn.RemoteAddr().String() }

// Close stops the write pump, which closes the connection.
func (c *ClientAdapter) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
	})
}

// SendJSON queues v for delivery; a slow client loses messages rather than stalling the hub.
func (c *ClientAdapter) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Encode response failed", zap.Error(err))
		return
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		c.logger.Warn("Client send buffer full, dropping message", zap.String("client", c.ID()))
	}
}

func (c *ClientAdapter) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			return
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			return
		}
		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return
		}
		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPing:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
			if err := c.write(ws.OpPong, payload); err != nil {
				return
			}
		case ws.OpPong:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		case ws.OpText:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
			var req protocol.WSRequest
			if err := json.Unmarshal(payload, &req); err != nil {
				c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, Status: "error", Message: "Invalid JSON"})
				continue
			}
			c.hub.HandleCommand(c, req)
		}
	}
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.wmu.Lock()
				c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
				c.conn.Write(ws.CompiledClose)
				c.wmu.Unlock()
				return
			}
			if err := c.write(ws.OpText, msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}

func (c *ClientAdapter) write(op ws.OpCode, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	return wsutil.WriteServerMessage(c.conn, op, payload)
}
