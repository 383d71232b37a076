package api

import (
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin:     checkOrigin,
}

// checkOrigin accepts same-host pages and local dev servers.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// wsMessage is the envelope of every server-to-browser text frame.
type wsMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn

	mu        sync.Mutex
	closeOnce sync.Once
}

func newWSConn(c *websocket.Conn) *wsConn {
	return &wsConn{conn: c}
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteJSON(v)
}

// DiscardReads consumes inbound frames so control messages are handled and
// returns a channel closed when the peer goes away.
func (c *wsConn) DiscardReads() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.conn.NextReader(); err != nil {
				return
			}
		}
	}()
	return done
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}
