package fanout

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Session wraps one websocket connection. Pushes come from fan-out
// goroutines concurrently, so writes are serialized by a mutex and
// bounded by a write deadline.
type Session struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewSession wraps an upgraded websocket connection.
func NewSession(conn *websocket.Conn) *Session {
	return &Session{conn: conn}
}

// Push writes v as JSON with a write deadline.
func (s *Session) Push(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(v)
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	return s.conn.Close()
}
