package signal

import (
	"sync"
	"time"

	"github.com/Suja2004/WebRTC/internal/core/domain"

	"github.com/gorilla/websocket"
)

// wsConn serializes writes to one websocket connection. gorilla/websocket
// allows at most one concurrent writer per connection.
type wsConn struct {
	ws           *websocket.Conn
	writeMu      sync.Mutex
	writeTimeout time.Duration
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) writePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// ConnTable maps participant ids to live websocket connections. It is
// the only Sender implementation; the relay stays decoupled from the
// transport through it.
type ConnTable struct {
	mu           sync.RWMutex
	conns        map[domain.ParticipantID]*wsConn
	writeTimeout time.Duration
}

func NewConnTable(writeTimeout time.Duration) *ConnTable {
	return &ConnTable{
		conns:        make(map[domain.ParticipantID]*wsConn),
		writeTimeout: writeTimeout,
	}
}

// Register binds a connection to the id, closing any previous one.
func (t *ConnTable) Register(id domain.ParticipantID, ws *websocket.Conn) *wsConn {
	conn := &wsConn{ws: ws, writeTimeout: t.writeTimeout}

	t.mu.Lock()
	old, existed := t.conns[id]
	t.conns[id] = conn
	t.mu.Unlock()

	if existed {
		old.ws.Close()
	}
	return conn
}

// Unregister removes the id's binding, but only if it still points at
// the given connection. A reconnect that already replaced the binding
// is left alone.
func (t *ConnTable) Unregister(id domain.ParticipantID, conn *wsConn) {
	t.mu.Lock()
	if current, ok := t.conns[id]; ok && current == conn {
		delete(t.conns, id)
	}
	t.mu.Unlock()
}

// SendTo implements ports.Sender.
func (t *ConnTable) SendTo(id domain.ParticipantID, env domain.Envelope) error {
	t.mu.RLock()
	conn, ok := t.conns[id]
	t.mu.RUnlock()

	if !ok {
		return domain.ErrRecipientOffline
	}
	return conn.writeJSON(env)
}

func (t *ConnTable) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}
