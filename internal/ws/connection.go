package ws

import (
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Connection is one upgraded WebSocket client. Outbound frames go through a
// per-connection mutex so broadcasts, direct sends, and liveness pings never
// interleave bytes on the wire.
type Connection struct {
	ID         string
	Conn       net.Conn
	Fd         int    // socket fd, key for poller event lookups
	RemoteIP   string // captured at upgrade time, used by the connect gate
	CreatedAt  time.Time
	LastPing   time.Time // last inbound activity, drives the liveness sweep
	writeMu    sync.Mutex
	processing int32 // atomic; guards against duplicate level-triggered reads
}

// WriteMessage sends one text frame to the peer.
func (c *Connection) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteServerMessage(c.Conn, ws.OpText, data)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.Conn.Close()
}

// ConnectionManager indexes live connections by id and by socket fd. The fd
// index exists because poller events carry fds, while the engine addresses
// peers by connection id.
type ConnectionManager struct {
	mu   sync.RWMutex
	byID map[string]*Connection
	byFD map[int]*Connection
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		byID: make(map[string]*Connection),
		byFD: make(map[int]*Connection),
	}
}

// Add registers a connection under both indexes.
func (cm *ConnectionManager) Add(conn *Connection) {
	cm.mu.Lock()
	cm.byID[conn.ID] = conn
	cm.byFD[conn.Fd] = conn
	cm.mu.Unlock()
}

// Remove drops a connection by id and closes its socket. Returns false when
// the id was already gone, which happens when a read error and the liveness
// sweep race to evict the same peer.
func (cm *ConnectionManager) Remove(id string) bool {
	cm.mu.Lock()
	conn, ok := cm.byID[id]
	if ok {
		delete(cm.byID, id)
		delete(cm.byFD, conn.Fd)
	}
	cm.mu.Unlock()

	if ok {
		conn.Close()
	}
	return ok
}

// Get returns the connection with the given id, or nil.
func (cm *ConnectionManager) Get(id string) *Connection {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.byID[id]
}

// GetByConn resolves a poller-reported net.Conn back to its Connection via
// the socket fd, or nil if it was evicted in the meantime.
func (cm *ConnectionManager) GetByConn(c net.Conn) *Connection {
	fd := socketFD(c)
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.byFD[fd]
}

// Count reports the number of live connections.
func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.byID)
}

// Broadcast sends one frame to every live connection. Write failures are
// ignored here; the failing peer is evicted when its next read errors.
func (cm *ConnectionManager) Broadcast(msg []byte) {
	for _, conn := range cm.All() {
		_ = conn.WriteMessage(msg)
	}
}

// All snapshots the live connections so callers can iterate without the lock.
func (cm *ConnectionManager) All() []*Connection {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.byID))
	for _, conn := range cm.byID {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()
	return conns
}
