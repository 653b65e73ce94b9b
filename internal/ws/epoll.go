//go:build linux

package ws

import (
	"fmt"
	"net"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// pollBatch caps how many readiness events one Wait call can return.
const pollBatch = 128

// readPoller multiplexes read readiness for every client socket through a
// single epoll descriptor. The gateway holds thousands of mostly idle
// connections; registering them with the kernel means only sockets with
// pending frames cost us wakeups, not one parked goroutine each.
type readPoller struct {
	epfd  int
	mu    sync.RWMutex
	byFD  map[int]net.Conn
	batch []unix.EpollEvent
}

func newReadPoller() (*readPoller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("ws: epoll_create1: %w", err)
	}
	return &readPoller{
		epfd:  epfd,
		byFD:  make(map[int]net.Conn),
		batch: make([]unix.EpollEvent, pollBatch),
	}, nil
}

// Add puts the connection's socket on the interest list for EPOLLIN and
// EPOLLHUP and records the fd mapping used to resolve events back to conns.
func (p *readPoller) Add(conn net.Conn) error {
	fd := socketFD(conn)
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLHUP, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, syscall.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("ws: epoll_ctl add fd=%d: %w", fd, err)
	}
	p.mu.Lock()
	p.byFD[fd] = conn
	p.mu.Unlock()
	return nil
}

// Remove drops the socket from the interest list and forgets the fd mapping.
func (p *readPoller) Remove(conn net.Conn) error {
	fd := socketFD(conn)
	if err := unix.EpollCtl(p.epfd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("ws: epoll_ctl del fd=%d: %w", fd, err)
	}
	p.mu.Lock()
	delete(p.byFD, fd)
	p.mu.Unlock()
	return nil
}

// Wait blocks in epoll_wait until at least one registered socket is
// readable, then resolves the ready fds to connections. An fd removed
// between the wakeup and the lookup is skipped.
func (p *readPoller) Wait() ([]net.Conn, error) {
	n, err := unix.EpollWait(p.epfd, p.batch, -1)
	if err != nil {
		return nil, err
	}

	ready := make([]net.Conn, 0, n)
	p.mu.RLock()
	for i := 0; i < n; i++ {
		if conn, ok := p.byFD[int(p.batch[i].Fd)]; ok {
			ready = append(ready, conn)
		}
	}
	p.mu.RUnlock()
	return ready, nil
}

// Close releases the epoll descriptor. Registered sockets stay open; the
// connection manager owns their lifecycle.
func (p *readPoller) Close() error {
	p.mu.Lock()
	p.byFD = nil
	p.mu.Unlock()
	return unix.Close(p.epfd)
}

// socketFD borrows the connection's file descriptor through SyscallConn.
// net.Conn's File() would dup the fd; a borrowed fd stays valid for epoll
// registration without leaking a second descriptor.
func socketFD(conn net.Conn) int {
	sc, ok := conn.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	_ = raw.Control(func(sfd uintptr) { fd = int(sfd) })
	return fd
}
