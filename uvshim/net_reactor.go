package uvshim

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// NetReactor is the production Reactor: it dials and listens on real
// TCP sockets, using SyscallConn to drive genuinely non-blocking
// reads and writes off of Go's net.Conn, since net.Conn's own
// Read/Write always block.
type NetReactor struct {
	dialer net.Dialer
}

// NewNetReactor returns a Reactor backed by the host's TCP stack.
func NewNetReactor() *NetReactor { return &NetReactor{} }

func (r *NetReactor) Dial(ctx context.Context, network, addr string) (Conn, error) {
	c, err := r.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	return newNetConn(c)
}

func (r *NetReactor) Listen(network, addr string) (Listener, error) {
	l, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	return &netListener{l: l}, nil
}

type netConn struct {
	c    net.Conn
	raw  syscall.RawConn
	fd   uintptr
	peer net.Addr
}

func newNetConn(c net.Conn) (*netConn, error) {
	sc, ok := c.(syscall.Conn)
	if !ok {
		return nil, errors.New("connection does not support non-blocking syscalls")
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil, err
	}
	return &netConn{c: c, raw: raw, peer: c.RemoteAddr()}, nil
}

func (c *netConn) TryRead(buf []byte) (int, Status) {
	var n int
	var readErr error
	err := c.raw.Read(func(fd uintptr) bool {
		n, readErr = syscall.Read(int(fd), buf)
		// returning false would make RawConn wait for readiness
		return true
	})
	if err != nil {
		return 0, EBADF
	}
	switch {
	case readErr == syscall.EAGAIN:
		return 0, EAGAIN
	case readErr == io.EOF || (readErr == nil && n == 0):
		return 0, EOF
	case readErr != nil:
		return 0, ENOTCONN
	default:
		return n, OK
	}
}

func (c *netConn) TryWrite(buf []byte) (int, Status) {
	var n int
	var writeErr error
	err := c.raw.Write(func(fd uintptr) bool {
		n, writeErr = syscall.Write(int(fd), buf)
		// returning false would make RawConn wait for readiness
		return true
	})
	if err != nil {
		return 0, EBADF
	}
	switch {
	case writeErr == syscall.EAGAIN:
		return 0, EAGAIN
	case writeErr == syscall.EPIPE:
		return 0, EPIPE
	case writeErr != nil:
		return 0, EPIPE
	default:
		return n, OK
	}
}

func (c *netConn) SetNoDelay(on bool) error {
	if tc, ok := c.c.(*net.TCPConn); ok {
		return tc.SetNoDelay(on)
	}
	return nil
}

func (c *netConn) LocalAddr() net.Addr  { return c.c.LocalAddr() }
func (c *netConn) RemoteAddr() net.Addr { return c.peer }

func (c *netConn) Shutdown() Status {
	if tc, ok := c.c.(*net.TCPConn); ok {
		if err := tc.CloseWrite(); err != nil {
			return ENOTCONN
		}
		return OK
	}
	return ENOTCONN
}

func (c *netConn) Close() error { return c.c.Close() }

type netListener struct {
	l net.Listener
}

func (nl *netListener) TryAccept() (Conn, bool) {
	tcpL, ok := nl.l.(*net.TCPListener)
	if !ok {
		return nil, false
	}
	if err := tcpL.SetDeadline(time.Now()); err != nil {
		return nil, false
	}
	c, err := tcpL.Accept()
	if err != nil {
		return nil, false
	}
	conn, err := newNetConn(c)
	if err != nil {
		c.Close()
		return nil, false
	}
	return conn, true
}

func (nl *netListener) Addr() net.Addr { return nl.l.Addr() }
func (nl *netListener) Close() error   { return nl.l.Close() }
