package uvshim

import (
	"context"
	"net"

	"github.com/google/uuid"
)

// AllocCb supplies a writable buffer for an incoming read.
type AllocCb func(suggestedSize int) []byte

// ReadCb receives a chunk of data (status OK, nread>0), end-of-stream
// (status EOF), or a terminal error (status != OK, nread==0).
type ReadCb func(t *TCP, nread int, buf []byte, status Status)

// WriteCb fires once a queued write has fully drained onto the wire,
// or failed.
type WriteCb func(req *WriteReq, status Status)

// ConnectCb fires once a pending connect resolves.
type ConnectCb func(req *ConnectReq, status Status)

// ConnectionCb fires once per incoming connection accepted into the
// listener's backlog.
type ConnectionCb func(t *TCP, status Status)

// WriteReq is a libuv-compatible uv_write_t: an opaque request handle
// the caller owns until WriteCb fires. ID correlates the request
// across log lines the way turborepo's task IDs tag a run.
type WriteReq struct {
	ID   uuid.UUID
	Data interface{}
	cb   WriteCb
}

// ConnectReq is a libuv-compatible uv_connect_t.
type ConnectReq struct {
	ID   uuid.UUID
	Data interface{}
	cb   ConnectCb
}

// ShutdownReq is a libuv-compatible uv_shutdown_t. The shim resolves
// shutdown synchronously, but keeps the request type for ABI parity
// and so callers can correlate the call in logs by ID.
type ShutdownReq struct {
	ID   uuid.UUID
	Data interface{}
}

type pendingConnect struct {
	req     *ConnectReq
	network string
	addr    string
	done    chan connectResult
}

type connectResult struct {
	conn Conn
	err  error
}

type queuedWrite struct {
	req     *WriteReq
	payload []byte
	offset  int
}

// TCP is a libuv-compatible uv_tcp_t: a stream or listening socket.
type TCP struct {
	Handle

	bindAddr string
	conn     Conn
	listener Listener
	nodelay  bool

	allocCb AllocCb
	readCb  ReadCb
	reading bool

	connect *pendingConnect

	writeQueue []*queuedWrite

	connectionCb ConnectionCb
	backlog      []Conn
}

func (*TCP) isHandle() {}

// InitTCP zero-initializes t against loop.
func (l *Loop) InitTCP(t *TCP) Status {
	t.init(TCPHandle, l)
	*t = TCP{Handle: t.Handle}
	return OK
}

// TCPBind records the address a subsequent Listen will bind to. This
// shim resolves the actual OS bind at Listen time (Go's net package
// doesn't expose a separate bind/listen split), so TCPBind itself
// cannot fail for reasons a real bind() call would.
func (l *Loop) TCPBind(t *TCP, addr string) Status {
	t.bindAddr = addr
	return OK
}

// TCPNodelay sets the handle's nodelay preference; applied immediately
// if already connected, and applied to the connection as soon as one
// is established otherwise.
func (l *Loop) TCPNodelay(t *TCP, enable bool) Status {
	t.nodelay = enable
	if t.conn != nil {
		if err := t.conn.SetNoDelay(enable); err != nil {
			return EINVAL
		}
	}
	return OK
}

// TCPConnect begins an asynchronous connect. The loop's reactor
// performs the dial; TCP polls it to completion inside run_io. req is
// considered caller-owned until cb fires.
func (l *Loop) TCPConnect(t *TCP, req *ConnectReq, addr string, cb ConnectCb) Status {
	if t.connect != nil {
		return EINVAL
	}
	req.cb = cb
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	pending := &pendingConnect{req: req, network: "tcp", addr: addr, done: make(chan connectResult, 1)}
	t.connect = pending
	go func() {
		conn, err := t.Loop.reactor.Dial(context.Background(), pending.network, pending.addr)
		pending.done <- connectResult{conn: conn, err: err}
	}()
	l.activateTCP(t)
	return OK
}

// TCPListen installs t as a listening socket and arms the connection
// callback that fires as entries are drained from the accept backlog.
func (l *Loop) TCPListen(t *TCP, backlog int, cb ConnectionCb) Status {
	listener, err := l.reactor.Listen("tcp", t.bindAddr)
	if err != nil {
		return EADDRINUSE
	}
	t.listener = listener
	t.connectionCb = cb
	l.activateTCP(t)
	return OK
}

// TCPAccept consumes one connection off listener's accept backlog
// into client, the caller-provided, already
// uv_tcp_init'd handle that will represent the new connection.
func (l *Loop) TCPAccept(listener, client *TCP) Status {
	if len(listener.backlog) == 0 {
		return EAGAIN
	}
	conn := listener.backlog[0]
	listener.backlog = listener.backlog[1:]
	client.conn = conn
	if client.nodelay {
		conn.SetNoDelay(true)
	}
	l.activateTCP(client)
	return OK
}

// ReadStart arms reading on t; a read in progress continues until
// ReadStop or Close, re-checked after every callback invocation so a
// callback may cancel mid-iteration.
func (l *Loop) ReadStart(t *TCP, alloc AllocCb, read ReadCb) Status {
	t.allocCb = alloc
	t.readCb = read
	t.reading = true
	l.activateTCP(t)
	return OK
}

// ReadStop disarms reading; it does not close the connection.
func (l *Loop) ReadStop(t *TCP) Status {
	t.reading = false
	return OK
}

// Write enqueues data for asynchronous delivery, attempting an
// immediate optimistic write first — if that drains the whole
// payload, cb fires synchronously, before Write returns, and nothing
// is queued. If t has no connection, cb fires immediately with
// ENOTCONN.
func (l *Loop) Write(t *TCP, data []byte, req *WriteReq, cb WriteCb) Status {
	req.cb = cb
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if t.conn == nil {
		l.fireWriteCb(req, ENOTCONN)
		return OK
	}
	payload := append([]byte(nil), data...)
	if len(t.writeQueue) == 0 {
		n, status := t.conn.TryWrite(payload)
		if status == OK && n == len(payload) {
			l.fireWriteCb(req, OK)
			return OK
		}
		if status != OK && status != EAGAIN {
			l.fireWriteCb(req, status)
			return OK
		}
		payload = payload[n:]
	}
	t.writeQueue = append(t.writeQueue, &queuedWrite{req: req, payload: payload})
	l.activateTCP(t)
	return OK
}

// TryWrite performs an immediate write outside of the queue; it is
// only valid when the queue is currently empty.
func (l *Loop) TryWrite(t *TCP, data []byte) (int, Status) {
	if len(t.writeQueue) > 0 {
		return 0, EAGAIN
	}
	if t.conn == nil {
		return 0, ENOTCONN
	}
	return t.conn.TryWrite(data)
}

// Shutdown half-closes the write side of t's connection synchronously
// and fires cb with the result immediately.
func (l *Loop) Shutdown(t *TCP, req *ShutdownReq, cb func(*ShutdownReq, Status)) Status {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if t.conn == nil {
		cb(req, ENOTCONN)
		return OK
	}
	status := t.conn.Shutdown()
	cb(req, status)
	return OK
}

// TCPGetsockname/TCPGetpeername return the local/remote address of an
// established connection.
func (l *Loop) TCPGetsockname(t *TCP) (net.Addr, Status) {
	if t.conn == nil {
		return nil, ENOTCONN
	}
	return t.conn.LocalAddr(), OK
}

func (l *Loop) TCPGetpeername(t *TCP) (net.Addr, Status) {
	if t.conn == nil {
		return nil, ENOTCONN
	}
	return t.conn.RemoteAddr(), OK
}

// TCPClose releases t: cancels any pending connect, drops queued
// writes, purges list membership, and enqueues the close callback.
func (l *Loop) TCPClose(t *TCP, closeCb func(*TCP)) {
	t.clearActive()
	t.setClosing()
	t.reading = false
	t.connect = nil
	t.writeQueue = nil
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	if t.listener != nil {
		t.listener.Close()
		t.listener = nil
	}
	l.tcps = removeTCP(l.tcps, t)
	l.enqueueClose(t, func() {
		if closeCb != nil {
			closeCb(t)
		}
	})
}

func (l *Loop) activateTCP(t *TCP) {
	if t.IsActive() {
		return
	}
	t.setActive()
	l.tcps = append(l.tcps, t)
}

func (l *Loop) fireWriteCb(req *WriteReq, status Status) {
	if req.cb != nil {
		req.cb(req, status)
	}
}

// runIO polls every active TCP handle for connect completion,
// accepts, reads, and queued writes, repeating the whole pass up to
// IOPassCap times while any handle did real work, to batch
// latency-sensitive inner-frame I/O without starving the rest of the
// tick's phases.
func (l *Loop) runIO() {
	passes := l.IOPassCap
	if passes <= 0 {
		passes = 1
	}
	for i := 0; i < passes; i++ {
		progressed := false
		for _, t := range snapshot(l.tcps) {
			if t.IsClosing() {
				continue
			}
			if l.pollConnect(t) {
				progressed = true
			}
			if l.pollAccept(t) {
				progressed = true
			}
			if l.pollRead(t) {
				progressed = true
			}
			if l.pollWrites(t) {
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}
}

func (l *Loop) pollConnect(t *TCP) bool {
	if t.connect == nil {
		return false
	}
	select {
	case res := <-t.connect.done:
		pending := t.connect
		t.connect = nil
		if res.err != nil {
			if pending.req.cb != nil {
				pending.req.cb(pending.req, ECONNREFUSED)
			}
			return true
		}
		t.conn = res.conn
		if t.nodelay {
			t.conn.SetNoDelay(true)
		}
		if pending.req.cb != nil {
			pending.req.cb(pending.req, OK)
		}
		return true
	default:
		return false
	}
}

func (l *Loop) pollAccept(t *TCP) bool {
	if t.listener == nil {
		return false
	}
	progressed := false
	for {
		conn, ok := t.listener.TryAccept()
		if !ok {
			break
		}
		t.backlog = append(t.backlog, conn)
		progressed = true
	}
	if t.connectionCb == nil {
		return progressed
	}
	for len(t.backlog) > 0 {
		before := len(t.backlog)
		t.connectionCb(t, OK)
		if len(t.backlog) == before {
			// the callback didn't drain the front entry via Accept;
			// stop to avoid looping forever on the same connection.
			break
		}
		progressed = true
	}
	return progressed
}

func (l *Loop) pollRead(t *TCP) bool {
	if !t.reading || t.conn == nil || t.allocCb == nil || t.readCb == nil {
		return false
	}
	progressed := false
	for {
		if !t.reading || t.conn == nil {
			break
		}
		buf := t.allocCb(65536)
		if len(buf) == 0 {
			break
		}
		n, status := t.conn.TryRead(buf)
		switch status {
		case OK:
			if n == 0 {
				t.readCb(t, 0, buf, EOF)
				t.reading = false
				progressed = true
				return progressed
			}
			t.readCb(t, n, buf, OK)
			progressed = true
		case EAGAIN:
			return progressed
		case EOF:
			t.readCb(t, 0, buf, EOF)
			t.reading = false
			return true
		default:
			t.readCb(t, 0, buf, EOF)
			t.reading = false
			return true
		}
	}
	return progressed
}

func (l *Loop) pollWrites(t *TCP) bool {
	progressed := false
	for len(t.writeQueue) > 0 {
		front := t.writeQueue[0]
		for front.offset < len(front.payload) {
			n, status := t.conn.TryWrite(front.payload[front.offset:])
			if status == EAGAIN {
				return progressed
			}
			if status != OK {
				t.writeQueue = t.writeQueue[1:]
				l.fireWriteCb(front.req, status)
				progressed = true
				goto nextEntry
			}
			front.offset += n
			progressed = true
		}
		t.writeQueue = t.writeQueue[1:]
		l.fireWriteCb(front.req, OK)
	nextEntry:
	}
	return progressed
}
