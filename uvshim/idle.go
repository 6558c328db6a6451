package uvshim

// IdleCb is invoked once per tick, for every active idle handle, in
// insertion order — before any I/O is polled.
type IdleCb func(*Idle)

// Idle is a libuv-compatible uv_idle_t.
type Idle struct {
	Handle
	cb IdleCb
}

func (*Idle) isHandle() {}

// InitIdle zero-initializes h against loop.
func (l *Loop) InitIdle(h *Idle) {
	h.init(IdleHandle, l)
	h.cb = nil
}

// IdleStart arms h; idempotent for an already-active handle, which
// simply gets its callback replaced.
func (l *Loop) IdleStart(h *Idle, cb IdleCb) Status {
	if !h.IsActive() {
		h.setActive()
		l.idles = append(l.idles, h)
	}
	h.cb = cb
	return OK
}

// IdleStop disarms h.
func (l *Loop) IdleStop(h *Idle) Status {
	if !h.IsActive() {
		return OK
	}
	h.clearActive()
	h.cb = nil
	l.idles = removeIdle(l.idles, h)
	return OK
}

// IdleClose releases h and enqueues its close callback.
func (l *Loop) IdleClose(h *Idle, closeCb func(*Idle)) {
	l.IdleStop(h)
	h.setClosing()
	l.enqueueClose(h, func() {
		if closeCb != nil {
			closeCb(h)
		}
	})
}
