package uvshim

// PrepareCb is invoked once per tick, for every active prepare
// handle, in insertion order — immediately before I/O is polled.
type PrepareCb func(*Prepare)

// Prepare is a libuv-compatible uv_prepare_t.
type Prepare struct {
	Handle
	cb PrepareCb
}

func (*Prepare) isHandle() {}

func (l *Loop) InitPrepare(h *Prepare) {
	h.init(PrepareHandle, l)
	h.cb = nil
}

func (l *Loop) PrepareStart(h *Prepare, cb PrepareCb) Status {
	if !h.IsActive() {
		h.setActive()
		l.prepares = append(l.prepares, h)
	}
	h.cb = cb
	return OK
}

func (l *Loop) PrepareStop(h *Prepare) Status {
	if !h.IsActive() {
		return OK
	}
	h.clearActive()
	h.cb = nil
	l.prepares = removePrepare(l.prepares, h)
	return OK
}

func (l *Loop) PrepareClose(h *Prepare, closeCb func(*Prepare)) {
	l.PrepareStop(h)
	h.setClosing()
	l.enqueueClose(h, func() {
		if closeCb != nil {
			closeCb(h)
		}
	})
}
