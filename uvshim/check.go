package uvshim

// CheckCb is invoked once per tick, for every active check handle, in
// insertion order — immediately after I/O is polled.
type CheckCb func(*Check)

// Check is a libuv-compatible uv_check_t.
type Check struct {
	Handle
	cb CheckCb
}

func (*Check) isHandle() {}

func (l *Loop) InitCheck(h *Check) {
	h.init(CheckHandle, l)
	h.cb = nil
}

func (l *Loop) CheckStart(h *Check, cb CheckCb) Status {
	if !h.IsActive() {
		h.setActive()
		l.checks = append(l.checks, h)
	}
	h.cb = cb
	return OK
}

func (l *Loop) CheckStop(h *Check) Status {
	if !h.IsActive() {
		return OK
	}
	h.clearActive()
	h.cb = nil
	l.checks = removeCheck(l.checks, h)
	return OK
}

func (l *Loop) CheckClose(h *Check, closeCb func(*Check)) {
	l.CheckStop(h)
	h.setClosing()
	l.enqueueClose(h, func() {
		if closeCb != nil {
			closeCb(h)
		}
	})
}
