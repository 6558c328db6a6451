package uvshim

import "sort"

// Loop is a single-threaded, cooperative event loop. It is driven by
// an outer scheduler via repeated calls to Tick (the analogue of
// libuv's uv_run single-iteration mode): handles are not safe to use
// from more than one goroutine, and nothing inside Loop blocks — all
// blocking I/O is delegated to the Reactor.
type Loop struct {
	now func() int64 // monotonic ms; overridable by tests

	timerKeys []timerKey // kept sorted by (deadline, id)
	timers    map[uint64]*Timer
	nextTimer uint64

	idles    []*Idle
	prepares []*Prepare
	checks   []*Check
	tcps     []*TCP

	closeQueue []closeEntry

	reactor Reactor

	// IOPassCap bounds how many times run_io repeats within one Tick
	// while any handle produced work. Exposed as a tuning knob per
	// the design note it's grounded on: too few passes add latency to
	// chatty protocols, too many starve the rest of the scheduler.
	IOPassCap int
}

type timerKey struct {
	deadline int64
	id       uint64
}

type closeEntry struct {
	handle  ioCloser
	closeCb func()
}

// ioCloser is satisfied by every concrete handle type so the close
// FIFO can hold any of them uniformly.
type ioCloser interface {
	isHandle()
}

// NewLoop returns a Loop backed by reactor, with the monotonic clock
// supplied by nowMs (pass a fixed/incrementing function in tests; a
// production caller passes a wrapper around time.Now()).
func NewLoop(reactor Reactor, nowMs func() int64) *Loop {
	return &Loop{
		now:       nowMs,
		timers:    map[uint64]*Timer{},
		reactor:   reactor,
		IOPassCap: 16,
	}
}

// Now returns the loop's current monotonic time in milliseconds,
// matching uv_now.
func (l *Loop) Now() int64 { return l.now() }

// HasAliveHandles reports whether an outer driver should keep calling
// Tick: true when some handle is both ACTIVE and REF'd, or a close
// callback is still pending dispatch.
func (l *Loop) HasAliveHandles() bool {
	if len(l.closeQueue) > 0 {
		return true
	}
	for _, id := range l.timerKeys {
		if t, ok := l.timers[id.id]; ok && t.IsActive() && t.isRef() {
			return true
		}
	}
	for _, h := range l.idles {
		if h.IsActive() && h.isRef() {
			return true
		}
	}
	for _, h := range l.prepares {
		if h.IsActive() && h.isRef() {
			return true
		}
	}
	for _, h := range l.checks {
		if h.IsActive() && h.isRef() {
			return true
		}
	}
	for _, h := range l.tcps {
		if h.IsActive() && h.isRef() {
			return true
		}
	}
	return false
}

// Tick runs exactly one iteration of the six-phase loop body:
// timers, idle, prepare, I/O (repeated up to IOPassCap times while
// productive), check, then draining the close FIFO.
func (l *Loop) Tick() {
	l.runTimers()
	l.runIdle()
	l.runPrepare()
	l.runIO()
	l.runCheck()
	l.runClose()
}

func (l *Loop) runIdle() {
	for _, h := range snapshot(l.idles) {
		if h.IsActive() && h.cb != nil {
			h.cb(h)
		}
	}
}

func (l *Loop) runPrepare() {
	for _, h := range snapshot(l.prepares) {
		if h.IsActive() && h.cb != nil {
			h.cb(h)
		}
	}
}

func (l *Loop) runCheck() {
	for _, h := range snapshot(l.checks) {
		if h.IsActive() && h.cb != nil {
			h.cb(h)
		}
	}
}

func (l *Loop) runClose() {
	pending := l.closeQueue
	l.closeQueue = nil
	for _, e := range pending {
		if e.closeCb != nil {
			e.closeCb()
		}
	}
}

func snapshot[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func (l *Loop) enqueueClose(h ioCloser, cb func()) {
	l.closeQueue = append(l.closeQueue, closeEntry{handle: h, closeCb: cb})
}

func removeIdle(s []*Idle, h *Idle) []*Idle {
	out := s[:0]
	for _, e := range s {
		if e != h {
			out = append(out, e)
		}
	}
	return out
}

func removePrepare(s []*Prepare, h *Prepare) []*Prepare {
	out := s[:0]
	for _, e := range s {
		if e != h {
			out = append(out, e)
		}
	}
	return out
}

func removeCheck(s []*Check, h *Check) []*Check {
	out := s[:0]
	for _, e := range s {
		if e != h {
			out = append(out, e)
		}
	}
	return out
}

func removeTCP(s []*TCP, h *TCP) []*TCP {
	out := s[:0]
	for _, e := range s {
		if e != h {
			out = append(out, e)
		}
	}
	return out
}

func insertTimerKey(keys []timerKey, k timerKey) []timerKey {
	i := sort.Search(len(keys), func(i int) bool {
		if keys[i].deadline != k.deadline {
			return keys[i].deadline > k.deadline
		}
		return keys[i].id >= k.id
	})
	keys = append(keys, timerKey{})
	copy(keys[i+1:], keys[i:])
	keys[i] = k
	return keys
}

func removeTimerKey(keys []timerKey, k timerKey) []timerKey {
	for i, e := range keys {
		if e == k {
			return append(keys[:i], keys[i+1:]...)
		}
	}
	return keys
}
