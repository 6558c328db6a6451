package uvshim

// TimerCb is invoked when a timer fires.
type TimerCb func(*Timer)

// Timer is a libuv-compatible uv_timer_t: a one-shot or repeating
// deadline, keyed into the loop's ordered timer set by
// (deadline, allocation id) so ties are broken in allocation order.
type Timer struct {
	Handle
	id       uint64
	deadline int64
	cb       TimerCb
	timeout  int64
	repeat   int64
}

func (*Timer) isHandle() {}

// InitTimer zero-initializes a Timer against loop: REF set, ACTIVE
// and CLOSING clear, not yet in the timer set.
func (l *Loop) InitTimer(t *Timer) {
	t.init(TimerHandle, l)
	t.id = 0
	t.deadline = 0
	t.cb = nil
	t.timeout = 0
	t.repeat = 0
}

// TimerStart arms t to fire after timeoutMs, then every repeatMs
// thereafter (repeatMs == 0 means one-shot). TimerStart is idempotent for
// an already-active timer: the callback and schedule are replaced in
// place rather than allocating a second entry.
func (l *Loop) TimerStart(t *Timer, timeoutMs, repeatMs int64, cb TimerCb) Status {
	if t.IsActive() {
		l.timerKeys = removeTimerKey(l.timerKeys, timerKey{deadline: t.deadline, id: t.id})
	} else {
		l.nextTimer++
		t.id = l.nextTimer
	}
	t.timeout = timeoutMs
	t.repeat = repeatMs
	t.cb = cb
	t.deadline = l.Now() + timeoutMs
	t.setActive()
	l.timers[t.id] = t
	l.timerKeys = insertTimerKey(l.timerKeys, timerKey{deadline: t.deadline, id: t.id})
	return OK
}

// TimerStop disarms t; it will not fire again until TimerStart is
// called again.
func (l *Loop) TimerStop(t *Timer) Status {
	if !t.IsActive() {
		return OK
	}
	l.timerKeys = removeTimerKey(l.timerKeys, timerKey{deadline: t.deadline, id: t.id})
	delete(l.timers, t.id)
	t.clearActive()
	t.cb = nil
	return OK
}

// TimerAgain stops and restarts t with timeout = its configured
// repeat interval. It is an error to call this on a timer with
// repeat == 0 (it was never started as repeating).
func (l *Loop) TimerAgain(t *Timer) Status {
	if t.repeat == 0 {
		return EINVAL
	}
	cb := t.cb
	l.TimerStop(t)
	return l.TimerStart(t, t.repeat, t.repeat, cb)
}

// TimerClose releases t: stops it if active, purges it from the
// timer set, and enqueues the close callback for the next run_close.
func (l *Loop) TimerClose(t *Timer, closeCb func(*Timer)) {
	l.TimerStop(t)
	t.setClosing()
	l.enqueueClose(t, func() {
		if closeCb != nil {
			closeCb(t)
		}
	})
}

// runTimers fires every timer whose deadline has passed, in deadline
// order (ties broken by allocation id). A repeating timer is
// rescheduled to now+repeat, computed after its bookkeeping is
// updated but its callback is invoked only once that rescheduling
// has already happened — matching libuv's "reschedule before
// dispatch" contract so a callback that calls TimerAgain or inspects
// the timer sees its own next deadline already in place.
func (l *Loop) runTimers() {
	now := l.Now()
	var expired []timerKey
	for _, k := range l.timerKeys {
		if k.deadline > now {
			break
		}
		expired = append(expired, k)
	}

	var toFire []*Timer
	for _, k := range expired {
		l.timerKeys = removeTimerKey(l.timerKeys, k)
		t, ok := l.timers[k.id]
		if !ok || !t.IsActive() {
			continue
		}
		delete(l.timers, k.id)

		if t.repeat > 0 {
			t.deadline = now + t.repeat
			l.timers[t.id] = t
			l.timerKeys = insertTimerKey(l.timerKeys, timerKey{deadline: t.deadline, id: t.id})
		} else {
			t.clearActive()
		}
		toFire = append(toFire, t)
	}

	for _, t := range toFire {
		if t.cb != nil {
			t.cb(t)
		}
	}
}
