package uvshim

import "testing"

// fakeClock gives tests full control over Loop's notion of "now".
type fakeClock struct{ ms int64 }

func (c *fakeClock) now() int64    { return c.ms }
func (c *fakeClock) advance(d int64) { c.ms += d }

func newTestLoop() (*Loop, *fakeClock) {
	clock := &fakeClock{}
	l := NewLoop(newFakeReactor(), clock.now)
	return l, clock
}

// TestTimerFiresOnceAtDeadline is scenario S5.
func TestTimerFiresOnceAtDeadline(t *testing.T) {
	l, clock := newTestLoop()
	var fired int
	var timer Timer
	l.InitTimer(&timer)
	l.TimerStart(&timer, 100, 0, func(*Timer) { fired++ })

	l.Tick()
	if fired != 0 {
		t.Fatalf("timer fired before its deadline: %d", fired)
	}

	clock.advance(100)
	l.Tick()
	if fired != 1 {
		t.Fatalf("expected timer to fire exactly once, fired %d times", fired)
	}

	clock.advance(1000)
	l.Tick()
	if fired != 1 {
		t.Fatalf("one-shot timer fired again: %d", fired)
	}
	if timer.IsActive() {
		t.Fatalf("one-shot timer should be inactive after firing")
	}
}

func TestTimerRepeatReschedulesBeforeDispatch(t *testing.T) {
	l, clock := newTestLoop()
	var seenDeadlines []int64
	var timer Timer
	l.InitTimer(&timer)
	l.TimerStart(&timer, 50, 50, func(tm *Timer) {
		// the timer's own deadline must already reflect the next
		// period by the time the callback observes it.
		seenDeadlines = append(seenDeadlines, tm.deadline)
	})

	clock.advance(50)
	l.Tick()
	clock.advance(50)
	l.Tick()

	if len(seenDeadlines) != 2 {
		t.Fatalf("expected 2 firings, got %d", len(seenDeadlines))
	}
	if seenDeadlines[0] != 100 || seenDeadlines[1] != 150 {
		t.Fatalf("expected rescheduled deadlines [100 150], got %v", seenDeadlines)
	}
}

func TestTimerAgainRequiresRepeatConfigured(t *testing.T) {
	l, _ := newTestLoop()
	var timer Timer
	l.InitTimer(&timer)
	l.TimerStart(&timer, 10, 0, func(*Timer) {})

	if status := l.TimerAgain(&timer); status != EINVAL {
		t.Fatalf("expected EINVAL restarting a non-repeating timer, got %s", status)
	}
}

func TestTimerStartIdempotentReplacesSchedule(t *testing.T) {
	l, clock := newTestLoop()
	var calls int
	var timer Timer
	l.InitTimer(&timer)
	l.TimerStart(&timer, 100, 0, func(*Timer) { calls++ })
	l.TimerStart(&timer, 200, 0, func(*Timer) { calls++ })

	clock.advance(100)
	l.Tick()
	if calls != 0 {
		t.Fatalf("second TimerStart should have replaced the 100ms deadline")
	}
	clock.advance(100)
	l.Tick()
	if calls != 1 {
		t.Fatalf("expected exactly one firing at the replaced 200ms deadline, got %d", calls)
	}
}

func TestHasAliveHandlesRequiresActiveAndRef(t *testing.T) {
	l, _ := newTestLoop()
	var timer Timer
	l.InitTimer(&timer)

	if l.HasAliveHandles() {
		t.Fatalf("loop with no handles should report no alive handles")
	}

	l.TimerStart(&timer, 1000, 0, func(*Timer) {})
	if !l.HasAliveHandles() {
		t.Fatalf("active+ref'd timer should keep the loop alive")
	}

	timer.Unref()
	if l.HasAliveHandles() {
		t.Fatalf("unref'd timer must not keep the loop alive")
	}
}
