package uvshim

import "testing"

func TestIdlePrepareCheckOrderingWithinTick(t *testing.T) {
	l, _ := newTestLoop()
	var order []string

	var idle Idle
	l.InitIdle(&idle)
	l.IdleStart(&idle, func(*Idle) { order = append(order, "idle") })

	var prepare Prepare
	l.InitPrepare(&prepare)
	l.PrepareStart(&prepare, func(*Prepare) { order = append(order, "prepare") })

	var check Check
	l.InitCheck(&check)
	l.CheckStart(&check, func(*Check) { order = append(order, "check") })

	l.Tick()

	want := []string{"idle", "prepare", "check"}
	if len(order) != len(want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestIdleStopRemovesFromLoop(t *testing.T) {
	l, _ := newTestLoop()
	var idle Idle
	var calls int
	l.InitIdle(&idle)
	l.IdleStart(&idle, func(*Idle) { calls++ })
	l.IdleStop(&idle)
	l.Tick()
	if calls != 0 {
		t.Fatalf("stopped idle handle should not fire")
	}
	if idle.IsActive() {
		t.Fatalf("stopped idle handle should not be active")
	}
}

func TestCallbackCanStopItsOwnHandleMidTick(t *testing.T) {
	l, _ := newTestLoop()
	var prepare Prepare
	var calls int
	l.InitPrepare(&prepare)
	l.PrepareStart(&prepare, func(p *Prepare) {
		calls++
		l.PrepareStop(p)
	})

	l.Tick()
	l.Tick()

	if calls != 1 {
		t.Fatalf("expected prepare callback to stop itself after one firing, got %d calls", calls)
	}
}

func TestHandleCloseEnqueuesCallbackForNextRunClose(t *testing.T) {
	l, _ := newTestLoop()
	var idle Idle
	var closed bool
	l.InitIdle(&idle)
	l.IdleStart(&idle, func(*Idle) {})
	l.IdleClose(&idle, func(*Idle) { closed = true })

	if closed {
		t.Fatalf("close callback must not fire synchronously from Close")
	}
	l.Tick()
	if !closed {
		t.Fatalf("expected close callback to fire during the next Tick's run_close phase")
	}
	if !idle.IsClosing() {
		t.Fatalf("handle should report CLOSING after Close")
	}
}
