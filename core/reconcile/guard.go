package reconcile

import "sync/atomic"

type GuardState int32

const (
	Idle GuardState = iota
	Busy
)

func (s GuardState) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

// Guard lets at most one reconciliation pass run at a time.
// Triggers that fail to acquire it are dropped, never queued.
// The zero value is an Idle guard.
type Guard struct {
	state atomic.Int32
}

// TryAcquire atomically moves the guard from Idle to Busy.
// It returns false, leaving the state untouched, when the guard is already Busy.
func (g *Guard) TryAcquire() bool {
	return g.state.CompareAndSwap(int32(Idle), int32(Busy))
}

// Release moves the guard back to Idle, whatever its state.
func (g *Guard) Release() {
	g.state.Store(int32(Idle))
}

func (g *Guard) State() GuardState {
	return GuardState(g.state.Load())
}
