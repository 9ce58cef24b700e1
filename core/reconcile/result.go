package reconcile

import (
	"time"

	"github.com/trezcool/masomo-checker/core/coursework"
)

// Trigger tells what started a pass.
type Trigger string

const (
	TriggerNotification Trigger = "notification"
	TriggerManual       Trigger = "manual"
)

type (
	// Result summarizes one reconciliation pass.
	Result struct {
		ID        string
		Trigger   Trigger
		DryRun    bool
		StartedAt time.Time
		Duration  time.Duration
		Classes   int
		Answers   int
		Malformed int
		Changes   coursework.ChangeSet
		Committed bool // the change set was written to the store
		Err       error
	}

	// Observer is notified of every finished pass & every dropped trigger.
	// Calls are made before the guard is released: observers must not block.
	Observer interface {
		PassFinished(res Result)
		TriggerDropped(trigger Trigger)
	}

	Status struct {
		State      GuardState
		Subscribed bool
		Stopped    bool
		Passes     int
		Commits    int
		Failures   int
		Dropped    int
		LastPass   *Result
	}
)

func (r Result) Succeeded() bool { return r.Err == nil }
