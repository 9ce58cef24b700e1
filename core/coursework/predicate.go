package coursework

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Evaluate decides the status transition of a single student answer.
// It returns (StatusOverdue, true) iff the answer is pending and the due instant is strictly before now.
// Answers of assignments without a (valid) due date are never transitioned.
func Evaluate(dueAt null.Time, now time.Time, status Status) (Status, bool) {
	if !dueAt.Valid || status != StatusPending {
		return "", false
	}
	if dueAt.Time.Before(now) {
		return StatusOverdue, true
	}
	return "", false
}
