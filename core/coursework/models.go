package coursework

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Answer statuses. Only StatusPending & StatusOverdue matter to the overdue checker,
// any other value read from the store is kept as is.
const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusOverdue   Status = "overdue"
	StatusGraded    Status = "graded"
)

// Store layout keys under the classes root.
const (
	KeyAssignments    = "assignments"
	KeyStudentAnswers = "studentAnswers"
	KeyDueDate        = "dueDate"
	KeyStatus         = "status"
)

type Status string

func (s Status) String() string { return string(s) }

type (
	// Snapshot is a point-in-time read of the whole classes subtree.
	Snapshot struct {
		Classes map[string]Class
		ReadAt  time.Time

		// Malformed counts records that could not be read (non-object nodes, unparseable due dates..).
		Malformed int
	}

	Class struct {
		ID          string
		Assignments map[string]Assignment
	}

	Assignment struct {
		ID             string
		DueAt          null.Time // invalid when missing or unparseable
		StudentAnswers map[string]StudentAnswer
	}

	StudentAnswer struct {
		StudentID string
		Status    Status
	}
)

// NumAnswers returns the total number of student answers in the snapshot.
func (snap Snapshot) NumAnswers() int {
	var n int
	for _, cls := range snap.Classes {
		for _, asgmt := range cls.Assignments {
			n += len(asgmt.StudentAnswers)
		}
	}
	return n
}
