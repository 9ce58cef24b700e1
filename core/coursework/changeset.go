package coursework

import (
	"sort"
	"strings"
	"time"
)

// ChangeSet maps store paths, relative to the classes root, to new answer statuses.
type ChangeSet map[string]Status

// Entry is one ChangeSet item with its path broken down.
type Entry struct {
	ClassID      string `json:"class_id"`
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
	Status       Status `json:"status"`
}

// AnswerStatusPath returns the path of a student answer's status relative to the classes root,
// eg. "C1/assignments/A1/studentAnswers/S1/status".
func AnswerStatusPath(classID, assignmentID, studentID string) string {
	return strings.Join([]string{classID, KeyAssignments, assignmentID, KeyStudentAnswers, studentID, KeyStatus}, "/")
}

// parseAnswerStatusPath is the reverse of AnswerStatusPath.
func parseAnswerStatusPath(p string) (classID, assignmentID, studentID string, ok bool) {
	parts := strings.Split(p, "/")
	if len(parts) != 6 || parts[1] != KeyAssignments || parts[3] != KeyStudentAnswers || parts[5] != KeyStatus {
		return "", "", "", false
	}
	return parts[0], parts[2], parts[4], true
}

// BuildChangeSet evaluates every student answer of every dated assignment in the snapshot.
// Each record is evaluated independently so the walking order has no effect on the result.
func BuildChangeSet(snap Snapshot, now time.Time) ChangeSet {
	cs := make(ChangeSet)
	for classID, cls := range snap.Classes {
		for asgmtID, asgmt := range cls.Assignments {
			if !asgmt.DueAt.Valid {
				continue
			}
			for studentID, answer := range asgmt.StudentAnswers {
				if newStatus, ok := Evaluate(asgmt.DueAt, now, answer.Status); ok {
					cs[AnswerStatusPath(classID, asgmtID, studentID)] = newStatus
				}
			}
		}
	}
	return cs
}

func (cs ChangeSet) Len() int      { return len(cs) }
func (cs ChangeSet) IsEmpty() bool { return len(cs) == 0 }

// Updates returns the change set as a multi-path update payload.
func (cs ChangeSet) Updates() map[string]interface{} {
	updates := make(map[string]interface{}, len(cs))
	for p, status := range cs {
		updates[p] = string(status)
	}
	return updates
}

// Paths returns the change set paths, sorted.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs))
	for p := range cs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Entries returns the change set items sorted by path.
func (cs ChangeSet) Entries() []Entry {
	entries := make([]Entry, 0, len(cs))
	for _, p := range cs.Paths() {
		classID, asgmtID, studentID, ok := parseAnswerStatusPath(p)
		if !ok {
			continue
		}
		entries = append(entries, Entry{ClassID: classID, AssignmentID: asgmtID, StudentID: studentID, Status: cs[p]})
	}
	return entries
}
