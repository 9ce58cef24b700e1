package coursework

import "time"

// ParseSnapshot converts a raw classes subtree into typed entities.
// Fields are validated once here: nodes that are not objects are counted as malformed & skipped,
// unparseable due dates are kept as invalid (assignment is then ignored by the predicate),
// a missing status is kept empty.
func ParseSnapshot(raw map[string]interface{}, loc *time.Location, readAt time.Time) Snapshot {
	snap := Snapshot{
		Classes: make(map[string]Class, len(raw)),
		ReadAt:  readAt,
	}

	for classID, classNode := range raw {
		classMap, ok := classNode.(map[string]interface{})
		if !ok {
			snap.Malformed++
			continue
		}
		cls := Class{ID: classID, Assignments: make(map[string]Assignment)}

		asgmts, _ := classMap[KeyAssignments].(map[string]interface{})
		for asgmtID, asgmtNode := range asgmts {
			asgmtMap, ok := asgmtNode.(map[string]interface{})
			if !ok {
				snap.Malformed++
				continue
			}
			asgmt := Assignment{
				ID:             asgmtID,
				StudentAnswers: make(map[string]StudentAnswer),
			}
			if rawDue, ok := asgmtMap[KeyDueDate]; ok && rawDue != nil {
				asgmt.DueAt = ParseDueDate(rawDue, loc)
				if !asgmt.DueAt.Valid {
					snap.Malformed++
				}
			}

			answers, _ := asgmtMap[KeyStudentAnswers].(map[string]interface{})
			for studentID, answerNode := range answers {
				answerMap, ok := answerNode.(map[string]interface{})
				if !ok {
					snap.Malformed++
					continue
				}
				status, _ := answerMap[KeyStatus].(string)
				asgmt.StudentAnswers[studentID] = StudentAnswer{StudentID: studentID, Status: Status(status)}
			}
			cls.Assignments[asgmtID] = asgmt
		}
		snap.Classes[classID] = cls
	}
	return snap
}
