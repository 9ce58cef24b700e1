package coursework

import (
	"reflect"
	"testing"
	"time"
)

var (
	now       = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)
	yesterday = now.AddDate(0, 0, -1).Format("2006-01-02")
	tomorrow  = now.AddDate(0, 0, 1).Format("2006-01-02")
)

func classesTree(dueDate interface{}, answers map[string]string) map[string]interface{} {
	studentAnswers := make(map[string]interface{}, len(answers))
	for studentID, status := range answers {
		studentAnswers[studentID] = map[string]interface{}{"status": status, "content": "my answer"}
	}
	asgmt := map[string]interface{}{"title": "Algebra I", "studentAnswers": studentAnswers}
	if dueDate != nil {
		asgmt["dueDate"] = dueDate
	}
	return map[string]interface{}{
		"C1": map[string]interface{}{
			"name":        "Maths",
			"assignments": map[string]interface{}{"A1": asgmt},
		},
	}
}

func TestBuildChangeSet(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]interface{}
		want ChangeSet
	}{
		{
			name: "past due: only pending answers",
			raw:  classesTree(yesterday, map[string]string{"S1": "pending", "S2": "submitted"}),
			want: ChangeSet{"C1/assignments/A1/studentAnswers/S1/status": StatusOverdue},
		},
		{
			name: "not yet due",
			raw:  classesTree(tomorrow, map[string]string{"S1": "pending", "S2": "submitted"}),
			want: ChangeSet{},
		},
		{
			name: "already overdue & graded",
			raw:  classesTree(yesterday, map[string]string{"S1": "overdue", "S2": "graded"}),
			want: ChangeSet{},
		},
		{
			name: "missing due date",
			raw:  classesTree(nil, map[string]string{"S1": "pending"}),
			want: ChangeSet{},
		},
		{
			name: "unparseable due date",
			raw:  classesTree("someday", map[string]string{"S1": "pending"}),
			want: ChangeSet{},
		},
		{
			name: "epoch due date out of range",
			raw:  classesTree(float64(1e19), map[string]string{"S1": "pending"}),
			want: ChangeSet{},
		},
		{
			name: "epoch due date far in the past",
			raw:  classesTree(float64(-8.64e15), map[string]string{"S1": "pending"}),
			want: ChangeSet{"C1/assignments/A1/studentAnswers/S1/status": StatusOverdue},
		},
		{
			name: "several pending",
			raw:  classesTree(yesterday, map[string]string{"S1": "pending", "S2": "pending", "S3": "overdue"}),
			want: ChangeSet{
				"C1/assignments/A1/studentAnswers/S1/status": StatusOverdue,
				"C1/assignments/A1/studentAnswers/S2/status": StatusOverdue,
			},
		},
		{
			name: "empty store",
			raw:  map[string]interface{}{},
			want: ChangeSet{},
		},
		{
			name: "malformed nodes are skipped",
			raw: map[string]interface{}{
				"C0": "not a class",
				"C1": map[string]interface{}{
					"assignments": map[string]interface{}{
						"A0": 42,
						"A1": map[string]interface{}{
							"dueDate": yesterday,
							"studentAnswers": map[string]interface{}{
								"S0": "pending",
								"S1": map[string]interface{}{"status": "pending"},
								"S2": map[string]interface{}{},
							},
						},
					},
				},
			},
			want: ChangeSet{"C1/assignments/A1/studentAnswers/S1/status": StatusOverdue},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := ParseSnapshot(tt.raw, time.UTC, now)
			got := BuildChangeSet(snap, now)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BuildChangeSet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildChangeSet_idempotent(t *testing.T) {
	raw := classesTree(yesterday, map[string]string{"S1": "pending", "S2": "pending", "S3": "submitted"})

	first := BuildChangeSet(ParseSnapshot(raw, time.UTC, now), now)
	second := BuildChangeSet(ParseSnapshot(raw, time.UTC, now), now)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("BuildChangeSet() not deterministic: %v != %v", first, second)
	}

	// apply the change set, then re-run: nothing left to do
	answers := raw["C1"].(map[string]interface{})["assignments"].(map[string]interface{})["A1"].(map[string]interface{})["studentAnswers"].(map[string]interface{})
	for _, e := range first.Entries() {
		answers[e.StudentID].(map[string]interface{})["status"] = string(e.Status)
	}
	if got := BuildChangeSet(ParseSnapshot(raw, time.UTC, now), now); !got.IsEmpty() {
		t.Errorf("BuildChangeSet() after apply = %v, want empty", got)
	}
}

func TestParseSnapshot(t *testing.T) {
	raw := map[string]interface{}{
		"C0": "garbage",
		"C1": map[string]interface{}{
			"assignments": map[string]interface{}{
				"A1": map[string]interface{}{"dueDate": "bad date", "studentAnswers": map[string]interface{}{"S1": map[string]interface{}{"status": "pending"}}},
				"A2": map[string]interface{}{"studentAnswers": map[string]interface{}{"S1": true}},
			},
		},
		"C2": map[string]interface{}{},
	}
	snap := ParseSnapshot(raw, time.UTC, now)

	if got := len(snap.Classes); got != 2 {
		t.Errorf("len(Classes) = %d, want 2", got)
	}
	if got := snap.Malformed; got != 3 {
		t.Errorf("Malformed = %d, want 3", got)
	}
	if got := snap.NumAnswers(); got != 1 {
		t.Errorf("NumAnswers() = %d, want 1", got)
	}
	if snap.Classes["C1"].Assignments["A1"].DueAt.Valid {
		t.Error("DueAt.Valid = true for an unparseable due date")
	}
	if !snap.ReadAt.Equal(now) {
		t.Errorf("ReadAt = %v, want %v", snap.ReadAt, now)
	}
}

func TestChangeSet_Entries(t *testing.T) {
	cs := ChangeSet{
		AnswerStatusPath("C2", "A1", "S1"): StatusOverdue,
		AnswerStatusPath("C1", "A9", "S2"): StatusOverdue,
		"C1/garbage":                       StatusOverdue,
	}
	want := []Entry{
		{ClassID: "C1", AssignmentID: "A9", StudentID: "S2", Status: StatusOverdue},
		{ClassID: "C2", AssignmentID: "A1", StudentID: "S1", Status: StatusOverdue},
	}
	if got := cs.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	wantUpdates := map[string]interface{}{
		"C2/assignments/A1/studentAnswers/S1/status": "overdue",
		"C1/assignments/A9/studentAnswers/S2/status": "overdue",
		"C1/garbage": "overdue",
	}
	if got := cs.Updates(); !reflect.DeepEqual(got, wantUpdates) {
		t.Errorf("Updates() = %v, want %v", got, wantUpdates)
	}
}
