// Package reportsvc emails a summary of every pass that marked answers overdue.
package reportsvc

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/coursework"
	"github.com/trezcool/masomo-checker/core/reconcile"
)

const templateName = "overdue_report"

type (
	Reporter struct {
		mailer core.EmailService
		logger core.Logger
		to     []mail.Address
		loc    *time.Location
	}

	// Data feeds the overdue_report email templates.
	Data struct {
		PassID  string
		At      string
		Count   int
		Entries []coursework.Entry
	}
)

var _ reconcile.Observer = (*Reporter)(nil) // interface compliance check

func NewReporter(conf *core.Config, mailer core.EmailService, logger core.Logger) *Reporter {
	loc := conf.Checker.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Reporter{mailer: mailer, logger: logger, to: conf.Email.ReportTo, loc: loc}
}

// PassFinished sends a report when the pass committed at least one change.
func (r *Reporter) PassFinished(res reconcile.Result) {
	if len(r.to) == 0 || !res.Committed || res.Changes.IsEmpty() {
		return
	}
	msg := &core.EmailMessage{
		To:           r.to,
		Subject:      fmt.Sprintf("%d answer(s) marked overdue", res.Changes.Len()),
		TemplateName: templateName,
		TemplateData: Data{
			PassID:  res.ID,
			At:      res.StartedAt.In(r.loc).Format("2006-01-02 15:04 MST"),
			Count:   res.Changes.Len(),
			Entries: res.Changes.Entries(),
		},
	}
	if err := msg.Attach(changesCSV(res.Changes), "overdue-"+res.ID+".csv", "text/csv"); err != nil {
		r.logger.Error(fmt.Sprintf("attaching changes of pass %s", res.ID), err)
	}
	r.mailer.SendMessages(msg)
}

// changesCSV lists the changed answers, one row per student.
func changesCSV(changes coursework.ChangeSet) *bytes.Buffer {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"class_id", "assignment_id", "student_id", "status"})
	for _, e := range changes.Entries() {
		_ = w.Write([]string{e.ClassID, e.AssignmentID, e.StudentID, string(e.Status)})
	}
	w.Flush()
	return &buf
}

func (r *Reporter) TriggerDropped(reconcile.Trigger) {}
