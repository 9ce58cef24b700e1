package reportsvc

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/coursework"
	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/services/email"
	"github.com/trezcool/masomo-checker/tests"
)

func TestReporter_PassFinished(t *testing.T) {
	conf := &core.Config{
		AppName: "Masomo",
		Checker: core.CheckerConfig{Location: time.UTC},
		Email: core.EmailConfig{
			DefaultFrom: mail.Address{Name: "Masomo", Address: "noreply@masomo.test"},
			ReportTo:    []mail.Address{{Name: "Admin", Address: "admin@masomo.test"}},
		},
	}
	rep := NewReporter(conf, emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger()), testutil.NewLogger())

	changes := coursework.ChangeSet{
		coursework.AnswerStatusPath("C1", "A1", "S1"): coursework.StatusOverdue,
		coursework.AnswerStatusPath("C1", "A1", "S2"): coursework.StatusOverdue,
	}
	startedAt := time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		res      reconcile.Result
		wantSent bool
	}{
		{name: "committed", res: reconcile.Result{ID: "p1", StartedAt: startedAt, Changes: changes, Committed: true}, wantSent: true},
		{name: "dry run", res: reconcile.Result{ID: "p2", StartedAt: startedAt, Changes: changes, DryRun: true}},
		{name: "nothing to do", res: reconcile.Result{ID: "p3", StartedAt: startedAt}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			rep.PassFinished(tt.res)

			sent := emailsvc.GetSentMessages()
			if !tt.wantSent {
				assert.Empty(t, sent)
				return
			}
			require.Len(t, sent, 1)
			msg := sent[0]
			assert.Equal(t, "2 answer(s) marked overdue", msg.Subject)
			assert.Equal(t, conf.Email.ReportTo, msg.To)
			assert.True(t, strings.HasPrefix(msg.TextContent, "Hello,"), msg.TextContent)
			assert.Contains(t, msg.TextContent, "2 pending answer(s) were marked overdue on 2024-03-10 08:30 UTC (pass p1)")
			assert.Contains(t, msg.TextContent, "- class C1 / assignment A1 / student S2")
			assert.Contains(t, msg.HTMLContent, "<td>S1</td>")

			require.Len(t, msg.Attachments, 1)
			at := msg.Attachments[0]
			assert.Equal(t, "overdue-p1.csv", at.Filename)
			assert.Equal(t, "text/csv", at.ContentType)
			content, err := base64.StdEncoding.DecodeString(at.Content.String())
			require.NoError(t, err)
			assert.Equal(t, "class_id,assignment_id,student_id,status\nC1,A1,S1,overdue\nC1,A1,S2,overdue\n", string(content))
		})
	}
}

func TestReporter_noRecipients(t *testing.T) {
	conf := &core.Config{AppName: "Masomo"}
	rep := NewReporter(conf, emailsvc.NewConsoleServiceMock(conf, testutil.NewLogger()), testutil.NewLogger())

	emailsvc.ResetSentMessages()
	rep.PassFinished(reconcile.Result{
		Committed: true,
		Changes:   coursework.ChangeSet{coursework.AnswerStatusPath("C1", "A1", "S1"): coursework.StatusOverdue},
	})
	assert.Empty(t, emailsvc.GetSentMessages())
}
