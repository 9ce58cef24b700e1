package pgstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/storage/database"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

var _ core.Logger = nopLogger{}

func TestLikeEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "classes/C1", want: "classes/C1"},
		{in: "classes/C_1", want: `classes/C\_1`},
		{in: "100%", want: `100\%`},
		{in: `a\b`, want: `a\\b`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := likeEscape(tt.in); got != tt.want {
				t.Errorf("likeEscape() = %v, want %v", got, tt.want)
			}
		})
	}
}

// openStore connects to TEST_DATABASE_URL; the test is skipped when it is unset.
func openStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	db, err := sqlx.Open("postgres", dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db.DB))
	_, err = db.Exec("DELETE FROM store_node")
	require.NoError(t, err)

	s, err := Open(db, dsn, nopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = db.Close()
	})
	return s
}

func TestStore_UpdateGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.Update(ctx, "classes", map[string]interface{}{
		"C_1": map[string]interface{}{
			"assignments": map[string]interface{}{
				"A1": map[string]interface{}{
					"dueDate":        "2024-03-09",
					"studentAnswers": map[string]interface{}{"S1": map[string]interface{}{"status": "pending"}},
				},
			},
		},
		"C11/name": "not under C_1",
	}))

	require.NoError(t, s.Update(ctx, "classes", map[string]interface{}{
		"C_1/assignments/A1/studentAnswers/S1/status": "overdue",
	}))

	v, err := s.Get(ctx, "classes/C_1")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"assignments": map[string]interface{}{
			"A1": map[string]interface{}{
				"dueDate":        "2024-03-09",
				"studentAnswers": map[string]interface{}{"S1": map[string]interface{}{"status": "overdue"}},
			},
		},
	}, v)

	require.NoError(t, s.Update(ctx, "classes", map[string]interface{}{"C11": nil}))
	v, err = s.Get(ctx, "classes/C11")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStore_Subscribe(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	payloads := make(chan map[string]interface{}, 10)
	sub, err := s.Subscribe(ctx, "classes", func(p map[string]interface{}) { payloads <- p })
	require.NoError(t, err)
	defer sub.Cancel()

	select {
	case <-payloads:
	case <-time.After(5 * time.Second):
		t.Fatal("no initial notification")
	}

	require.NoError(t, s.Update(ctx, "classes", map[string]interface{}{"C1/name": "Maths"}))
	select {
	case p := <-payloads:
		assert.Equal(t, map[string]interface{}{"C1": map[string]interface{}{"name": "Maths"}}, p)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}
