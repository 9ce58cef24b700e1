package logsvc

import (
	"bytes"
	"errors"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/masomo-checker/core"
)

func TestRollbarLogger_prepare(t *testing.T) {
	l := RollbarLogger{}
	err := errors.New("boom")
	extras := map[string]interface{}{"passId": "p1"}

	got := l.prepare("pass failed", []interface{}{err, "ignored", 42, extras})
	assert.Equal(t, []interface{}{"pass failed", err, extras}, got)
}

func TestRollbarLogger_print(t *testing.T) {
	var buf bytes.Buffer
	l := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", TestMode: true})

	l.Info("store reachable")
	l.Debug("hidden unless debug")
	assert.Equal(t, "INFO store reachable\n", buf.String())

	buf.Reset()
	l.debug = true
	l.Error("pass failed", errors.New("boom"))
	assert.True(t, strings.HasPrefix(buf.String(), "ERROR pass failed\nboom"), buf.String())
}
