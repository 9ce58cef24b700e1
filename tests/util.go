package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/services/logger"
)

// NewConfig returns a valid TEST config using the in-memory store.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:  "Masomo",
		Env:      "TEST",
		Build:    "test",
		TestMode: true,
		Server:   core.ServerConfig{Host: ":0", ShutdownTimeout: time.Second},
		Store:    core.StoreConfig{Backend: core.BackendMemory, Root: "classes"},
		Database: core.DatabaseConfig{Engine: "postgres", Host: "localhost", Port: "5432", Name: "masomo_test"},
		Checker:  core.CheckerConfig{Location: time.UTC},
		Email: core.EmailConfig{
			DefaultFrom: mail.Address{Name: "Masomo", Address: "noreply@masomo.test"},
		},
	}
}

// NewLogger returns a silent logger.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
}

// Answer builds a student answer node.
func Answer(status string) map[string]interface{} {
	return map[string]interface{}{"status": status}
}

// Assignment builds an assignment node; dueDate is omitted when nil.
func Assignment(dueDate interface{}, answers map[string]interface{}) map[string]interface{} {
	asgmt := map[string]interface{}{"studentAnswers": answers}
	if dueDate != nil {
		asgmt["dueDate"] = dueDate
	}
	return asgmt
}

// Seed writes classes (keyed by class ID) under root.
func Seed(t *testing.T, store reconcile.Updater, root string, classes map[string]interface{}) {
	t.Helper()
	values := make(map[string]interface{}, len(classes))
	for id, class := range classes {
		values[id] = class
	}
	if err := store.Update(context.Background(), root, values); err != nil {
		t.Fatalf("Seed() failed: %v", err)
	}
}
