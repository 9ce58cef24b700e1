package reconcile

import (
	"context"

	"github.com/trezcool/masomo-checker/core/coursework"
)

// Writer commits change sets to the store.
type Writer struct {
	store Updater
	root  string
}

func NewWriter(store Updater, root string) *Writer {
	return &Writer{store: store, root: root}
}

// Commit submits the whole change set as one atomic multi-path update under the writer's root.
// Empty change sets are skipped without calling the store; the returned bool tells whether a write was issued.
func (w *Writer) Commit(ctx context.Context, cs coursework.ChangeSet) (bool, error) {
	if cs.IsEmpty() {
		return false, nil
	}
	if err := w.store.Update(ctx, w.root, cs.Updates()); err != nil {
		return false, &PassError{Kind: ErrWriteFailed, Op: "update", Path: w.root, Err: err}
	}
	return true, nil
}
