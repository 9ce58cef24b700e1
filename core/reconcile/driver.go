package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/coursework"
)

var NowFunc = time.Now // mockable

type (
	Options struct {
		Root      string         // classes root path, default "classes"
		Location  *time.Location // location of due dates without offset, default UTC
		Logger    core.Logger
		Guard     *Guard // shared guard; a private one is used when nil
		Observers []Observer
	}

	// TriggerOptions tunes a manually triggered pass.
	TriggerOptions struct {
		DryRun bool // build the change set without committing it
	}

	// Driver owns the subscribe/trigger lifecycle of the overdue reconciliation:
	// every change notification runs one pass through the guard.
	Driver struct {
		store     Store
		root      string
		loc       *time.Location
		logger    core.Logger
		guard     *Guard
		writer    *Writer
		observers []Observer

		mu      sync.Mutex
		baseCtx context.Context
		sub     Subscription
		running bool
		stopped bool
		status  Status
		passes  sync.WaitGroup
	}
)

func NewDriver(store Store, opts Options) *Driver {
	if opts.Root == "" {
		opts.Root = "classes"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Guard == nil {
		opts.Guard = new(Guard)
	}
	return &Driver{
		store:     store,
		root:      opts.Root,
		loc:       opts.Location,
		logger:    opts.Logger,
		guard:     opts.Guard,
		writer:    NewWriter(store, opts.Root),
		observers: opts.Observers,
		baseCtx:   context.Background(),
	}
}

// Start performs a readiness read of the root, then subscribes to its changes.
// The initial notification delivered by the store runs the first pass.
// Passes are detached from ctx cancellation: a started pass always runs to completion.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return ErrStopped
	}
	if d.running {
		d.mu.Unlock()
		return errors.New("reconciliation driver already started")
	}
	d.running = true
	d.baseCtx = context.WithoutCancel(ctx)
	d.mu.Unlock()

	// one-shot read to confirm connectivity; not a pass, hence not guarded
	if _, err := d.store.Get(ctx, d.root); err != nil {
		d.logger.Warn(fmt.Sprintf("store not reachable at %q yet: %v", d.root, err), err)
	} else {
		d.logger.Info(fmt.Sprintf("store reachable, watching %q", d.root))
	}

	sub, err := d.store.Subscribe(ctx, d.root, d.onChange)
	if err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		return errors.Wrapf(err, "subscribing to %q", d.root)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped { // stopped while subscribing
		return sub.Cancel()
	}
	d.sub = sub
	d.status.Subscribed = true
	return nil
}

// Stop deregisters the listener, then waits for the pass in flight (if any) to finish.
// No pass starts once Stop was called.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.status.Stopped = true
	d.status.Subscribed = false
	sub := d.sub
	d.sub = nil
	d.mu.Unlock()

	var err error
	if sub != nil {
		err = errors.Wrap(sub.Cancel(), "cancelling subscription")
	}
	d.passes.Wait()
	d.logger.Info("reconciliation driver stopped")
	return err
}

// Trigger runs one pass synchronously, unless a pass is already running (ErrBusy) or the driver was stopped (ErrStopped).
// A failed pass is returned along with its error.
func (d *Driver) Trigger(ctx context.Context, opts TriggerOptions) (Result, error) {
	if !d.acquire(TriggerManual) {
		if d.isStopped() {
			return Result{}, ErrStopped
		}
		return Result{}, ErrBusy
	}
	defer d.passes.Done()
	defer d.guard.Release()

	// a pass in flight always runs to completion, even if the caller goes away
	res := d.pass(context.WithoutCancel(ctx), TriggerManual, nil, opts.DryRun)
	return res, res.Err
}

// Status returns a copy of the driver's state & counters.
func (d *Driver) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	st := d.status
	st.State = d.guard.State()
	if st.LastPass != nil {
		last := *st.LastPass
		st.LastPass = &last
	}
	return st
}

func (d *Driver) isStopped() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopped
}

// acquire takes the guard for a new pass. On success, the caller must release the guard & mark the pass done.
func (d *Driver) acquire(trigger Trigger) bool {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return false
	}
	if !d.guard.TryAcquire() {
		d.status.Dropped++
		d.mu.Unlock()

		d.logger.Info(fmt.Sprintf("%s trigger dropped: a pass is already running", trigger))
		for _, obs := range d.observers {
			obs.TriggerDropped(trigger)
		}
		return false
	}
	d.passes.Add(1)
	d.mu.Unlock()
	return true
}

func (d *Driver) onChange(payload map[string]interface{}) {
	if !d.acquire(TriggerNotification) {
		return
	}
	d.mu.Lock()
	ctx := d.baseCtx
	d.mu.Unlock()

	go func() {
		defer d.passes.Done()
		defer d.guard.Release()
		d.pass(ctx, TriggerNotification, payload, false)
	}()
}

// pass reads the snapshot (unless the notification carried it), builds the change set & commits it.
// Failures are recorded in the result, never propagated. A recovered panic is reported as a core shutdown error.
func (d *Driver) pass(ctx context.Context, trigger Trigger, payload map[string]interface{}, dryRun bool) (res Result) {
	res = Result{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		DryRun:    dryRun,
		StartedAt: NowFunc(),
	}
	defer func() {
		if r := recover(); r != nil {
			res.Err = core.NewShutdownError(fmt.Sprintf("pass %s panicked: %v", res.ID, r))
			res.Committed = false
		}
		res.Duration = NowFunc().Sub(res.StartedAt)
		d.record(res)
	}()

	raw := payload
	if raw == nil {
		v, err := d.store.Get(ctx, d.root)
		if err != nil {
			res.Err = &PassError{Kind: ErrSnapshotUnavailable, Op: "read", Path: d.root, Err: err}
			return res
		}
		raw, _ = v.(map[string]interface{})
	}

	snap := coursework.ParseSnapshot(raw, d.loc, NowFunc())
	res.Classes = len(snap.Classes)
	res.Answers = snap.NumAnswers()
	res.Malformed = snap.Malformed

	res.Changes = coursework.BuildChangeSet(snap, snap.ReadAt)
	if dryRun {
		return res
	}

	committed, err := d.writer.Commit(ctx, res.Changes)
	if err != nil {
		res.Err = err
		return res
	}
	res.Committed = committed
	return res
}

func (d *Driver) record(res Result) {
	d.mu.Lock()
	d.status.Passes++
	if res.Committed {
		d.status.Commits++
	}
	if res.Err != nil {
		d.status.Failures++
	}
	d.status.LastPass = &res
	d.mu.Unlock()

	switch {
	case res.Err != nil:
		d.logger.Error(fmt.Sprintf("pass %s (%s) failed: %v", res.ID, res.Trigger, res.Err), res.Err)
	case res.Changes.IsEmpty():
		d.logger.Debug(fmt.Sprintf("pass %s (%s): %d answer(s) in %d class(es), nothing overdue", res.ID, res.Trigger, res.Answers, res.Classes))
	case res.DryRun:
		d.logger.Info(fmt.Sprintf("pass %s (%s, dry run): %d answer(s) would be marked overdue", res.ID, res.Trigger, res.Changes.Len()))
	default:
		d.logger.Info(fmt.Sprintf("pass %s (%s): %d answer(s) marked overdue", res.ID, res.Trigger, res.Changes.Len()))
	}
	if res.Malformed > 0 {
		d.logger.Warn(fmt.Sprintf("pass %s: %d malformed record(s) skipped", res.ID, res.Malformed))
	}

	for _, obs := range d.observers {
		obs.PassFinished(res)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}
