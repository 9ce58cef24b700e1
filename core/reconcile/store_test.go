package reconcile

import (
	"context"
	"sync"
)

// fakeStore is a scripted Store: Get may fail or block, Update may fail, notifications are fired by hand.
type fakeStore struct {
	mu         sync.Mutex
	classes    map[string]interface{}
	getErr     error
	updateErr  error
	gets       int
	updates    int
	lastPath   string
	lastUpdate map[string]interface{}
	onChange   func(map[string]interface{})
	cancelled  bool

	block      chan struct{} // Get waits on it when set
	getStarted chan struct{} // signalled when a blocking Get starts
	afterGet   func()        // runs once Get has read the tree
}

var _ Store = (*fakeStore)(nil) // interface compliance check

func newFakeStore(classes map[string]interface{}) *fakeStore {
	return &fakeStore{classes: classes}
}

func (s *fakeStore) Get(ctx context.Context, path string) (interface{}, error) {
	s.mu.Lock()
	s.gets++
	block, started, afterGet, err := s.block, s.getStarted, s.afterGet, s.getErr
	s.mu.Unlock()

	if block != nil {
		if started != nil {
			started <- struct{}{}
		}
		<-block
	}
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	tree := copyTree(s.classes)
	s.mu.Unlock()
	if afterGet != nil {
		afterGet()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return tree, nil
}

func (s *fakeStore) Update(ctx context.Context, path string, values map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.lastPath = path
	s.lastUpdate = values
	return nil
}

func (s *fakeStore) Subscribe(ctx context.Context, path string, onChange func(map[string]interface{})) (Subscription, error) {
	s.mu.Lock()
	s.onChange = onChange
	s.mu.Unlock()
	go onChange(nil) // initial notification
	return fakeSubscription{s}, nil
}

// notify simulates a change notification.
func (s *fakeStore) notify(payload map[string]interface{}) {
	s.mu.Lock()
	onChange, cancelled := s.onChange, s.cancelled
	s.mu.Unlock()
	if onChange != nil && !cancelled {
		onChange(payload)
	}
}

func (s *fakeStore) counts() (gets, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.updates
}

func (s *fakeStore) set(fn func(s *fakeStore)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

type fakeSubscription struct{ s *fakeStore }

func (sub fakeSubscription) Cancel() error {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	sub.s.cancelled = true
	return nil
}

func copyTree(m map[string]interface{}) map[string]interface{} {
	cp := make(map[string]interface{}, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]interface{}); ok {
			cp[k] = copyTree(child)
		} else {
			cp[k] = v
		}
	}
	return cp
}
