// Package memstore is an in-memory hierarchical document store.
package memstore

import (
	"context"
	"sync"

	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage/tree"
)

type Store struct {
	sync.RWMutex
	root tree.Node
	hub  *tree.Hub
}

var _ reconcile.Store = (*Store)(nil) // interface compliance check

func Open() *Store {
	return &Store{
		root: make(tree.Node),
		hub:  tree.NewHub(),
	}
}

func (s *Store) get(path string) interface{} {
	s.RLock()
	defer s.RUnlock()
	v, ok := tree.Get(s.root, path)
	if !ok {
		return nil
	}
	return tree.Copy(v)
}

// Get returns a deep copy of the subtree at path, nil when missing.
func (s *Store) Get(ctx context.Context, path string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(path), nil
}

// Set replaces the node at path.
func (s *Store) Set(ctx context.Context, path string, value interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Lock()
	tree.Set(s.root, path, value)
	s.Unlock()
	s.hub.Publish(path)
	return nil
}

// Update applies all values under path in one critical section: readers see all of them or none.
func (s *Store) Update(ctx context.Context, path string, values map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	changed := make([]string, 0, len(values))
	s.Lock()
	for rel, v := range values {
		p := tree.Join(path, rel)
		tree.Set(s.root, p, v)
		changed = append(changed, p)
	}
	s.Unlock()
	s.hub.Publish(changed...)
	return nil
}

// Subscribe delivers copies of the subtree at path, first right away, then after every overlapping change.
func (s *Store) Subscribe(ctx context.Context, path string, onChange func(payload map[string]interface{})) (reconcile.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(path, func() interface{} { return s.get(path) }, onChange), nil
}

// Close cancels all subscriptions.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}
