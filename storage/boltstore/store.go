// Package boltstore persists the hierarchical document tree in a bbolt file.
// Every leaf is stored under its full slash separated path, its value JSON encoded.
package boltstore

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage/tree"
)

var bucketNodes = []byte("Nodes")

type Store struct {
	db  *bbolt.DB
	hub *tree.Hub
}

var _ reconcile.Store = (*Store)(nil) // interface compliance check

// Open opens (or creates) the DB file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating data dir")
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNodes)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "creating buckets")
	}

	return &Store{db: db, hub: tree.NewHub()}, nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return s.db.Close()
}

// Get rebuilds the subtree at path from its leaves; nil when missing.
func (s *Store) Get(ctx context.Context, path string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := tree.Join(path)
	leaves := make(map[string]interface{})

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return errors.Errorf("bucket %s not found", bucketNodes)
		}
		if base != "" {
			if v := b.Get([]byte(base)); v != nil {
				return decodeLeaf(leaves, base, v)
			}
		}

		c := b.Cursor()
		prefix := []byte(base + "/")
		if base == "" {
			prefix = nil
		}
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if err := decodeLeaf(leaves, string(k), v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", base)
	}
	return tree.Unflatten(base, leaves), nil
}

// Update writes all values in a single bbolt transaction.
// Each value replaces the whole node at its path (nil deletes it).
func (s *Store) Update(ctx context.Context, path string, values map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rels := make([]string, 0, len(values))
	for rel := range values {
		rels = append(rels, rel)
	}
	sort.Strings(rels) // parents before children

	changed := make([]string, 0, len(values))
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNodes)
		if b == nil {
			return errors.Errorf("bucket %s not found", bucketNodes)
		}
		for _, rel := range rels {
			full := tree.Join(path, rel)
			if err := deleteNode(b, full); err != nil {
				return err
			}
			leaves := make(map[string]interface{})
			tree.Flatten(full, values[rel], leaves)
			for p, v := range leaves {
				data, err := json.Marshal(v)
				if err != nil {
					return errors.Wrapf(err, "encoding %q", p)
				}
				if err := b.Put([]byte(p), data); err != nil {
					return errors.Wrapf(err, "writing %q", p)
				}
			}
			changed = append(changed, full)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "updating nodes")
	}
	s.hub.Publish(changed...)
	return nil
}

// Subscribe delivers the subtree at path right away, then after every overlapping committed update.
func (s *Store) Subscribe(ctx context.Context, path string, onChange func(payload map[string]interface{})) (reconcile.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	load := func() interface{} {
		v, err := s.Get(context.Background(), path)
		if err != nil {
			return nil // subscriber reads again
		}
		return v
	}
	return s.hub.Subscribe(path, load, onChange), nil
}

// deleteNode removes the leaf or subtree at p, and any ancestor leaf that would shadow it.
func deleteNode(b *bbolt.Bucket, p string) error {
	keys := tree.Split(p)
	for i := 1; i <= len(keys); i++ {
		if err := b.Delete([]byte(tree.Join(keys[:i]...))); err != nil {
			return err
		}
	}

	prefix := []byte(p + "/")
	var children [][]byte
	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		children = append(children, append([]byte(nil), k...))
	}
	for _, k := range children {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func decodeLeaf(leaves map[string]interface{}, key string, data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return errors.Wrapf(err, "decoding %q", key)
	}
	leaves[key] = v
	return nil
}
