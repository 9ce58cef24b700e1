// Package pgstore keeps the document tree in Postgres, one row per leaf.
// Committed updates are announced with NOTIFY so that every process sharing the DB sees them.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage/tree"
)

// Channel is the NOTIFY channel; the payload is the changed path.
const Channel = "store_node_changed"

const (
	minReconnect = 100 * time.Millisecond
	maxReconnect = 30 * time.Second
	pingInterval = 90 * time.Second
)

var (
	byPath = core.DBOrdering{Field: "path", Ascending: true}

	likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
)

type (
	Store struct {
		db       *sqlx.DB
		log      core.Logger
		hub      *tree.Hub
		listener *pq.Listener
		done     chan struct{}
		wg       sync.WaitGroup
		once     sync.Once
	}

	leaf struct {
		Path  string         `db:"path"`
		Value types.JSONText `db:"value"`
	}
)

var _ reconcile.Store = (*Store)(nil) // interface compliance check

// Open listens for changes using a dedicated connection to dsn; db serves reads and writes.
func Open(db *sqlx.DB, dsn string, log core.Logger) (*Store, error) {
	s := &Store{
		db:   db,
		log:  log,
		hub:  tree.NewHub(),
		done: make(chan struct{}),
	}
	s.listener = pq.NewListener(dsn, minReconnect, maxReconnect, s.listenerEvent)
	if err := s.listener.Listen(Channel); err != nil {
		_ = s.listener.Close()
		return nil, errors.Wrapf(err, "listening on %s", Channel)
	}

	s.wg.Add(1)
	go s.listen()
	return s, nil
}

// Close stops listening. The DB handle is left open.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.hub.Close()
		err = s.listener.Close()
	})
	return err
}

func (s *Store) Get(ctx context.Context, path string) (interface{}, error) {
	base := tree.Join(path)
	q := "SELECT path, value FROM store_node"
	var args []interface{}
	if base != "" {
		q += ` WHERE path = $1 OR path LIKE $2 ESCAPE '\'`
		args = append(args, base, likeEscape(base)+"/%")
	}
	q += " ORDER BY " + byPath.String()

	var rows []leaf
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrapf(err, "reading %q", base)
	}

	leaves := make(map[string]interface{}, len(rows))
	for _, row := range rows {
		var v interface{}
		if err := json.Unmarshal(row.Value, &v); err != nil {
			return nil, errors.Wrapf(err, "decoding %q", row.Path)
		}
		leaves[row.Path] = v
	}
	return tree.Unflatten(base, leaves), nil
}

// Update writes all values in one transaction; each value replaces the node at its path (nil deletes it).
func (s *Store) Update(ctx context.Context, path string, values map[string]interface{}) (err error) {
	rels := make([]string, 0, len(values))
	for rel := range values {
		rels = append(rels, rel)
	}
	sort.Strings(rels) // parents before children

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			rollback(tx)
		}
	}()

	for _, rel := range rels {
		full := tree.Join(path, rel)
		if err = replaceNode(ctx, tx, full, values[rel]); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx, "SELECT pg_notify($1, $2)", Channel, full); err != nil {
			return errors.Wrap(err, "notifying change")
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

// Subscribe delivers the subtree at path right away, then after every overlapping NOTIFY.
func (s *Store) Subscribe(ctx context.Context, path string, onChange func(payload map[string]interface{})) (reconcile.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	load := func() interface{} {
		v, err := s.Get(context.Background(), path)
		if err != nil {
			s.log.Warn(fmt.Sprintf("reading %q: %v", path, err), err)
			return nil // subscriber reads again
		}
		return v
	}
	return s.hub.Subscribe(path, load, onChange), nil
}

func (s *Store) listen() {
	defer s.wg.Done()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case n := <-s.listener.Notify:
			if n == nil {
				// reconnected: notifications may have been lost
				s.hub.Publish("")
				continue
			}
			s.hub.Publish(n.Extra)
		case <-ticker.C:
			go func() {
				if err := s.listener.Ping(); err != nil {
					s.log.Warn(fmt.Sprintf("store listener ping: %v", err), err)
				}
			}()
		}
	}
}

func (s *Store) listenerEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
		s.log.Warn(fmt.Sprintf("store listener disconnected: %v", err), err)
	case pq.ListenerEventReconnected:
		s.log.Info("store listener reconnected")
	}
}

// replaceNode drops the node at p (and any ancestor leaf shadowing it) then writes the leaves of value.
func replaceNode(ctx context.Context, tx *sqlx.Tx, p string, value interface{}) error {
	keys := tree.Split(p)
	ancestors := make([]string, 0, len(keys))
	for i := 1; i <= len(keys); i++ {
		ancestors = append(ancestors, tree.Join(keys[:i]...))
	}

	q := `DELETE FROM store_node WHERE path = ANY($1) OR path LIKE $2 ESCAPE '\'`
	if _, err := tx.ExecContext(ctx, q, pq.Array(ancestors), likeEscape(p)+"/%"); err != nil {
		return errors.Wrapf(err, "deleting %q", p)
	}

	leaves := make(map[string]interface{})
	tree.Flatten(p, value, leaves)
	for lp, lv := range leaves {
		data, err := json.Marshal(lv)
		if err != nil {
			return errors.Wrapf(err, "encoding %q", lp)
		}
		q := `INSERT INTO store_node (path, value, updated_at) VALUES ($1, $2, now())
			ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
		if _, err = tx.ExecContext(ctx, q, lp, types.JSONText(data)); err != nil {
			return errors.Wrapf(err, "writing %q", lp)
		}
	}
	return nil
}

func rollback(tx core.DBTransactor) {
	_ = tx.Rollback()
}

func likeEscape(s string) string {
	return likeEscaper.Replace(s)
}
