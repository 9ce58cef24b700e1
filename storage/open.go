// Package storage opens the configured hierarchical store backend.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-checker/core"
	"github.com/trezcool/masomo-checker/core/reconcile"
	"github.com/trezcool/masomo-checker/storage/boltstore"
	"github.com/trezcool/masomo-checker/storage/database"
	"github.com/trezcool/masomo-checker/storage/database/pgstore"
	"github.com/trezcool/masomo-checker/storage/memstore"
	"github.com/trezcool/masomo-checker/storage/rtdb"
)

// Store is a reconcile.Store owning resources to release.
type Store interface {
	reconcile.Store
	Close() error
}

type pgStore struct {
	*pgstore.Store
	closeDB func() error
}

func (s pgStore) Close() error {
	err := s.Store.Close()
	if dbErr := s.closeDB(); err == nil {
		err = dbErr
	}
	return err
}

// Open returns the store selected by conf.Store.Backend.
func Open(ctx context.Context, conf *core.Config, logger core.Logger) (Store, error) {
	switch conf.Store.Backend {
	case core.BackendMemory:
		return memstore.Open(), nil

	case core.BackendBolt:
		s, err := boltstore.Open(conf.Store.BoltPath)
		if err != nil {
			return nil, errors.Wrap(err, "opening bolt store")
		}
		return s, nil

	case core.BackendPostgres:
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		s, err := pgstore.Open(db, database.URL(conf.Database.Name, false, conf), logger)
		if err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, "opening postgres store")
		}
		return pgStore{Store: s, closeDB: db.Close}, nil

	case core.BackendRTDB:
		c, err := rtdb.NewClient(ctx, rtdb.Options{
			URL:             conf.Store.RTDB.URL,
			Secret:          conf.Store.RTDB.Secret,
			CredentialsFile: conf.Store.RTDB.CredentialsFile,
			Logger:          logger,
		})
		if err != nil {
			return nil, errors.Wrap(err, "opening rtdb client")
		}
		return c, nil
	}
	return nil, errors.Errorf("unknown store backend %q", conf.Store.Backend)
}
