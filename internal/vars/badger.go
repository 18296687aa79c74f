package vars

import (
	"context"

	badger "github.com/dgraph-io/badger/v2"
	"github.com/pkg/errors"
)

const keyPrefix = "var-"

// Badger is a KV persisted in a badger database.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens the database in dirPath. An empty dirPath keeps the
// database in memory.
func OpenBadger(dirPath string) (*Badger, error) {
	var opts badger.Options
	if dirPath == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(dirPath).WithSyncWrites(false).WithTruncate(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WithMessage(err, "could not open variable db")
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Get(_ context.Context, key string) (string, bool, error) {
	var val []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.WithMessagef(err, "could not read variable %s", key)
	}
	return string(val), true, nil
}

func (b *Badger) Put(_ context.Context, key, value string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), []byte(value))
	})
	return errors.WithMessagef(err, "could not write variable %s", key)
}

// Keys returns every stored variable name.
func (b *Badger) Keys() ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(keyPrefix):]))
		}
		return nil
	})
	return keys, errors.WithMessage(err, "could not list variables")
}

// Sync flushes pending writes.
func (b *Badger) Sync() error {
	return b.db.Sync()
}

func (b *Badger) Close() error {
	return b.db.Close()
}
