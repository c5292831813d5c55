// Package embedstore persists image embeddings in BadgerDB.
package embedstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const keyPrefix = "embedding:"

// ErrCorrupt reports a stored value that is not a float64 vector.
var ErrCorrupt = errors.New("corrupt embedding value")

// Store is a Badger-backed embedding cache.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Option configures a Store.
type Option func(*options)

type options struct {
	inMemory bool
	ttl      time.Duration
}

// WithInMemory keeps the database in memory only.
func WithInMemory(enabled bool) Option {
	return func(o *options) { o.inMemory = enabled }
}

// WithTTL expires entries after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.ttl = d
		}
	}
}

// Open opens or creates the database in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	bopts := badger.DefaultOptions(dir).WithLogger(nil)
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", dir, err)
	}
	return &Store{db: db, ttl: o.ttl}, nil
}

// Get returns the vector stored under key.
func (s *Store) Get(_ context.Context, key string) ([]float64, bool, error) {
	var vec []float64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			v, err := decode(val)
			vec = v
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return vec, true, nil
}

// Put stores vec under key.
func (s *Store) Put(_ context.Context, key string, vec []float64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), encode(vec))
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

// Len counts stored embeddings.
func (s *Store) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encode(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decode(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%d bytes: %w", len(b), ErrCorrupt)
	}
	vec := make([]float64, len(b)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return vec, nil
}
