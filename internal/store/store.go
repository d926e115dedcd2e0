// Package store is the persistent, namespaced cache shared by the locator
// and the cachectl tool. Entries live in a badger directory; every value is
// JSON wrapped in an envelope that carries its own expiry, so an entry is
// logically gone as soon as it expires even before badger reaps it.
package store

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
)

// ErrNotFound is returned by Delete when the key does not exist.
var ErrNotFound = errors.New("store: key not found")

// envelope is the stored form of every value.
type envelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Data      json.RawMessage `json:"data"`
}

// header decodes only the expiry of an envelope.
type header struct {
	ExpiresAt time.Time `json:"expires_at"`
}

func (h header) expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.Before(h.ExpiresAt)
}

type options struct {
	clock    clockwork.Clock
	rng      *rand.Rand
	logger   *slog.Logger
	readOnly bool
}

// Option configures a Store.
type Option func(*options)

// WithClock sets the clock used to judge expiry.
func WithClock(c clockwork.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithRand sets the random source used by Thin.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithLogger sets the logger for the store and for badger itself.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithReadOnly opens the directory without taking the write lock, so an
// inspection tool can run next to a writing process.
func WithReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// Store is a namespaced key-value cache with per-entry expiry.
type Store struct {
	db     *badger.DB
	clock  clockwork.Clock
	logger *slog.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Open opens (or creates) the store in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	bopts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger(o.logger)).
		WithReadOnly(o.readOnly)
	return open(bopts, o)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(opts ...Option) (*Store, error) {
	o := buildOptions(opts)
	bopts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil)
	return open(bopts, o)
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

func open(bopts badger.Options, o options) (*Store, error) {
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &Store{db: db, clock: o.clock, logger: o.logger, rng: o.rng}, nil
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get decodes the value stored under key into dst. It reports false when the
// key is absent or expired.
func (s *Store) Get(key Key, dst any) (bool, error) {
	var env envelope
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.encode())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &env)
		})
	})
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !found || (header{ExpiresAt: env.ExpiresAt}).expired(s.clock.Now()) {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key. A positive ttl makes the entry expire; zero
// keeps it until it is deleted.
func (s *Store) Set(key Key, value any, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	env := envelope{Data: data}
	if ttl > 0 {
		env.ExpiresAt = s.clock.Now().Add(ttl).UTC()
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key.encode(), raw)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key. It returns ErrNotFound when there is nothing live to
// remove; an expired entry is reaped on the way.
func (s *Store) Delete(key Key) error {
	live := false
	err := s.db.Update(func(txn *badger.Txn) error {
		k := key.encode()
		item, err := txn.Get(k)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if live, err = s.live(item); err != nil {
			return err
		}
		return txn.Delete(k)
	})
	if err != nil {
		return err
	}
	if !live {
		return ErrNotFound
	}
	return nil
}

// SizeOf returns the stored size in bytes of the entry under key.
func (s *Store) SizeOf(key Key) (int64, bool, error) {
	var size int64
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.encode())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		live, err := s.live(item)
		if err != nil || !live {
			return err
		}
		found = true
		size = item.ValueSize()
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("size of %s: %w", key, err)
	}
	return size, found, nil
}

// Keys lazily enumerates the live keys of a namespace in key order. The
// iteration runs inside one read transaction and stops as soon as the caller
// breaks out of the loop.
func (s *Store) Keys(namespace string) iter.Seq2[Key, error] {
	return func(yield func(Key, error) bool) {
		err := s.db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()

			prefix := namespacePrefix(namespace)
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				live, err := s.live(item)
				if err != nil {
					return err
				}
				if !live {
					continue
				}
				k, err := decodeKey(item.KeyCopy(nil))
				if err != nil {
					return err
				}
				if !yield(k, nil) {
					return errStop
				}
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			yield(Key{}, fmt.Errorf("list %s: %w", namespace, err))
		}
	}
}

var errStop = errors.New("stop iteration")

// live reports whether the item has not expired by the store's clock.
func (s *Store) live(item *badger.Item) (bool, error) {
	var h header
	err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &h)
	})
	if err != nil {
		return false, err
	}
	return !h.expired(s.clock.Now()), nil
}

// collect returns every key of a namespace for which match returns true,
// expired entries included.
func (s *Store) collect(namespace string, match func(Key) bool) ([]Key, error) {
	var keys []Key
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := namespacePrefix(namespace)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k, err := decodeKey(it.Item().KeyCopy(nil))
			if err != nil {
				return err
			}
			if match == nil || match(k) {
				keys = append(keys, k)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	return keys, nil
}

// deleteKeys removes keys in one write batch and returns how many it removed.
func (s *Store) deleteKeys(keys []Key) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range keys {
		if err := wb.Delete(k.encode()); err != nil {
			return 0, fmt.Errorf("delete %s: %w", k, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush deletes: %w", err)
	}
	return len(keys), nil
}

func validateKey(k Key) error {
	if k.Namespace == "" {
		return errors.New("store: empty namespace")
	}
	if strings.ContainsRune(k.Namespace, nsSep) || strings.ContainsRune(k.Namespace, partSep) {
		return fmt.Errorf("store: invalid namespace %q", k.Namespace)
	}
	for _, p := range k.Parts {
		if strings.ContainsRune(p, partSep) || strings.ContainsRune(p, nsSep) {
			return fmt.Errorf("store: invalid key part %q", p)
		}
	}
	return nil
}
