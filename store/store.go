// Package store keeps sealed values in a badger database. Every value is an
// envelope produced by a keypool.Cipher; plaintext never reaches disk.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	keypool "github.com/rbaliyan/config-keypool"
)

var (
	// ErrNotFound is returned when a key has no stored value.
	ErrNotFound = errors.New("store: key not found")

	// ErrEmptyKey is returned for operations on the empty key.
	ErrEmptyKey = errors.New("store: key must not be empty")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store: closed")
)

// Config configures a Store.
type Config struct {
	// Path is the badger directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in memory only.
	InMemory bool

	// SyncWrites flushes every write to disk before returning.
	SyncWrites bool

	Logger *logrus.Logger
}

func (c Config) check() error {
	if !c.InMemory && c.Path == "" {
		return fmt.Errorf("store: path is required unless InMemory is set")
	}
	return nil
}

// Store is a sealed key-value store. It is safe for concurrent use.
type Store struct {
	db     *badger.DB
	cipher *keypool.Cipher
	log    *logrus.Entry
}

// Open opens or creates the database described by cfg. Values are sealed and
// opened with c.
func Open(cfg Config, c *keypool.Cipher) (*Store, error) {
	if c == nil {
		return nil, fmt.Errorf("store: cipher is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if err := cfg.check(); err != nil {
		return nil, fmt.Errorf("error checking config for store: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.SyncWrites = cfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	log := cfg.Logger.WithFields(logrus.Fields{
		"component": "store",
		"algorithm": c.Algorithm(),
	})
	log.WithField("path", cfg.Path).WithField("in_memory", cfg.InMemory).Debug("store opened")

	return &Store{db: db, cipher: c, log: log}, nil
}

func (s *Store) check(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return ErrEmptyKey
	}
	if s.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Put seals plaintext and stores it under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, plaintext []byte) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	envelope, err := s.cipher.EncryptContext(ctx, plaintext)
	if err != nil {
		return fmt.Errorf("store: failed to seal %q: %w", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(envelope))
	})
	if err != nil {
		return fmt.Errorf("store: failed to write %q: %w", key, err)
	}

	s.log.WithField("key", key).Debug("value stored")
	return nil
}

// Get returns the plaintext stored under key. A value that fails
// verification yields the cipher's authentication error.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	envelope, err := s.Envelope(ctx, key)
	if err != nil {
		return nil, err
	}

	plaintext, err := s.cipher.DecryptContext(ctx, envelope)
	if err != nil {
		s.log.WithField("key", key).Warn("stored value rejected")
		return nil, fmt.Errorf("store: failed to open %q: %w", key, err)
	}
	return plaintext, nil
}

// Envelope returns the sealed value stored under key without opening it.
func (s *Store) Envelope(ctx context.Context, key string) (string, error) {
	if err := s.check(ctx, key); err != nil {
		return "", err
	}

	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("store: failed to read %q: %w", key, err)
	}
	return string(value), nil
}

// Delete removes key. Returns ErrNotFound if it has no value.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	if err != nil {
		return fmt.Errorf("store: failed to delete %q: %w", key, err)
	}

	s.log.WithField("key", key).Debug("value deleted")
	return nil
}

// Keys returns every stored key in ascending byte order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.db.IsClosed() {
		return nil, ErrClosed
	}

	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: failed to list keys: %w", err)
	}
	return keys, nil
}

// Close flushes and closes the database. The cipher and its pool are left
// untouched.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: failed to close database: %w", err)
	}
	s.log.Debug("store closed")
	return nil
}
