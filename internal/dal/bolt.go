package dal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/Roma7-7-7/livestream-notifier/internal/dal/migrations"
)

const subscribersBucket = "subscribers"

// BoltSubscribers keeps the subscriber set in a single bbolt file.
// Keys are decimal chat ids, values are the subscription time in RFC3339.
type BoltSubscribers struct {
	db   *bbolt.DB
	path string

	now func() time.Time
}

// NewBoltSubscribers opens the database and applies pending migrations.
// importPath is a flat subscriber list copied in when the database is first created; it may be empty.
func NewBoltSubscribers(path, importPath string, log *slog.Logger) (*BoltSubscribers, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil { //nolint:mnd
		return nil, newStorageError("init", path, err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second}) //nolint:mnd
	if err != nil {
		return nil, newStorageError("open", path, err)
	}

	if err := migrations.RunMigrations(db, log.With("component", "migrations"), migrations.All(importPath)...); err != nil {
		_ = db.Close()
		return nil, newStorageError("init", path, err)
	}

	return &BoltSubscribers{
		db:   db,
		path: path,
		now:  time.Now,
	}, nil
}

func (s *BoltSubscribers) GetAll() ([]ChatID, error) {
	res := make([]ChatID, 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(subscribersBucket)).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			id, err := ParseChatID(string(k))
			if err != nil {
				return newStorageError("parse", s.path, err)
			}
			res = append(res, id)
		}
		return nil
	})
	if err != nil {
		return nil, s.wrap("read", err)
	}

	return res, nil
}

func (s *BoltSubscribers) Exists(chatID ChatID) (bool, error) {
	res := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		res = tx.Bucket([]byte(subscribersBucket)).Get([]byte(chatID.String())) != nil
		return nil
	})
	if err != nil {
		return false, s.wrap("read", err)
	}

	return res, nil
}

func (s *BoltSubscribers) Add(chatID ChatID) (bool, error) {
	added := false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(subscribersBucket))
		key := []byte(chatID.String())
		if b.Get(key) != nil {
			return nil
		}
		if err := b.Put(key, []byte(s.now().UTC().Format(time.RFC3339))); err != nil {
			return fmt.Errorf("put subscriber %s: %w", chatID, err)
		}
		added = true
		return nil
	})
	if err != nil {
		return false, s.wrap("write", err)
	}

	return added, nil
}

func (s *BoltSubscribers) Remove(chatID ChatID) (bool, error) {
	removed := false

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(subscribersBucket))
		key := []byte(chatID.String())
		if b.Get(key) == nil {
			return nil
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("delete subscriber %s: %w", chatID, err)
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, s.wrap("write", err)
	}

	return removed, nil
}

func (s *BoltSubscribers) Close() error {
	return s.db.Close() //nolint:wrapcheck // it's ok
}

func (s *BoltSubscribers) wrap(op string, err error) error {
	if se, ok := err.(*StorageError); ok { //nolint:errorlint // returned as is from the tx closure
		return se
	}
	return newStorageError(op, s.path, err)
}
