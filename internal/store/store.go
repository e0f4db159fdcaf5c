package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"wagateway/internal/errors"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	key        TEXT NOT NULL,
	body       BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// Store is a durable JSON-document store with whole-document
// read/overwrite semantics, backed by SQLite. Documents may optionally
// be encrypted at rest.
type Store struct {
	db        *sql.DB
	encryptor *encryptor
	logger    *logrus.Logger

	mu   sync.Mutex
	subs map[string][]chan string
}

// Open opens or creates the store at the given path
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeStoreOpen, "store path cannot be empty")
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "failed to open store")
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, fmt.Sprintf("failed to ping store (close error: %v)", closeErr))
		}
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "failed to ping store")
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, fmt.Sprintf("failed to initialize schema (close error: %v)", closeErr))
		}
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "failed to initialize schema")
	}

	enc, err := newEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, fmt.Sprintf("failed to initialize encryptor (close error: %v)", closeErr))
		}
		return nil, errors.Wrap(err, errors.ErrCodeStoreOpen, "failed to initialize encryptor")
	}

	return &Store{
		db:        db,
		encryptor: enc,
		logger:    logger,
		subs:      make(map[string][]chan string),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the document body, or nil when the document is missing.
// A document that cannot be decrypted is treated as missing and logged,
// never surfaced as a hard failure.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStoreError("get", err)
	}

	plain, err := s.encryptor.Decrypt(body)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"collection": collection,
			"key":        key,
		}).WithError(err).Warn("Unreadable document treated as missing")
		return nil, nil
	}
	return plain, nil
}

// Put overwrites the whole document and notifies subscribers
func (s *Store) Put(ctx context.Context, collection, key string, body []byte) error {
	sealed, err := s.encryptor.Encrypt(body)
	if err != nil {
		return errors.NewStoreError("encrypt", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, body, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, key) DO UPDATE SET
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP`,
		collection, key, sealed,
	)
	if err != nil {
		return errors.NewStoreError("put", err)
	}

	s.notify(collection, key)
	return nil
}

// Delete removes the document and notifies subscribers. Deleting a
// missing document is not an error.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	)
	if err != nil {
		return errors.NewStoreError("delete", err)
	}

	s.notify(collection, key)
	return nil
}

// List returns all documents of a collection keyed by document key.
// Unreadable documents are skipped with a log line.
func (s *Store) List(ctx context.Context, collection string) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, body FROM documents WHERE collection = ?`,
		collection,
	)
	if err != nil {
		return nil, errors.NewStoreError("list", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.WithError(closeErr).Warn("Failed to close rows")
		}
	}()

	out := make(map[string][]byte)
	for rows.Next() {
		var key string
		var body []byte
		if err := rows.Scan(&key, &body); err != nil {
			return nil, errors.NewStoreError("list", err)
		}
		plain, err := s.encryptor.Decrypt(body)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"collection": collection,
				"key":        key,
			}).WithError(err).Warn("Skipping unreadable document")
			continue
		}
		out[key] = plain
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError("list", err)
	}

	return out, nil
}

// Subscribe returns a channel that receives the key of every document
// changed in the collection. Slow subscribers lose notifications rather
// than blocking writers.
func (s *Store) Subscribe(collection string) <-chan string {
	ch := make(chan string, 32)
	s.mu.Lock()
	s.subs[collection] = append(s.subs[collection], ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notify(collection, key string) {
	s.mu.Lock()
	subs := s.subs[collection]
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- key:
		default:
			s.logger.WithField("collection", collection).Debug("Dropped change notification for slow subscriber")
		}
	}
}
