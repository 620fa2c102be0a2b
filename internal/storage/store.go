package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements CredentialStore using SQLite with encrypted values.
// It also keeps the low-stock watcher's alert bookkeeping.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based credential store.
// The dbPath is the path to the SQLite database file.
// The encryptionKey is used to encrypt/decrypt stored values.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	if len(encryptionKey) == 0 {
		return nil, fmt.Errorf("sqlite store requires an encryption key")
	}

	// WAL mode and busy timeout so the CLI and the agent can share one file
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
	}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	// Tokens live here; keep the file private
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("dbPath", dbPath).Msg("failed to restrict database file permissions")
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	credentialsQuery := `
	CREATE TABLE IF NOT EXISTS credentials (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(credentialsQuery); err != nil {
		return fmt.Errorf("failed to create credentials table: %w", err)
	}

	alertsQuery := `
	CREATE TABLE IF NOT EXISTS stock_alerts (
		part_id INTEGER PRIMARY KEY,
		stock_status TEXT NOT NULL,
		notified_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(alertsQuery); err != nil {
		return fmt.Errorf("failed to create stock_alerts table: %w", err)
	}

	return nil
}

// Get retrieves and decrypts a value.
// Returns "", false, nil if the key doesn't exist.
func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var encrypted string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM credentials WHERE key = ?",
		key,
	).Scan(&encrypted)

	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query credential %q: %w", key, err)
	}

	plaintext, err := Decrypt(encrypted, s.encryptionKey)
	if err != nil {
		return "", false, fmt.Errorf("failed to decrypt credential %q: %w", key, err)
	}

	return string(plaintext), true, nil
}

// SetAll encrypts and upserts every value in a single transaction.
func (s *SQLiteStore) SetAll(ctx context.Context, values map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for key, value := range values {
		encrypted, err := Encrypt([]byte(value), s.encryptionKey)
		if err != nil {
			return fmt.Errorf("failed to encrypt credential %q: %w", key, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO credentials (key, value, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				value = excluded.value,
				updated_at = excluded.updated_at
		`, key, encrypted, now)
		if err != nil {
			return fmt.Errorf("failed to save credential %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}
	return nil
}

// Delete removes the given keys in a single transaction.
func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", key); err != nil {
			return fmt.Errorf("failed to delete credential %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credential removal: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
