// Package sqlite stores commands whose hand-off to the receiver failed, so an
// operator can inspect and replay them. It implements gateway.DeadLetterRecorder.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/plaenen/commandgateway/pkg/command"
	"github.com/plaenen/commandgateway/pkg/gateway"
	"github.com/plaenen/commandgateway/pkg/idgen"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNotFound is returned when no dead letter has the given id.
var ErrNotFound = errors.New("dead letter not found")

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id             TEXT PRIMARY KEY,
	command_id     TEXT NOT NULL,
	command_name   TEXT NOT NULL,
	correlation_id TEXT NOT NULL,
	command        TEXT NOT NULL,
	error          TEXT NOT NULL,
	recorded_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dead_letters_command_id ON dead_letters(command_id);
`

// DeadLetter is a stored command together with the hand-off failure.
type DeadLetter struct {
	ID         string
	Command    *command.Enriched
	Error      string
	RecordedAt time.Time
}

type storeConfig struct {
	dsn          string
	maxOpenConns int
	walMode      bool
}

func defaultStoreConfig() storeConfig {
	return storeConfig{
		dsn:          "deadletters.db",
		maxOpenConns: 4,
		walMode:      true,
	}
}

// Option configures a Store.
type Option func(*storeConfig)

// WithDSN sets the data source name (file path or ":memory:").
func WithDSN(dsn string) Option {
	return func(c *storeConfig) {
		c.dsn = dsn
	}
}

// WithMemoryDatabase uses an in-memory database.
func WithMemoryDatabase() Option {
	return func(c *storeConfig) {
		c.dsn = ":memory:"
		c.walMode = false
	}
}

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(c *storeConfig) {
		c.maxOpenConns = n
	}
}

// WithWALMode enables write-ahead logging. Not available for in-memory databases.
func WithWALMode(enabled bool) Option {
	return func(c *storeConfig) {
		c.walMode = enabled
	}
}

// Store is a SQLite dead-letter store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ gateway.DeadLetterRecorder = (*Store)(nil)

// New opens the store and creates its table.
func New(opts ...Option) (*Store, error) {
	config := defaultStoreConfig()
	for _, opt := range opts {
		opt(&config)
	}

	db, err := sql.Open("sqlite", config.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: gets its own database.
	if config.dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(config.maxOpenConns)
	}

	if config.walMode {
		if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set WAL mode: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Record stores cmd with the hand-off error.
func (s *Store) Record(ctx context.Context, cmd *command.Enriched, cause error) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to serialize command %s: %w", cmd.ID, err)
	}

	message := ""
	if cause != nil {
		message = cause.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, command_id, command_name, correlation_id, command, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		idgen.NewSortableID(), cmd.ID, cmd.FullyQualifiedName(), cmd.Metadata.CorrelationID,
		string(data), message, s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dead letter for command %s: %w", cmd.ID, err)
	}
	return nil
}

// List returns up to limit dead letters, oldest first. A limit of zero or
// less returns all of them.
func (s *Store) List(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, error, recorded_at
		FROM dead_letters
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dead letters: %w", err)
	}
	defer rows.Close()

	var letters []DeadLetter
	for rows.Next() {
		letter, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		letters = append(letters, letter)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dead letters: %w", err)
	}
	return letters, nil
}

// Get returns the dead letter with id.
func (s *Store) Get(ctx context.Context, id string) (DeadLetter, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, command, error, recorded_at
		FROM dead_letters
		WHERE id = ?`, id)

	letter, err := scanDeadLetter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return DeadLetter{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return letter, err
}

// Delete removes a dead letter, typically after it was replayed.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete dead letter %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete dead letter %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Replay hands the dead letter to receiver and deletes it on success. The
// command keeps its original id so downstream deduplication still applies.
func (s *Store) Replay(ctx context.Context, id string, receiver gateway.Receiver) error {
	letter, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := receiver.Receive(ctx, letter.Command); err != nil {
		return fmt.Errorf("failed to replay command %s: %w", letter.Command.ID, err)
	}
	return s.Delete(ctx, id)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeadLetter(row scanner) (DeadLetter, error) {
	var (
		letter     DeadLetter
		data       string
		recordedAt int64
	)
	if err := row.Scan(&letter.ID, &data, &letter.Error, &recordedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return DeadLetter{}, err
		}
		return DeadLetter{}, fmt.Errorf("failed to scan dead letter: %w", err)
	}

	var cmd command.Enriched
	if err := json.Unmarshal([]byte(data), &cmd); err != nil {
		return DeadLetter{}, fmt.Errorf("failed to deserialize dead letter %s: %w", letter.ID, err)
	}
	letter.Command = &cmd
	letter.RecordedAt = time.UnixMilli(recordedAt).UTC()
	return letter, nil
}
