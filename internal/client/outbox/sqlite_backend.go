package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/solvesync/internal/db"
	"github.com/openmined/solvesync/internal/mutation"
)

const schema = `
CREATE TABLE IF NOT EXISTS offline_mutations (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    mutation_name TEXT NOT NULL,
    variables BLOB NOT NULL,
    timestamp TEXT NOT NULL, -- RFC3339Nano
    retry_count INTEGER NOT NULL DEFAULT 0
);
`

// dbQueued is used for scanning rows where time is stored as TEXT.
type dbQueued struct {
	Seq          int64  `db:"seq"`
	ID           string `db:"id"`
	MutationName string `db:"mutation_name"`
	Variables    []byte `db:"variables"`
	Timestamp    string `db:"timestamp"`
	RetryCount   int    `db:"retry_count"`
}

func (r *dbQueued) toQueued() (*mutation.Queued, error) {
	ts, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("parse timestamp for %s: %w", r.ID, err)
	}
	return &mutation.Queued{
		ID:         r.ID,
		Name:       mutation.Kind(r.MutationName),
		Variables:  mutation.RawJSON(r.Variables),
		Timestamp:  ts,
		RetryCount: r.RetryCount,
	}, nil
}

// SqliteBackend is the primary durable store.
type SqliteBackend struct {
	db     *sqlx.DB
	dbPath string
}

// OpenSqliteBackend opens (or creates) the outbox database at dbPath.
func OpenSqliteBackend(dbPath string) (*SqliteBackend, error) {
	conn, err := db.NewSqliteDB(
		db.WithPath(dbPath),
		db.WithMaxOpenConns(1),
		db.WithMigrations(schema),
	)
	if err != nil {
		return nil, fmt.Errorf("open outbox db: %w", err)
	}
	return &SqliteBackend{db: conn, dbPath: dbPath}, nil
}

// NewSqliteBackend wraps an already open connection and ensures the schema.
func NewSqliteBackend(conn *sqlx.DB) (*SqliteBackend, error) {
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("init outbox schema: %w", err)
	}
	return &SqliteBackend{db: conn}, nil
}

func (b *SqliteBackend) Add(ctx context.Context, q *mutation.Queued) error {
	_, err := b.db.ExecContext(ctx,
		`INSERT INTO offline_mutations (id, mutation_name, variables, timestamp, retry_count) VALUES (?, ?, ?, ?, ?)`,
		q.ID, string(q.Name), []byte(q.Variables), q.Timestamp.UTC().Format(time.RFC3339Nano), q.RetryCount,
	)
	if err != nil {
		return fmt.Errorf("add %s: %w", q.ID, err)
	}
	return nil
}

func (b *SqliteBackend) GetAll(ctx context.Context) ([]*mutation.Queued, error) {
	var rows []dbQueued
	err := b.db.SelectContext(ctx, &rows, `SELECT seq, id, mutation_name, variables, timestamp, retry_count FROM offline_mutations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("get all: %w", err)
	}

	items := make([]*mutation.Queued, 0, len(rows))
	for i := range rows {
		q, err := rows[i].toQueued()
		if err != nil {
			slog.Error("outbox skip corrupt row", "id", rows[i].ID, "error", err)
			continue
		}
		items = append(items, q)
	}
	return items, nil
}

func (b *SqliteBackend) Get(ctx context.Context, id string) (*mutation.Queued, error) {
	var row dbQueued
	err := b.db.GetContext(ctx, &row, `SELECT seq, id, mutation_name, variables, timestamp, retry_count FROM offline_mutations WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return row.toQueued()
}

func (b *SqliteBackend) Put(ctx context.Context, q *mutation.Queued) error {
	res, err := b.db.ExecContext(ctx,
		`UPDATE offline_mutations SET mutation_name = ?, variables = ?, timestamp = ?, retry_count = ? WHERE id = ?`,
		string(q.Name), []byte(q.Variables), q.Timestamp.UTC().Format(time.RFC3339Nano), q.RetryCount, q.ID,
	)
	if err != nil {
		return fmt.Errorf("put %s: %w", q.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *SqliteBackend) Delete(ctx context.Context, id string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM offline_mutations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (b *SqliteBackend) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM offline_mutations`); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

func (b *SqliteBackend) Count(ctx context.Context) (int, error) {
	var count int
	if err := b.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM offline_mutations`); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return count, nil
}

// Close closes the underlying database connection.
func (b *SqliteBackend) Close() error {
	if err := b.db.Close(); err != nil {
		slog.Error("outbox db close", "error", err)
		return err
	}
	slog.Debug("outbox db closed", "path", b.dbPath)
	return nil
}

var _ Backend = (*SqliteBackend)(nil)
