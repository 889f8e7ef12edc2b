package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	yamlv3 "gopkg.in/yaml.v3"
)

// DefaultSnapshotHistory is how many saved snapshots SQLitePersister keeps.
const DefaultSnapshotHistory = 20

// SQLitePersister keeps an append-only history of settings snapshots in a
// SQLite database. The newest row is the persisted state.
type SQLitePersister struct {
	db      *sql.DB
	history int
}

// Record is one stored settings snapshot.
type Record struct {
	ID            int64     `json:"id"`
	SchemaVersion string    `json:"schema_version"`
	SavedAt       time.Time `json:"saved_at"`
}

// OpenSQLitePersister opens (or creates) the database at dsn.
func OpenSQLitePersister(ctx context.Context, dsn string) (*SQLitePersister, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	p := &SQLitePersister{db: db, history: DefaultSnapshotHistory}
	if err := p.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

func (p *SQLitePersister) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		schema_version TEXT NOT NULL,
		body TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);`
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init settings schema: %w", err)
	}
	return nil
}

// Load returns the newest snapshot, or nil when the table is empty.
func (p *SQLitePersister) Load(ctx context.Context) (map[string]any, error) {
	var body string
	err := p.db.QueryRowContext(ctx,
		`SELECT body FROM settings_snapshots ORDER BY id DESC LIMIT 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query settings snapshot: %w", err)
	}

	var out map[string]any
	if err := yamlv3.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decode settings snapshot: %w", err)
	}
	return out, nil
}

// Save appends s as the newest snapshot and prunes old history.
func (p *SQLitePersister) Save(ctx context.Context, s Settings) error {
	body, err := yamlv3.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO settings_snapshots (schema_version, body, saved_at) VALUES (?, ?, ?)`,
		s.SchemaVersion, string(body), time.Now().UTC()); err != nil {
		return fmt.Errorf("insert settings snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM settings_snapshots WHERE id NOT IN (
			SELECT id FROM settings_snapshots ORDER BY id DESC LIMIT ?)`, p.history); err != nil {
		return fmt.Errorf("prune settings history: %w", err)
	}
	return tx.Commit()
}

// History lists stored snapshots, newest first.
func (p *SQLitePersister) History(ctx context.Context) ([]Record, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, schema_version, saved_at FROM settings_snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query settings history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.SchemaVersion, &r.SavedAt); err != nil {
			return nil, fmt.Errorf("scan settings history: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (p *SQLitePersister) Close() error {
	return p.db.Close()
}
