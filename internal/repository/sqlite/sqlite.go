package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"capscan/internal/domain"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Repository implements repository.Repository using SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Run describes one saved snapshot
type Run struct {
	ID        string
	Cloud     string
	CreatedAt time.Time
	Counts    map[domain.ResourceType]int
}

// Total returns the number of records saved by the run
func (r Run) Total() int {
	n := 0
	for _, c := range r.Counts {
		n += c
	}
	return n
}

// New opens (creating if needed) the database at dbPath
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
	}

	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		cloud TEXT NOT NULL,
		type TEXT NOT NULL,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tenant_id TEXT,
		data JSON NOT NULL,
		run_id TEXT NOT NULL,
		PRIMARY KEY (cloud, type, id)
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		cloud TEXT NOT NULL,
		counts JSON NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_cloud_seq ON records(cloud, seq);
	CREATE INDEX IF NOT EXISTS idx_records_tenant ON records(cloud, tenant_id);
	CREATE INDEX IF NOT EXISTS idx_runs_cloud ON runs(cloud, created_at);
	`

	_, err := r.db.Exec(schema)
	return err
}

// SaveSnapshot replaces every stored record of cloud with records and
// returns the new run id
func (r *Repository) SaveSnapshot(ctx context.Context, cloud string, records []domain.Record) (string, error) {
	runID := uuid.NewString()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE cloud = ?`, cloud); err != nil {
		return "", fmt.Errorf("failed to clear records: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (cloud, type, id, seq, tenant_id, data, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cloud, type, id) DO UPDATE SET
			data = excluded.data,
			tenant_id = excluded.tenant_id
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare record statement: %w", err)
	}
	defer stmt.Close()

	counts := make(map[domain.ResourceType]int)
	for seq, rec := range records {
		row, err := newRecordRow(rec, seq)
		if err != nil {
			return "", err
		}
		if row.Cloud != cloud {
			return "", fmt.Errorf("record %s does not belong to cloud %q", rec.ObjectID(), cloud)
		}
		if _, err := stmt.ExecContext(ctx, row.insertArgs(runID)...); err != nil {
			return "", fmt.Errorf("failed to insert record %s: %w", rec.ObjectID(), err)
		}
		counts[rec.ObjectID().Type]++
	}

	countsJSON, err := marshalToNull(counts)
	if err != nil {
		return "", fmt.Errorf("failed to marshal run counts: %w", err)
	}
	if !countsJSON.Valid {
		countsJSON = sql.NullString{String: "{}", Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, cloud, counts, created_at) VALUES (?, ?, ?, ?)
	`, runID, cloud, countsJSON, r.now().UTC()); err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return runID, nil
}

// LoadSnapshot returns the stored records of cloud in the order they were saved
func (r *Repository) LoadSnapshot(ctx context.Context, cloud string) ([]domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM records WHERE cloud = ?
		ORDER BY seq
	`, cloud)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var row recordRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}

	return records, nil
}

// LastRun returns the most recent run saved for cloud, or nil if none
func (r *Repository) LastRun(ctx context.Context, cloud string) (*Run, error) {
	var (
		run    Run
		counts sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, cloud, counts, created_at
		FROM runs WHERE cloud = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, cloud).Scan(&run.ID, &run.Cloud, &counts, &run.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	run.Counts = make(map[domain.ResourceType]int)
	if err := unmarshalJSONField(counts, &run.Counts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run counts: %w", err)
	}
	return &run, nil
}

// Clouds returns every cloud with saved records
func (r *Repository) Clouds(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT cloud FROM records ORDER BY cloud`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clouds: %w", err)
	}
	defer rows.Close()

	var clouds []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan cloud: %w", err)
		}
		clouds = append(clouds, c)
	}
	return clouds, rows.Err()
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}
