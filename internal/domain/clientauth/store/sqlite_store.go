package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ManuGH/clientauth/internal/domain/clientauth/model"
	"github.com/ManuGH/clientauth/internal/persistence/sqlite"
)

var sqliteMigrations = []sqlite.Migration{
	{Version: 1, SQL: `
	CREATE TABLE IF NOT EXISTS flows (
		flow_id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		phase TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		remediation TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		started_at_ms INTEGER NOT NULL,
		ended_at_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_flows_account_ended ON flows(account_id, ended_at_ms DESC);
	`},
}

// SqliteStore implements FlowRecordStore using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore opens (and migrates) the flow history database at dbPath.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if dbPath == "" {
		return nil, errors.New("flow store: sqlite backend requires a path")
	}
	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	if err := sqlite.Migrate(context.Background(), db, sqliteMigrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("flow store: migration failed: %w", err)
	}
	return &SqliteStore{DB: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

// Verify runs a quick integrity check.
func (s *SqliteStore) Verify(ctx context.Context) ([]string, error) {
	return sqlite.VerifyIntegrity(ctx, s.DB, "quick")
}

func (s *SqliteStore) PutFlow(ctx context.Context, rec model.FlowSnapshot) error {
	if err := validate(rec); err != nil {
		return err
	}
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO flows (flow_id, account_id, phase, kind, remediation, detail, started_at_ms, ended_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(flow_id) DO UPDATE SET
			phase = excluded.phase,
			kind = excluded.kind,
			remediation = excluded.remediation,
			detail = excluded.detail,
			ended_at_ms = excluded.ended_at_ms`,
		rec.FlowID, string(rec.AccountID), string(rec.Phase), string(rec.Kind), string(rec.Remediation), rec.Detail,
		rec.StartedAt.UnixMilli(), rec.EndedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put flow %s: %w", rec.FlowID, err)
	}
	return nil
}

func (s *SqliteStore) LastFlow(ctx context.Context, account model.AccountID) (model.FlowSnapshot, bool, error) {
	list, err := s.ListFlows(ctx, account, 1)
	if err != nil || len(list) == 0 {
		return model.FlowSnapshot{}, false, err
	}
	return list[0], true, nil
}

func (s *SqliteStore) ListFlows(ctx context.Context, account model.AccountID, limit int) ([]model.FlowSnapshot, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT flow_id, account_id, phase, kind, remediation, detail, started_at_ms, ended_at_ms
		FROM flows WHERE account_id = ?
		ORDER BY ended_at_ms DESC, flow_id DESC
		LIMIT ?`, string(account), normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var out []model.FlowSnapshot
	for rows.Next() {
		var (
			rec                model.FlowSnapshot
			acc, phase, kind   string
			remediation        string
			startedMS, endedMS int64
		)
		if err := rows.Scan(&rec.FlowID, &acc, &phase, &kind, &remediation, &rec.Detail, &startedMS, &endedMS); err != nil {
			return nil, fmt.Errorf("scan flow: %w", err)
		}
		rec.AccountID = model.AccountID(acc)
		rec.Phase = model.FlowPhase(phase)
		rec.Kind = model.ErrorKind(kind)
		rec.Remediation = model.Remediation(remediation)
		rec.StartedAt = time.UnixMilli(startedMS).UTC()
		rec.EndedAt = time.UnixMilli(endedMS).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
