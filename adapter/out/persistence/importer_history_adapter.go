package persistence

import (
	"context"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"

	"github.com/jmoiron/sqlx"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS import_history (
	id               BIGSERIAL PRIMARY KEY,
	account          TEXT        NOT NULL,
	run_id           TEXT        NOT NULL,
	file_id          TEXT        NOT NULL,
	file_name        TEXT        NOT NULL,
	identifier_type  TEXT        NOT NULL DEFAULT '',
	identifier_value TEXT        NOT NULL DEFAULT '',
	sku_ids          TEXT        NOT NULL DEFAULT '',
	success          BOOLEAN     NOT NULL,
	error_message    TEXT        NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_import_history_account ON import_history (account, created_at DESC);
`

// HistoryAdapter keeps the per-file audit trail in Postgres.
type HistoryAdapter struct {
	db *sqlx.DB
}

func NewHistoryAdapter(db *sqlx.DB) *HistoryAdapter {
	return &HistoryAdapter{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet.
func (a *HistoryAdapter) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, historySchema)
	return err
}

func (a *HistoryAdapter) Record(ctx context.Context, entry *domain.ImportHistoryEntry) error {
	const q = `
		INSERT INTO import_history
			(account, run_id, file_id, file_name, identifier_type, identifier_value, sku_ids, success, error_message, created_at)
		VALUES
			(:account, :run_id, :file_id, :file_name, :identifier_type, :identifier_value, :sku_ids, :success, :error_message, :created_at)`
	_, err := a.db.NamedExecContext(ctx, q, entry)
	return err
}

func (a *HistoryAdapter) ListByAccount(ctx context.Context, account string, limit int) ([]*domain.ImportHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT id, account, run_id, file_id, file_name, identifier_type, identifier_value, sku_ids, success, error_message, created_at
		FROM import_history
		WHERE account = $1
		ORDER BY created_at DESC
		LIMIT $2`
	var entries []*domain.ImportHistoryEntry
	if err := a.db.SelectContext(ctx, &entries, q, account, limit); err != nil {
		return nil, err
	}
	return entries, nil
}

// Ensure HistoryAdapter implements out.ImportHistoryRepository
var _ out.ImportHistoryRepository = (*HistoryAdapter)(nil)
