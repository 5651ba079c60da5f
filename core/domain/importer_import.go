package domain

import "time"

// SkuUpdateResult records one leg of the per-SKU fan-out.
type SkuUpdateResult struct {
	SkuID   string `json:"sku_id"`
	Updated bool   `json:"updated"`
	Error   string `json:"error,omitempty"`
}

// ImportOutcome aggregates the result of importing a single file. It
// decides the destination folder: Done when Success, Error otherwise.
// Partial fan-out success still routes to Error; the per-SKU results
// keep what actually happened observable.
type ImportOutcome struct {
	FileID         string            `json:"file_id"`
	FileName       string            `json:"file_name"`
	Success        bool              `json:"success"`
	ResolvedSkuIDs []string          `json:"resolved_sku_ids,omitempty"`
	SkuResults     []SkuUpdateResult `json:"sku_results,omitempty"`
	Error          string            `json:"error,omitempty"`
}

// ImportRunReport summarizes one orchestrator run over the New folder.
type ImportRunReport struct {
	ID         string          `json:"id"`
	Account    string          `json:"account"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Processed  int             `json:"processed"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Outcomes   []ImportOutcome `json:"outcomes"`
}

// ImportHistoryEntry is the per-file audit row kept in Postgres.
type ImportHistoryEntry struct {
	ID              int64     `db:"id" json:"id"`
	Account         string    `db:"account" json:"account"`
	RunID           string    `db:"run_id" json:"run_id"`
	FileID          string    `db:"file_id" json:"file_id"`
	FileName        string    `db:"file_name" json:"file_name"`
	IdentifierType  string    `db:"identifier_type" json:"identifier_type"`
	IdentifierValue string    `db:"identifier_value" json:"identifier_value"`
	SkuIDs          string    `db:"sku_ids" json:"sku_ids"`
	Success         bool      `db:"success" json:"success"`
	ErrorMessage    string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
