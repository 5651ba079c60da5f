package mongodb

import (
	"context"
	"fmt"
	"time"

	"drive_import_server/core/domain"
	"drive_import_server/core/port/out"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionRuns = "import_runs"

// ReportAdapter implements out.ImportReportRepository using MongoDB.
// Reports expire through a TTL index so the collection stays bounded.
type ReportAdapter struct {
	collection *mongo.Collection
	ttl        time.Duration
}

// NewReportAdapter creates a MongoDB report adapter. ttl controls how
// long a run report is kept.
func NewReportAdapter(db *mongo.Database, ttl time.Duration) *ReportAdapter {
	return &ReportAdapter{
		collection: db.Collection(collectionRuns),
		ttl:        ttl,
	}
}

// EnsureIndexes creates the collection indexes.
func (a *ReportAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "account", Value: 1},
				{Key: "started_at", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// runDocument is the MongoDB document for one run report.
type runDocument struct {
	ID         string                 `bson:"id"`
	Account    string                 `bson:"account"`
	StartedAt  time.Time              `bson:"started_at"`
	FinishedAt time.Time              `bson:"finished_at"`
	Processed  int                    `bson:"processed"`
	Succeeded  int                    `bson:"succeeded"`
	Failed     int                    `bson:"failed"`
	Outcomes   []domain.ImportOutcome `bson:"outcomes"`
	ExpiresAt  time.Time              `bson:"expires_at"`
}

func (a *ReportAdapter) toDocument(report *domain.ImportRunReport) *runDocument {
	return &runDocument{
		ID:         report.ID,
		Account:    report.Account,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Processed:  report.Processed,
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		Outcomes:   report.Outcomes,
		ExpiresAt:  report.FinishedAt.Add(a.ttl),
	}
}

func toReport(doc *runDocument) *domain.ImportRunReport {
	return &domain.ImportRunReport{
		ID:         doc.ID,
		Account:    doc.Account,
		StartedAt:  doc.StartedAt,
		FinishedAt: doc.FinishedAt,
		Processed:  doc.Processed,
		Succeeded:  doc.Succeeded,
		Failed:     doc.Failed,
		Outcomes:   doc.Outcomes,
	}
}

// SaveRun upserts a run report.
func (a *ReportAdapter) SaveRun(ctx context.Context, report *domain.ImportRunReport) error {
	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"id": report.ID}

	if _, err := a.collection.ReplaceOne(ctx, filter, a.toDocument(report), opts); err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}
	return nil
}

// GetRun retrieves one run report. Missing reports come back nil.
func (a *ReportAdapter) GetRun(ctx context.Context, account, runID string) (*domain.ImportRunReport, error) {
	var doc runDocument
	filter := bson.M{"id": runID, "account": account}

	err := a.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}
	return toReport(&doc), nil
}

// ListRuns returns the most recent run reports for the account.
func (a *ReportAdapter) ListRuns(ctx context.Context, account string, limit int) ([]*domain.ImportRunReport, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := a.collection.Find(ctx, bson.M{"account": account}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list run reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []*domain.ImportRunReport
	for cursor.Next(ctx) {
		var doc runDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode run report: %w", err)
		}
		reports = append(reports, toReport(&doc))
	}
	return reports, cursor.Err()
}

// Ensure ReportAdapter implements out.ImportReportRepository
var _ out.ImportReportRepository = (*ReportAdapter)(nil)
