package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

const collectionReports = "reports"

// ReportRepository stores saved reports. Reports are written once and never updated.
type ReportRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

func NewReportRepository(db *mongo.Database, timeout time.Duration) *ReportRepository {
	return &ReportRepository{col: db.Collection(collectionReports), timeout: operationTimeout(timeout)}
}

func (r *ReportRepository) Create(ctx context.Context, rep *domain.SavedReport) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, rep); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrReportExists
		}
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *ReportRepository) FindByID(ctx context.Context, id string) (*domain.SavedReport, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ReportRepository) FindBySession(ctx context.Context, sessionID string) (*domain.SavedReport, error) {
	return r.findOne(ctx, bson.M{"session_id": sessionID})
}

func (r *ReportRepository) findOne(ctx context.Context, filter bson.M) (*domain.SavedReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var rep domain.SavedReport
	if err := r.col.FindOne(ctx, filter).Decode(&rep); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	return &rep, nil
}

// ListByOwner returns report metadata, newest first. Content is not loaded.
func (r *ReportRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domain.SavedReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetProjection(bson.M{"content": 0})
	cur, err := r.col.Find(ctx, bson.M{"owner_id": ownerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	reports := make([]*domain.SavedReport, 0)
	if err := cur.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode reports: %w", err)
	}
	return reports, nil
}

// EnsureIndexes creates the one-report-per-session index.
func (r *ReportRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
