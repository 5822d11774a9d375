package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

const collectionCatalog = "catalog_entries"

type CatalogRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

var _ ports.CatalogRepository = (*CatalogRepository)(nil)

func NewCatalogRepository(db *mongo.Database, timeout time.Duration) *CatalogRepository {
	return &CatalogRepository{col: db.Collection(collectionCatalog), timeout: operationTimeout(timeout)}
}

type catalogDoc struct {
	SessionID     string               `bson:"session_id"`
	ProductCode   string               `bson:"product_code"`
	Barcode       *string              `bson:"barcode,omitempty"`
	Description   string               `bson:"description"`
	SystemBalance primitive.Decimal128 `bson:"system_balance"`
}

func (r *CatalogRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.CatalogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "product_code", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	var docs []catalogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	entries := make([]domain.CatalogEntry, 0, len(docs))
	for _, d := range docs {
		balance, err := fromDecimal128(d.SystemBalance)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", d.ProductCode, err)
		}
		entries = append(entries, domain.CatalogEntry{
			SessionID:     d.SessionID,
			ProductCode:   d.ProductCode,
			Barcode:       d.Barcode,
			Description:   d.Description,
			SystemBalance: balance,
		})
	}
	return entries, nil
}

// Replace swaps the whole snapshot inside a transaction, so readers never see
// the catalog half deleted. Standalone servers have no transactions; there the
// swap runs unguarded and the caller's catalog lease keeps finalization out.
func (r *CatalogRepository) Replace(ctx context.Context, sessionID string, entries []domain.CatalogEntry) error {
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		balance, err := toDecimal128(e.SystemBalance)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", e.ProductCode, err)
		}
		docs = append(docs, catalogDoc{
			SessionID:     sessionID,
			ProductCode:   e.ProductCode,
			Barcode:       e.Barcode,
			Description:   e.Description,
			SystemBalance: balance,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.col.Database().Client().StartSession()
	if err != nil {
		return fmt.Errorf("replace catalog: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, r.swap(sc, sessionID, docs)
	})
	if transactionsUnsupported(err) {
		return r.swap(ctx, sessionID, docs)
	}
	return err
}

func (r *CatalogRepository) swap(ctx context.Context, sessionID string, docs []interface{}) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}
	if _, err := r.col.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert catalog: %w", err)
	}
	return nil
}

// illegalOperation is what a standalone mongod answers to a transaction.
const illegalOperation = 20

func transactionsUnsupported(err error) bool {
	var ce mongo.CommandError
	return errors.As(err, &ce) && ce.Code == illegalOperation
}

func (r *CatalogRepository) Clear(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	return nil
}

func (r *CatalogRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "product_code", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
