package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/conteo/inventory-sync/internal/core/domain"
	"github.com/conteo/inventory-sync/internal/core/ports"
)

const (
	collectionMovements = "movements"
	duplicateKeyCode    = 11000
)

// MovementRepository is the append-only ledger. Nothing in it updates a
// movement; rows are only inserted, or deleted per session by admin reset
// and retention.
type MovementRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

var _ ports.MovementRepository = (*MovementRepository)(nil)

func NewMovementRepository(db *mongo.Database, timeout time.Duration) *MovementRepository {
	return &MovementRepository{col: db.Collection(collectionMovements), timeout: operationTimeout(timeout)}
}

type movementDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	ClientID      string               `bson:"client_id"`
	SessionID     string               `bson:"session_id"`
	ParticipantID string               `bson:"participant_id"`
	Barcode       string               `bson:"barcode"`
	Quantity      primitive.Decimal128 `bson:"quantity"`
	Location      string               `bson:"location"`
	Timestamp     time.Time            `bson:"timestamp"`
	ReceivedAt    time.Time            `bson:"received_at"`
}

// InsertBatch inserts unordered so one duplicate does not stop the rest of
// the batch. Duplicate-key failures are retries of movements already stored.
func (r *MovementRepository) InsertBatch(ctx context.Context, movements []domain.Movement) (int, error) {
	if len(movements) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, len(movements))
	for i, m := range movements {
		q, err := toDecimal128(m.Quantity)
		if err != nil {
			return 0, fmt.Errorf("movement %s: %w", m.ClientID, err)
		}
		docs[i] = movementDoc{
			ClientID:      m.ClientID,
			SessionID:     m.SessionID,
			ParticipantID: m.ParticipantID,
			Barcode:       m.Barcode,
			Quantity:      q,
			Location:      string(m.Location),
			Timestamp:     m.Timestamp.UTC(),
			ReceivedAt:    m.ReceivedAt.UTC(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.col.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err == nil {
		return len(docs), nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
		return 0, fmt.Errorf("insert movements: %w", err)
	}
	for _, we := range bwe.WriteErrors {
		if we.Code != duplicateKeyCode {
			return 0, fmt.Errorf("insert movements: %w", err)
		}
	}
	return len(docs) - len(bwe.WriteErrors), nil
}

func (r *MovementRepository) ListBySession(ctx context.Context, sessionID string) ([]domain.Movement, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "client_id", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer cur.Close(ctx)

	movements := make([]domain.Movement, 0)
	for cur.Next(ctx) {
		var doc movementDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode movement: %w", err)
		}
		qty, err := fromDecimal128(doc.Quantity)
		if err != nil {
			return nil, fmt.Errorf("movement %s: %w", doc.ClientID, err)
		}
		movements = append(movements, domain.Movement{
			ClientID:      doc.ClientID,
			SessionID:     doc.SessionID,
			ParticipantID: doc.ParticipantID,
			Barcode:       doc.Barcode,
			Quantity:      qty,
			Location:      domain.LocationTag(doc.Location),
			Timestamp:     doc.Timestamp,
			ReceivedAt:    doc.ReceivedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}

func (r *MovementRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{"session_id": sessionID})
}

func (r *MovementRepository) DeleteBySession(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return 0, fmt.Errorf("delete movements: %w", err)
	}
	return res.DeletedCount, nil
}

// EnsureIndexes creates the idempotency index the ledger relies on.
func (r *MovementRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "client_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("encode decimal %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode decimal %s: %w", v, err)
	}
	return d, nil
}
