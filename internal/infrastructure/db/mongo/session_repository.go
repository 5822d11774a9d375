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

const collectionSessions = "sessions"

// SessionRepository implements ports.SessionRepository using MongoDB. All
// lifecycle changes are single-document conditional updates.
type SessionRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

var _ ports.SessionRepository = (*SessionRepository)(nil)

func NewSessionRepository(db *mongo.Database, timeout time.Duration) *SessionRepository {
	return &SessionRepository{col: db.Collection(collectionSessions), timeout: operationTimeout(timeout)}
}

func (r *SessionRepository) Create(ctx context.Context, s *domain.Session) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateAccessCode
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) FindByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *SessionRepository) FindByAccessCode(ctx context.Context, code string) (*domain.Session, error) {
	return r.findOne(ctx, bson.M{"access_code": code})
}

func (r *SessionRepository) FindOpenPersonal(ctx context.Context, hostID string) (*domain.Session, error) {
	return r.findOne(ctx, bson.M{
		"host_id": hostID,
		"mode":    domain.ModeIndividual,
		"status":  domain.SessionOpen,
	})
}

func (r *SessionRepository) findOne(ctx context.Context, filter bson.M) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var s domain.Session
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &s, nil
}

// ListByHost returns the host's sessions, newest first.
func (r *SessionRepository) ListByHost(ctx context.Context, hostID string) ([]*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := r.col.Find(ctx, bson.M{"host_id": hostID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]*domain.Session, 0)
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	return sessions, nil
}

// CountOpenByHost counts open shared sessions. Personal sessions are exempt from quotas.
func (r *SessionRepository) CountOpenByHost(ctx context.Context, hostID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{
		"host_id": hostID,
		"mode":    domain.ModeMultiplayer,
		"status":  domain.SessionOpen,
	})
}

func (r *SessionRepository) CountCreatedSince(ctx context.Context, hostID string, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{
		"host_id":    hostID,
		"mode":       domain.ModeMultiplayer,
		"created_at": bson.M{"$gte": since.UTC()},
	})
}

// AcquireWrite takes a write lease. The filter and the increment are applied
// atomically, so no lease is granted once the session left OPEN or while a
// catalog edit holds it. The first lease freezes the catalog.
func (r *SessionRepository) AcquireWrite(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": domain.SessionOpen, "catalog_editing": bson.M{"$ne": true}},
		bson.M{
			"$inc": bson.M{"inflight_writes": 1},
			"$set": bson.M{"counting_started": true},
		},
	)
	if err != nil {
		return false, fmt.Errorf("acquire write: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *SessionRepository) ReleaseWrite(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "inflight_writes": bson.M{"$gt": 0}},
		bson.M{"$inc": bson.M{"inflight_writes": -1}},
	)
	if err != nil {
		return fmt.Errorf("release write: %w", err)
	}
	return nil
}

func (r *SessionRepository) InflightWrites(ctx context.Context, id string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var doc struct {
		InflightWrites int64 `bson:"inflight_writes"`
	}
	opts := options.FindOne().SetProjection(bson.M{"inflight_writes": 1})
	if err := r.col.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, domain.ErrSessionNotFound
		}
		return 0, fmt.Errorf("inflight writes: %w", err)
	}
	return doc.InflightWrites, nil
}

// AcquireCatalogEdit takes the exclusive catalog lease. It counts as an
// in-flight write, so finalization drains it like a movement batch.
func (r *SessionRepository) AcquireCatalogEdit(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"_id":              id,
			"status":           domain.SessionOpen,
			"counting_started": bson.M{"$ne": true},
			"catalog_editing":  bson.M{"$ne": true},
		},
		bson.M{
			"$inc": bson.M{"inflight_writes": 1},
			"$set": bson.M{"catalog_editing": true},
		},
	)
	if err != nil {
		return false, fmt.Errorf("acquire catalog edit: %w", err)
	}
	return res.MatchedCount == 1, nil
}

func (r *SessionRepository) ReleaseCatalogEdit(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "catalog_editing": true},
		bson.M{
			"$inc": bson.M{"inflight_writes": -1},
			"$set": bson.M{"catalog_editing": false},
		},
	)
	if err != nil {
		return fmt.Errorf("release catalog edit: %w", err)
	}
	return nil
}

// ResetCounting unfreezes the catalog after an admin ledger reset. It only
// applies while no writer holds a lease.
func (r *SessionRepository) ResetCounting(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id, "inflight_writes": bson.M{"$lte": 0}},
		bson.M{"$set": bson.M{"counting_started": false}},
	)
	if err != nil {
		return false, fmt.Errorf("reset counting: %w", err)
	}
	return res.MatchedCount == 1, nil
}

// Transition applies from -> to only when the stored status is still `from`.
func (r *SessionRepository) Transition(ctx context.Context, id string, from, to domain.SessionStatus, at time.Time) (bool, error) {
	if !from.CanTransitionTo(to) {
		return false, fmt.Errorf("transition %s -> %s is not allowed", from, to)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	set := bson.M{"status": to}
	switch to {
	case domain.SessionClosing:
		set["closing_at"] = at.UTC()
	case domain.SessionFinalized:
		set["finalized_at"] = at.UTC()
	}

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id, "status": from}, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("transition session: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (r *SessionRepository) SetReportID(ctx context.Context, id, reportID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"report_id": reportID}})
	if err != nil {
		return fmt.Errorf("set report id: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) ListPurgeable(ctx context.Context, before time.Time, limit int) ([]*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	filter := bson.M{
		"status":              domain.SessionFinalized,
		"finalized_at":        bson.M{"$lt": before.UTC()},
		"movements_purged_at": bson.M{"$exists": false},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "finalized_at", Value: 1}}).
		SetLimit(int64(limit))

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list purgeable: %w", err)
	}
	sessions := make([]*domain.Session, 0)
	if err := cur.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("decode purgeable: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) MarkMovementsPurged(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"movements_purged_at": at.UTC()}})
	if err != nil {
		return fmt.Errorf("mark purged: %w", err)
	}
	return nil
}

// EnsureIndexes creates necessary indexes on the sessions collection.
func (r *SessionRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "access_code", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "host_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "finalized_at", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
