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

const collectionParticipants = "participants"

type ParticipantRepository struct {
	col     *mongo.Collection
	timeout time.Duration
}

var _ ports.ParticipantRepository = (*ParticipantRepository)(nil)

func NewParticipantRepository(db *mongo.Database, timeout time.Duration) *ParticipantRepository {
	return &ParticipantRepository{col: db.Collection(collectionParticipants), timeout: operationTimeout(timeout)}
}

// Create inserts a participant. The unique (session_id, display_name) index
// turns a concurrent join under the same name into ErrDuplicateParticipant.
func (r *ParticipantRepository) Create(ctx context.Context, p *domain.Participant) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.col.InsertOne(ctx, p); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateParticipant
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) FindByID(ctx context.Context, id string) (*domain.Participant, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *ParticipantRepository) FindByName(ctx context.Context, sessionID, displayName string) (*domain.Participant, error) {
	return r.findOne(ctx, bson.M{"session_id": sessionID, "display_name": displayName})
}

func (r *ParticipantRepository) findOne(ctx context.Context, filter bson.M) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var p domain.Participant
	if err := r.col.FindOne(ctx, filter).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrParticipantNotFound
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return &p, nil
}

func (r *ParticipantRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	participants := make([]*domain.Participant, 0)
	if err := cur.All(ctx, &participants); err != nil {
		return nil, fmt.Errorf("decode participants: %w", err)
	}
	return participants, nil
}

func (r *ParticipantRepository) CountActive(ctx context.Context, sessionID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	return r.col.CountDocuments(ctx, bson.M{"session_id": sessionID, "status": domain.ParticipantActive})
}

func (r *ParticipantRepository) SetStatus(ctx context.Context, id string, status domain.ParticipantStatus) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("set participant status: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

// TouchSync records the participant's latest successful sync. $max keeps the
// stored value monotonic when batches complete out of order.
func (r *ParticipantRepository) TouchSync(ctx context.Context, id string, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$max": bson.M{"last_sync_at": at.UTC()}})
	if err != nil {
		return fmt.Errorf("touch sync: %w", err)
	}
	return nil
}

func (r *ParticipantRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "display_name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "status", Value: 1}}},
	}

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
