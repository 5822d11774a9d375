package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	defaultTimeout = 10 * time.Second
	appName        = "counting-sync"
)

// Config holds the connection settings for the ledger database.
type Config struct {
	URI         string
	Database    string
	MaxPoolSize uint64
	Timeout     time.Duration
}

// Connect opens the client with majority writes, so an acknowledged
// movement batch survives a primary failover, and pings before returning.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(appName).
		SetServerSelectionTimeout(timeout).
		SetWriteConcern(writeconcern.Majority())
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(cfg.Database), nil
}

// Repositories groups every collection adapter over one database.
type Repositories struct {
	Sessions     *SessionRepository
	Participants *ParticipantRepository
	Movements    *MovementRepository
	Catalog      *CatalogRepository
	Reports      *ReportRepository
}

// NewRepositories builds every adapter with the same per-operation timeout.
// A zero timeout uses defaultTimeout.
func NewRepositories(db *mongo.Database, opTimeout time.Duration) *Repositories {
	return &Repositories{
		Sessions:     NewSessionRepository(db, opTimeout),
		Participants: NewParticipantRepository(db, opTimeout),
		Movements:    NewMovementRepository(db, opTimeout),
		Catalog:      NewCatalogRepository(db, opTimeout),
		Reports:      NewReportRepository(db, opTimeout),
	}
}

func operationTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTimeout
	}
	return d
}

// EnsureIndexes creates the indexes of every collection. The unique ones
// back idempotent sync, one report per session and name-based rejoin.
func (r *Repositories) EnsureIndexes(ctx context.Context) error {
	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{collectionSessions, r.Sessions.EnsureIndexes},
		{collectionParticipants, r.Participants.EnsureIndexes},
		{collectionMovements, r.Movements.EnsureIndexes},
		{collectionCatalog, r.Catalog.EnsureIndexes},
		{collectionReports, r.Reports.EnsureIndexes},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("ensure %s indexes: %w", s.name, err)
		}
	}
	return nil
}
