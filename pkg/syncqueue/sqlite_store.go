package syncqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// queuedMovement is the on-disk row. Seq preserves insertion order across restarts.
type queuedMovement struct {
	Seq       int64           `gorm:"column:seq;primaryKey;autoIncrement"`
	ClientID  string          `gorm:"column:client_id;size:64;not null;uniqueIndex"`
	Barcode   string          `gorm:"column:barcode;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:text;not null"`
	Location  string          `gorm:"column:location;size:16;not null"`
	Timestamp time.Time       `gorm:"column:timestamp;not null"`
}

func (queuedMovement) TableName() string {
	return "queued_movements"
}

// SQLiteStore keeps the queue in a local SQLite file so unsent scans survive
// a restart of the counting client.
type SQLiteStore struct {
	db *gorm.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLiteStore opens (or creates) the queue database at path.
// Use ":memory:" for a throwaway store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}

	// A single connection serialises writers; an in-memory database would
	// otherwise be private to each pooled connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open queue store: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&queuedMovement{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate queue store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, m Movement) error {
	row := queuedMovement{
		ClientID:  m.ClientID,
		Barcode:   m.Barcode,
		Quantity:  m.Quantity,
		Location:  m.Location,
		Timestamp: m.Timestamp.UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append movement: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Pending(ctx context.Context, limit int) ([]Movement, error) {
	q := s.db.WithContext(ctx).Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []queuedMovement
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	out := make([]Movement, 0, len(rows))
	for _, r := range rows {
		out = append(out, Movement{
			ClientID:  r.ClientID,
			Barcode:   r.Barcode,
			Quantity:  r.Quantity,
			Location:  r.Location,
			Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, clientIDs []string) error {
	if len(clientIDs) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Where("client_id IN ?", clientIDs).Delete(&queuedMovement{}).Error; err != nil {
		return fmt.Errorf("remove confirmed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&queuedMovement{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return int(n), nil
}
