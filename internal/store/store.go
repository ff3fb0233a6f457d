// Package store persists orders in Postgres and installs the insert trigger
// the change feed listens to.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/sheharzad-developer/daggys-cafe/internal/changefeed"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrDuplicate     = errors.New("order already exists")
	ErrInvalidStatus = errors.New("invalid order status")
)

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Connect opens dsn with gorm and pings it before returning.
func Connect(dsn string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return New(db, logger), nil
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger.Named("store")}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the orders table and installs the trigger that publishes
// inserts on channel.
func (s *Store) Migrate(ctx context.Context, channel, schema string) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&orderModel{}); err != nil {
		return fmt.Errorf("migrate orders: %w", err)
	}
	for _, stmt := range changefeed.TriggerSQL(channel, schema, orderModel{}.TableName()) {
		if err := s.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("install insert trigger: %w", err)
		}
	}
	s.logger.Info("orders schema ready", zap.String("channel", channel))
	return nil
}

// Insert writes a new order row. Status defaults to Pending.
func (s *Store) Insert(ctx context.Context, ev order.Event, email, paymentIntentID string) error {
	row := orderModelFromEvent(ev, email, paymentIntentID)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return s.logError("insert order failed", err, row.ID)
	}
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	res := s.db.WithContext(ctx).Model(&orderModel{}).
		Where("id = ?", strings.TrimSpace(id)).
		Updates(map[string]any{
			"status":     string(status),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return s.logError("update order status failed", res.Error, id)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (order.Event, error) {
	var row orderModel
	err := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return order.Event{}, ErrOrderNotFound
		}
		return order.Event{}, s.logError("get order failed", err, id)
	}
	return row.toEvent(), nil
}

// Recent lists the newest orders first.
func (s *Store) Recent(ctx context.Context, limit int) ([]order.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []orderModel
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, s.logError("list orders failed", err, "")
	}
	out := make([]order.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEvent())
	}
	return out, nil
}

func (s *Store) logError(msg string, err error, id string) error {
	s.logger.Error(msg, zap.String("order", id), zap.Error(err))
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
