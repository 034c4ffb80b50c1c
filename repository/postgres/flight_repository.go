package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/wanderwise/wanderwise/config"
	"github.com/wanderwise/wanderwise/model"
	"github.com/wanderwise/wanderwise/repository"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const saveBatchSize = 100

type PostgresFlightRepository struct {
	db *gorm.DB
}

func NewFlightRepository(cfg *config.Database) (*PostgresFlightRepository, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)

	// Auto-migrate the flights table
	if err := db.AutoMigrate(&model.FlightRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresFlightRepository{db: db}, nil
}

// SaveFlights inserts one history row per offer.
func (r *PostgresFlightRepository) SaveFlights(ctx context.Context, flights []model.Flight) error {
	if len(flights) == 0 {
		return nil
	}

	records := make([]model.FlightRecord, 0, len(flights))
	for _, f := range flights {
		record, err := model.NewFlightRecord(f)
		if err != nil {
			return fmt.Errorf("failed to build flight record %s: %w", f.ID, err)
		}
		records = append(records, record)
	}

	if err := r.db.WithContext(ctx).CreateInBatches(&records, saveBatchSize).Error; err != nil {
		return fmt.Errorf("failed to save flights: %w", err)
	}
	return nil
}

func (r *PostgresFlightRepository) AveragePrice(ctx context.Context, origin, destination string) (float64, error) {
	avg, err := r.priceAggregate(ctx, "AVG(price)", origin, destination)
	if err != nil {
		return 0, fmt.Errorf("failed to get average price: %w", err)
	}
	return roundCents(avg), nil
}

func (r *PostgresFlightRepository) LowestPrice(ctx context.Context, origin, destination string) (float64, error) {
	lowest, err := r.priceAggregate(ctx, "MIN(price)", origin, destination)
	if err != nil {
		return 0, fmt.Errorf("failed to get lowest price: %w", err)
	}
	return lowest, nil
}

func (r *PostgresFlightRepository) priceAggregate(ctx context.Context, expr, origin, destination string) (float64, error) {
	var result sql.NullFloat64
	err := r.db.WithContext(ctx).
		Model(&model.FlightRecord{}).
		Select(expr).
		Where("origin_location_code = ? AND destination_location_code = ?", origin, destination).
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	if !result.Valid {
		return 0, repository.ErrNoHistory
	}
	return result.Float64, nil
}

func (r *PostgresFlightRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
