package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fawkesdbs/app-dt-lesira/config"
	"github.com/fawkesdbs/app-dt-lesira/internal/event"
	"github.com/fawkesdbs/app-dt-lesira/internal/model"
)

// Init opens the configured database, applies connection pool settings and
// runs migrations for every table the service owns.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := open(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.DowntimeEvent{},
		&model.OperatorEvent{},
		&model.PushSubscription{},
		&model.Operator{},
		&model.DowntimeReason{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func open(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	case config.DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case config.DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// LoadOperators reads the operator badge-ID to display-name table.
func LoadOperators(db *gorm.DB) (map[string]string, error) {
	var rows []model.Operator
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load operators: %w", err)
	}
	operators := make(map[string]string, len(rows))
	for _, row := range rows {
		operators[row.OperatorID] = row.OperatorName
	}
	return operators, nil
}

// LoadReasons reads the downtime reason-to-category table.
func LoadReasons(db *gorm.DB) (event.CategoryMap, error) {
	var rows []model.DowntimeReason
	if err := db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load downtime reasons: %w", err)
	}
	reasons := make(event.CategoryMap, len(rows))
	for _, row := range rows {
		reasons[row.EventName] = row.EventCategory
	}
	return reasons, nil
}
