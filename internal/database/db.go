package database

import (
	"fmt"
	"time"

	"retailpos/internal/config"
	"retailpos/internal/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewConnection initializes a new connection pool using GORM
func NewConnection(cfg config.PostgresConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := Open(postgres.Open(cfg.DSN()))
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		log.Warn("failed to auto-migrate models", zap.Error(err))
	}

	return db, nil
}

// Open configures gorm the same way for every dialector. Times are stored in
// UTC so expiry comparisons are stable across terminals.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the schema of every core table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Branch{},
		&model.Product{},
		&model.ProductBarcode{},
		&model.StockLevel{},
		&model.ProductMovement{},
		&model.SaleTransaction{},
		&model.SaleTransactionItem{},
		&model.PurchaseInvoice{},
		&model.PurchaseInvoiceItem{},
		&model.HeldCart{},
		&model.AuditLog{},
	)
}
