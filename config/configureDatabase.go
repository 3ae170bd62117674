package config

import (
	"fmt"
	"time"

	"welfare-receipts-backend/db/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels defines all models that should be migrated.
// This is the only place you need to add new models
var allModels = []interface{}{
	// Upload stage
	&models.UploadedBatch{},
	&models.RawUploadRecord{},

	// Ledger and receipts
	&models.WorkerPayment{},
	&models.WorkerPaymentReceipt{},
	&models.EmployerPaymentReceipt{},
	&models.BoardReceipt{},

	// Saga bookkeeping
	&models.LinkageAnomaly{},
}

// AllModels returns the migration list, used by the test database helper
func AllModels() []interface{} {
	return allModels
}

func ConfigureDatabase() *gorm.DB {
	host := GetEnv("DB_HOST")
	user := GetEnv("POSTGRES_USER")
	password := GetEnv("POSTGRES_PASSWORD")
	dbname := GetEnv("POSTGRES_DB")
	port := GetEnvOrDefault("DB_PORT", "5432")
	timezone := GetEnvOrDefault("DB_TIMEZONE", "Asia/Kolkata")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		host, user, password, dbname, port, timezone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		Logger.Fatal("[DB-CONNECT] Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		Logger.Fatal("failed to migrate tables", zap.Error(err))
	}
	Logger.Info("Tables migrated successfully")

	if err := RunExtraMigrations(db); err != nil {
		Logger.Fatal("failed to run extra migrations", zap.Error(err))
	}

	// Connection pool configuration
	sqlDB, err := db.DB()
	if err != nil {
		Logger.Fatal("[DB-POOL] Failed to get underlying DB connection", zap.Error(err))
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	Logger.Info("[DB-STATUS] Database setup complete")
	return db
}
