package database

import (
	"fmt"

	"restaurant_order/config"
	"restaurant_order/model"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func DSN(s config.Settings) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		s.DBHost, s.DBPort, s.DBUser, s.DBPassword, s.DBName)
}

// ConnectDB opens postgres and migrates the ordering schema.
func ConnectDB(s config.Settings, log *zap.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if s.IsProduction() {
		level = gormlogger.Error
	}
	db, err := gorm.Open(postgres.Open(DSN(s)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("connection opened to database", zap.String("host", s.DBHost), zap.String("db", s.DBName))

	if err := Migrate(db); err != nil {
		return nil, err
	}
	log.Info("database migrated")
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Table{},
		&model.CustomerSession{},
		&model.Order{},
		&model.OrderCounter{},
		&model.Payment{},
		&model.PaymentEvent{},
	); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
