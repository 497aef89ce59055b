package database

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/h4ks-com/fieldops/internal/indicators"
	"github.com/h4ks-com/fieldops/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type Options struct {
	URL             string
	MaxOpen         int
	MaxIdle         int
	ConnMaxLifetime time.Duration
	Debug           bool
}

func Connect(databaseURL string) (*gorm.DB, error) {
	return Open(Options{URL: databaseURL})
}

func Open(opts Options) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	config := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}
	if opts.Debug {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	memory := false
	switch {
	case opts.URL == "" || opts.URL == ":memory:" || opts.URL == "sqlite::memory:":
		memory = true
		db, err = gorm.Open(sqlite.Open("file::memory:"), config)
	case strings.HasPrefix(opts.URL, "sqlite:"):
		dbPath := strings.TrimPrefix(opts.URL, "sqlite:")
		dbPath = dbPath + "?_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"
		db, err = gorm.Open(sqlite.Open(dbPath), config)
	default:
		db, err = gorm.Open(postgres.Open(opts.URL), config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}

	// every new connection to :memory: opens a separate empty database
	if memory {
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}

	if opts.MaxOpen > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpen)
	}
	if opts.MaxIdle > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdle)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	slog.Debug("running database migrations")

	err := db.AutoMigrate(
		&models.User{},
		&models.APIToken{},
		&models.ActivityType{},
		&models.Plot{},
		&models.Campaign{},
		&models.Period{},
		&models.InventoryItem{},
		&models.Task{},
		&models.TaskAssignment{},
		&models.TaskStateLog{},
		&models.TaskRequirement{},
		&models.TaskConsumable{},
		&models.InventoryMovement{},
		&models.InventoryReservation{},
		&models.ToolLoan{},
		&models.HarvestRecord{},
		&models.HarvestClassification{},
		&models.HarvestRejection{},
		&models.PostHarvestDetail{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := seedActivityTypes(db); err != nil {
		return fmt.Errorf("seeding activity types failed: %w", err)
	}

	slog.Debug("database migrations completed")
	return nil
}

var activityTypes = []models.ActivityType{
	{Code: indicators.Pruning, Name: "Poda"},
	{Code: indicators.Weeding, Name: "Control de maleza"},
	{Code: indicators.Nutrition, Name: "Nutrición"},
	{Code: indicators.Phytosanitary, Name: "Control fitosanitario"},
	{Code: indicators.Bagging, Name: "Enfunde"},
	{Code: indicators.Harvest, Name: "Cosecha", Harvest: true},
}

func seedActivityTypes(db *gorm.DB) error {
	rows := make([]models.ActivityType, len(activityTypes))
	copy(rows, activityTypes)
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}
