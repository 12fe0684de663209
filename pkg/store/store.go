// Package store persists connector configurations, operation log entries
// and integration jobs with gorm on sqlite or postgres.
package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Sentinel errors returned by the repositories.
var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DB is an open gateway database.
type DB struct {
	db *gorm.DB
}

// Open connects to the database and migrates the schema.
func Open(driver, dsn string) (*DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&ConnectorConfigModel{}, &OperationLogModel{}, &JobModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks that the database answers.
func (d *DB) Ping() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Ping()
}

// Configs returns the connector config repository.
func (d *DB) Configs() *ConfigRepository { return NewConfigRepository(d.db) }

// Logs returns the operation log store.
func (d *DB) Logs() *LogStore { return NewLogStore(d.db) }

// Jobs returns the job repository.
func (d *DB) Jobs() *JobRepository { return NewJobRepository(d.db) }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
