package database

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"ipcrawl/internal/domain"
	"ipcrawl/internal/support"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	ExistingDB  *gorm.DB
	Dialector   gorm.Dialector
	Logger      logger.Interface
	AutoMigrate bool
	Migrations  []any
}

type Option func(*Config)

// SetupDB opens the block store and migrates its tables. The returned handle
// is the only reference to the connection; callers pass it on explicitly.
func SetupDB(opts ...Option) (*gorm.DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var db *gorm.DB
	switch {
	case cfg.ExistingDB != nil:
		db = cfg.ExistingDB
	case cfg.Dialector != nil:
		gormCfg := &gorm.Config{}
		if cfg.Logger != nil {
			gormCfg.Logger = cfg.Logger
		}
		opened, err := gorm.Open(cfg.Dialector, gormCfg)
		if err != nil {
			return nil, fmt.Errorf("database: open connection: %w", err)
		}
		db = opened
		configureConnectionPool(db)
	default:
		return nil, fmt.Errorf("database: no dialector or existing connection provided")
	}

	if cfg.AutoMigrate && len(cfg.Migrations) > 0 {
		if err := db.AutoMigrate(cfg.Migrations...); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Debug("Database migration completed.")
	}

	return db, nil
}

func defaultConfig() Config {
	return Config{
		Logger:      silentLogger(),
		AutoMigrate: true,
		Migrations:  defaultMigrations(),
	}
}

// Dialector picks the SQL driver. driver and path come from settings and are
// overridden by DB_DRIVER and DB_PATH; postgres reads its DSN from DB_*.
func Dialector(driver, path string) (gorm.Dialector, error) {
	driver, dsn, err := resolveTarget(driver, path)
	if err != nil {
		return nil, err
	}

	if driver == DriverPostgres {
		return postgres.Open(dsn), nil
	}
	return sqlite.Open(dsn), nil
}

// StoreKey identifies the store Dialector would open, so that data derived
// from one block store is not served for another. The DSN is hashed and never
// appears in the key.
func StoreKey(driver, path string) (string, error) {
	driver, dsn, err := resolveTarget(driver, path)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64String(driver+"|"+dsn), 16), nil
}

func resolveTarget(driver, path string) (string, string, error) {
	driver = strings.ToLower(support.GetEnv("DB_DRIVER", driver))

	switch driver {
	case "", DriverSQLite:
		return DriverSQLite, support.GetEnv("DB_PATH", path), nil
	case DriverPostgres:
		return DriverPostgres, buildDSN(), nil
	default:
		return "", "", fmt.Errorf("database: unsupported driver %q", driver)
	}
}

func buildDSN() string {
	dbHost := support.GetEnv("DB_HOST", "localhost")
	dbPort := support.GetEnv("DB_PORT", "5432")
	dbName := support.GetEnv("DB_NAME", "ipcrawl")
	dbUser := support.GetEnv("DB_USERNAME", "ipcrawl")
	dbPassword := support.GetEnv("DB_PASSWORD", "ipcrawl")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost,
		dbPort,
		dbUser,
		dbPassword,
		dbName,
	)

	return dsn
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

func defaultMigrations() []any {
	return []any{
		&domain.ASNBlock{},
		&domain.CityBlock{},
	}
}

func WithExistingDB(db *gorm.DB) Option {
	return func(cfg *Config) {
		cfg.ExistingDB = db
	}
}

func WithDialector(d gorm.Dialector) Option {
	return func(cfg *Config) {
		cfg.Dialector = d
	}
}

func WithLogger(l logger.Interface) Option {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

func WithAutoMigrate(enabled bool) Option {
	return func(cfg *Config) {
		cfg.AutoMigrate = enabled
	}
}

func WithMigrations(models ...any) Option {
	return func(cfg *Config) {
		if len(models) == 0 {
			cfg.Migrations = nil
			return
		}
		cfg.Migrations = append([]any(nil), models...)
	}
}

func configureConnectionPool(db *gorm.DB) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 8)
	maxIdle := support.GetEnvInt("DB_MAX_IDLE_CONNS", maxOpen)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	connLifetimeSeconds := support.GetEnvInt("DB_CONN_MAX_LIFETIME", 300)

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if connLifetimeSeconds > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(connLifetimeSeconds) * time.Second)
	}
}
