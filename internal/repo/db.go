// Package repo is the persistence layer: one file of GORM queries per
// aggregate, plus connection bootstrap and migrations for SQLite, PostgreSQL
// and MySQL.
//
// Repositories return GORM errors as they are (ErrNotFound aliases
// gorm.ErrRecordNotFound); the services decide what they mean.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/choukwa/choukwa-backend/internal/config"
	"github.com/choukwa/choukwa-backend/internal/domain"
)

const slowQueryThreshold = 200 * time.Millisecond

// Applied on every pooled SQLite connection, not just the first one.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

type pool struct {
	maxOpen     int
	maxIdleTime time.Duration
	maxLifetime time.Duration
}

// Open connects to the configured store, sizes the connection pool and
// installs query tracing. Bound values are kept out of spans and logs since
// most complaint queries filter on a citizen's phone number.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	var (
		dial gorm.Dialector
		p    = pool{maxOpen: 25, maxIdleTime: 5 * time.Minute, maxLifetime: 30 * time.Minute}
	)
	switch cfg.Driver {
	case "", "sqlite":
		if err := ensureParentDir(cfg.Path); err != nil {
			return nil, err
		}
		dial = sqlite.Open(sqliteDSN(cfg.Path))
		p.maxOpen = 10
	case "postgres":
		dial = postgres.Open(cfg.DSN)
	case "mysql":
		dial = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         newGormLogger(slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dial.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(p.maxOpen)
	sqlDB.SetMaxIdleConns(p.maxOpen)
	sqlDB.SetConnMaxIdleTime(p.maxIdleTime)
	sqlDB.SetConnMaxLifetime(p.maxLifetime)

	if err := db.Use(tracing.NewPlugin(tracing.WithoutQueryVariables())); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// sqliteDSN appends the connection pragmas to a file path or DSN.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var b strings.Builder
	b.WriteString(path)
	for _, p := range sqlitePragmas {
		b.WriteString(sep)
		b.WriteString("_pragma=")
		b.WriteString(p)
		sep = "&"
	}
	return b.String()
}

// ensureParentDir fails fast on a missing directory; SQLite itself reports
// it as an obscure "out of memory" on some platforms.
func ensureParentDir(path string) error {
	if strings.HasPrefix(path, "file:") || strings.Contains(path, ":memory:") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("sqlite directory: %w", err)
	}
	return nil
}

// AutoMigrate creates or updates every table of the platform.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Wilaya{},
		&domain.Daira{},
		&domain.Mutamadiya{},
		&domain.MP{},
		&domain.LocalDeputy{},
		&domain.Complaint{},
		&domain.AuditLogEntry{},
		&domain.CoordinationEntry{},
		&domain.PendingRegistration{},
		&domain.ReplyTemplate{},
		&domain.Idempotency{},
	)
}
