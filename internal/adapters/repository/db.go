package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/clickrace/pkg/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	defaultSlowQuery    = time.Second
	defaultBusyTimeout  = 5 * time.Second
	defaultSQLiteConns  = 4
	defaultPostgresPool = 25
)

// SQLStore implements Store on gorm. Every process opens its own SQLStore on
// the same database; sqlite serializes writers across processes with WAL and a
// busy timeout.
type SQLStore struct {
	db     *gorm.DB
	driver string
	clock  clockwork.Clock

	slowQuery    time.Duration
	busyTimeout  time.Duration
	maxOpenConns int
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database named by driver and dsn.
func Open(driver, dsn string, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		driver:      strings.ToLower(driver),
		clock:       clockwork.NewRealClock(),
		slowQuery:   defaultSlowQuery,
		busyTimeout: defaultBusyTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.NewSlogLogger(
			logger.Slog().With("component", "store"),
			gormlogger.Config{
				SlowThreshold:             s.slowQuery,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch s.driver {
	case DriverPostgres:
		db, err = gorm.Open(postgres.Open(dsn), gormConfig)
		if s.maxOpenConns == 0 {
			s.maxOpenConns = defaultPostgresPool
		}
	case DriverSQLite:
		path := strings.TrimPrefix(dsn, "file:")
		if !strings.HasPrefix(path, ":memory:") {
			if dir := filepath.Dir(pathWithoutQuery(path)); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("create database directory %s: %w", dir, err)
				}
			}
		}
		db, err = gorm.Open(sqlite.Open(s.sqliteDSN(path)), gormConfig)
		if s.maxOpenConns == 0 {
			s.maxOpenConns = defaultSQLiteConns
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(s.maxOpenConns)
	sqlDB.SetMaxIdleConns(s.maxOpenConns)

	s.db = db
	return s, nil
}

// sqliteDSN attaches pragmas so every pooled connection gets them.
func (s *SQLStore) sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		path, sep, s.busyTimeout.Milliseconds())
}

func pathWithoutQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
