package database

import (
	"fmt"
	"strings"
	"time"

	logx "github.com/fitcoach-core/server/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver        string        `split_words:"true" default:"sqlite"`
	DSN           string        `default:"file:fitcoach.db?_foreign_keys=on"`
	MaxOpenConns  int           `split_words:"true" default:"10"`
	SlowThreshold time.Duration `split_words:"true" default:"500ms"`
}

// zerologWriter routes gorm's logger output through logx.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...any) {
	logx.Warn().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (c *Config) New() (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch c.Driver {
	case DriverPostgres:
		dialector = postgres.Open(c.DSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(c.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.New(zerologWriter{}, gormlogger.Config{
			SlowThreshold:             c.SlowThreshold,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if c.Driver == DriverPostgres {
		sqlDB.SetMaxOpenConns(c.MaxOpenConns)
	} else {
		// SQLite allows a single writer; in-memory databases also live on one connection.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

// MemoryDSN names a private shared-cache in-memory SQLite database.
func MemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
}
