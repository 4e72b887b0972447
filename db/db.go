package db

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to MySQL when a DSN is given, otherwise to the SQLite file
func Open(mysqlDSN, sqliteFile string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	if mysqlDSN != "" {
		dialector = gormmysql.Open(mysqlDSN)
	} else if sqliteFile != "" {
		dialector = sqlite.Open(sqliteFile + "?_busy_timeout=5000&_foreign_keys=on")
	} else {
		return nil, errors.New("no database configured")
	}
	logLevel := logger.Warn
	if debug {
		logLevel = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, err
	}
	if mysqlDSN == "" {
		// SQLite allows a single writer, serialise through one connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// IsUniqueViolation reports whether err comes from a unique index conflict,
// whichever driver produced it
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return true
	}
	// mattn/go-sqlite3 (older drivers don't translate)
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
