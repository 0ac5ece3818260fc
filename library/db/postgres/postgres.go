// Package postgres opens gorm connections to the fabric catalog database.
package postgres

import (
	"context"
	"fmt"
	"time"

	errors "github.com/Laisky/errors/v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DialInfo postgres dial info
type DialInfo struct {
	Addr,
	DBName,
	User,
	Pwd,
	SSLMode string
	Port int
}

// BuildDSN builds a PostgreSQL DSN from dialInfo.
func BuildDSN(dialInfo DialInfo) string {
	port := dialInfo.Port
	if port <= 0 {
		port = 5432
	}
	sslMode := dialInfo.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		dialInfo.Addr, dialInfo.User, dialInfo.Pwd, dialInfo.DBName, port, sslMode)
}

// NewGormDB opens a gorm connection backed by pgx and checks it with a ping.
func NewGormDB(ctx context.Context, dialInfo DialInfo, logLevel gormLogger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(BuildDSN(dialInfo)), &gorm.Config{
		Logger: newTruncatingParamsLogger(gormLogger.Default.LogMode(logLevel)),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "get sql db")
	}
	if err = sqlDB.PingContext(ctx); err != nil {
		return nil, errors.Wrap(err, "ping postgres")
	}

	sqlDB.SetMaxIdleConns(6)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}
