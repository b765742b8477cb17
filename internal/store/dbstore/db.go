package dbstore

import (
	"context"
	"net/url"
	"strings"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects to the configured backend. Missing credentials are reported
// as a configuration error before any dial.
func Open(cfg config.StorageConfig) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "postgres", "postgresql":
		dsn, err := postgresDSN(cfg.URL, cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		dialector = postgres.Open(dsn)
	case "mysql":
		dsn, err := mysqlDSN(cfg.URL, cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		dialector = gormmysql.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = gormsqlite.Open(cfg.URL)
	default:
		return nil, apperr.Configuration("unsupported storage.driver " + cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.Driver)
	}
	return db, nil
}

// Migrate creates or updates the tables behind the given models.
func Migrate(ctx context.Context, db *gorm.DB, models ...any) error {
	if err := db.WithContext(ctx).AutoMigrate(models...); err != nil {
		return errors.Wrap(err, "auto migrate")
	}
	return nil
}

// Close releases the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// postgresDSN injects the secret as the password of a postgres:// URL.
// Keyword/value DSNs get a password=... pair appended instead.
func postgresDSN(raw, secret string) (string, error) {
	if !strings.Contains(raw, "://") {
		quoted := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(secret)
		return strings.TrimSpace(raw) + " password='" + quoted + "'", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", apperr.Configuration("invalid storage.url: " + err.Error())
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", apperr.Configuration("storage.url must use the postgres:// scheme")
	}
	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, secret)
	return u.String(), nil
}

func mysqlDSN(raw, secret string) (string, error) {
	c, err := mysql.ParseDSN(raw)
	if err != nil {
		return "", apperr.Configuration("invalid storage.url: " + err.Error())
	}
	c.Passwd = secret
	c.ParseTime = true
	return c.FormatDSN(), nil
}
