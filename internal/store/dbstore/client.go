// Package dbstore is the persistence client: a thin, table-addressed wrapper
// over gorm where every call is fallible and reports a PersistenceError.
package dbstore

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"gorm.io/gorm"
)

// Query narrows a Select. Zero values mean "no clause".
type Query struct {
	Where string
	Args  []any
	Order string
	Limit int
}

type Client interface {
	// Insert writes records (a pointer to a struct or slice of structs) and
	// fills generated columns back into them.
	Insert(ctx context.Context, table string, records any) error
	Select(ctx context.Context, table string, dest any, q Query) error
}

type GormClient struct {
	db *gorm.DB
}

func NewClient(db *gorm.DB) *GormClient {
	return &GormClient{db: db}
}

func (c *GormClient) Insert(ctx context.Context, table string, records any) error {
	if err := c.db.WithContext(ctx).Table(table).Create(records).Error; err != nil {
		return backendError("insert into "+table, err)
	}
	return nil
}

func (c *GormClient) Select(ctx context.Context, table string, dest any, q Query) error {
	tx := c.db.WithContext(ctx).Table(table)
	if q.Where != "" {
		tx = tx.Where(q.Where, q.Args...)
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if err := tx.Find(dest).Error; err != nil {
		return backendError("select from "+table, err)
	}
	return nil
}

// Count is the startup connection probe: it touches table without reading rows.
func (c *GormClient) Count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := c.db.WithContext(ctx).Table(table).Count(&n).Error; err != nil {
		return 0, backendError("count "+table, err)
	}
	return n, nil
}

// backendError keeps the driver's own code and message on the error so the
// HTTP layer can echo them as details.
func backendError(op string, err error) error {
	e := apperr.Persistence(op, err)

	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.As(err, &pgErr):
		e.Code = pgErr.Code
		e.Details = pgErr.Message
		if pgErr.Detail != "" {
			e.Details += ": " + pgErr.Detail
		}
	case errors.As(err, &myErr):
		e.Code = strconv.Itoa(int(myErr.Number))
		e.Details = myErr.Message
	}
	return e
}
