package library

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
)

var dialect = goqu.Dialect("sqlite3")

// Tx is the keyed-access handle passed to RunTransaction and Read callbacks.
type Tx struct {
	ext sqlx.ExtContext
	now func() time.Time
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func from(table interface{}) *goqu.SelectDataset  { return dialect.From(table).Prepared(true) }
func insertInto(table string) *goqu.InsertDataset { return dialect.Insert(table).Prepared(true) }
func update(table string) *goqu.UpdateDataset     { return dialect.Update(table).Prepared(true) }
func deleteFrom(table string) *goqu.DeleteDataset { return dialect.Delete(table).Prepared(true) }

func (t *Tx) get(ctx context.Context, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return err
	}
	return sqlx.GetContext(ctx, t.ext, dest, query, args...)
}

func (t *Tx) selectAll(ctx context.Context, dest interface{}, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return err
	}
	return sqlx.SelectContext(ctx, t.ext, dest, query, args...)
}

func (t *Tx) exec(ctx context.Context, b sqlBuilder) (sql.Result, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return nil, err
	}
	return t.ext.ExecContext(ctx, query, args...)
}

// insert runs b and returns the new row id.
func (t *Tx) insert(ctx context.Context, b sqlBuilder) (int64, error) {
	res, err := t.exec(ctx, b)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// affected runs b and returns how many rows it touched.
func (t *Tx) affected(ctx context.Context, b sqlBuilder) (int64, error) {
	res, err := t.exec(ctx, b)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *Tx) count(ctx context.Context, table string, where ...goqu.Expression) (int, error) {
	var n int
	err := t.get(ctx, &n, from(table).Select(goqu.COUNT("*")).Where(where...))
	return n, err
}

func (t *Tx) exists(ctx context.Context, table string, id int64) (bool, error) {
	n, err := t.count(ctx, table, goqu.C("id").Eq(id))
	return n > 0, err
}

// nullable keeps goqu from rendering a typed nil pointer.
func nullable(v *time.Time) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
