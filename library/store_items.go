package library

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
)

// itemRow is an items row left-joined with both subtype tables.
type itemRow struct {
	Item
	ISBN            sql.NullString `db:"isbn"`
	NumPages        sql.NullInt64  `db:"num_pages"`
	DurationMinutes sql.NullInt64  `db:"duration_minutes"`
	Genre           sql.NullString `db:"genre"`
}

func (r *itemRow) toItem() *Item {
	item := r.Item
	switch item.Kind {
	case KindBook:
		if r.ISBN.Valid {
			item.Details = &BookDetails{ISBN: r.ISBN.String, NumPages: int(r.NumPages.Int64)}
		}
	case KindMedia:
		if r.Genre.Valid {
			item.Details = &MediaDetails{DurationMinutes: int(r.DurationMinutes.Int64), Genre: r.Genre.String}
		}
	}
	return &item
}

func itemsQuery() *goqu.SelectDataset {
	return from(goqu.T("items").As("i")).
		LeftJoin(goqu.T("book_details").As("b"), goqu.On(goqu.I("b.item_id").Eq(goqu.I("i.id")))).
		LeftJoin(goqu.T("media_details").As("m"), goqu.On(goqu.I("m.item_id").Eq(goqu.I("i.id")))).
		Select(
			goqu.I("i.id").As("id"),
			goqu.I("i.title").As("title"),
			goqu.I("i.creator").As("creator"),
			goqu.I("i.kind").As("kind"),
			goqu.I("i.total_copies").As("total_copies"),
			goqu.I("i.available_copies").As("available_copies"),
			goqu.I("i.created_at").As("created_at"),
			goqu.I("b.isbn").As("isbn"),
			goqu.I("b.num_pages").As("num_pages"),
			goqu.I("m.duration_minutes").As("duration_minutes"),
			goqu.I("m.genre").As("genre"),
		)
}

func (t *Tx) queryItems(ctx context.Context, ds *goqu.SelectDataset) ([]*Item, error) {
	var rows []itemRow
	if err := t.selectAll(ctx, &rows, ds); err != nil {
		return nil, err
	}
	items := make([]*Item, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toItem())
	}
	return items, nil
}

// InsertItem stores the base row and the kind-specific row, then fills in
// item.ID and item.CreatedAt.
func (t *Tx) InsertItem(ctx context.Context, item *Item) error {
	if item.Details == nil {
		return NewValidationError("item details are required")
	}
	item.Kind = item.Details.Kind()
	item.CreatedAt = t.now().UTC()

	id, err := t.insert(ctx, insertInto("items").Rows(goqu.Record{
		"title":            item.Title,
		"creator":          item.Creator,
		"kind":             string(item.Kind),
		"total_copies":     item.TotalCopies,
		"available_copies": item.AvailableCopies,
		"created_at":       item.CreatedAt,
	}))
	if err != nil {
		return err
	}
	item.ID = id

	switch d := item.Details.(type) {
	case *BookDetails:
		_, err = t.exec(ctx, insertInto("book_details").Rows(goqu.Record{
			"item_id":   id,
			"isbn":      d.ISBN,
			"num_pages": d.NumPages,
		}))
		if isUniqueViolation(err) {
			return NewValidationError("isbn already registered", d.ISBN)
		}
	case *MediaDetails:
		_, err = t.exec(ctx, insertInto("media_details").Rows(goqu.Record{
			"item_id":          id,
			"duration_minutes": d.DurationMinutes,
			"genre":            d.Genre,
		}))
	default:
		return NewValidationError("unsupported item kind", string(item.Kind))
	}
	return err
}

// GetItem loads an item with its details.
func (t *Tx) GetItem(ctx context.Context, id int64) (*Item, error) {
	var row itemRow
	err := t.get(ctx, &row, itemsQuery().Where(goqu.I("i.id").Eq(id)))
	if isNoRows(err) {
		return nil, notFound("item", id)
	}
	if err != nil {
		return nil, err
	}
	return row.toItem(), nil
}

// SearchItems matches q case-insensitively against title or creator. An
// empty q returns every item.
func (t *Tx) SearchItems(ctx context.Context, q string) ([]*Item, error) {
	ds := itemsQuery().Order(goqu.I("i.id").Asc())
	if q != "" {
		ds = ds.Where(goqu.Or(
			goqu.L("instr(lower(?), lower(?)) > 0", goqu.I("i.title"), q),
			goqu.L("instr(lower(?), lower(?)) > 0", goqu.I("i.creator"), q),
		))
	}
	return t.queryItems(ctx, ds)
}

// AdjustAvailableCopies moves available_copies by delta, refusing to leave
// the range [0, total_copies].
func (t *Tx) AdjustAvailableCopies(ctx context.Context, id int64, delta int) error {
	var guard exp.Expression = goqu.C("available_copies").Gte(-delta)
	if delta > 0 {
		guard = goqu.L("available_copies + ? <= total_copies", delta)
	}
	n, err := t.affected(ctx, update("items").
		Set(goqu.Record{"available_copies": goqu.L("available_copies + ?", delta)}).
		Where(goqu.C("id").Eq(id), guard))
	if err != nil {
		return err
	}
	if n == 0 {
		if delta < 0 {
			return newError(ErrorTypeItemUnavailable, "item %d has no copies left", id)
		}
		return storageFailure("adjust copies", fmt.Errorf("item %d would exceed its total copies", id))
	}
	return nil
}

// DeleteItem removes the item; subtype rows, borrow records and waiting list
// entries go with it through ON DELETE CASCADE.
func (t *Tx) DeleteItem(ctx context.Context, id int64) (bool, error) {
	n, err := t.affected(ctx, deleteFrom("items").Where(goqu.C("id").Eq(id)))
	return n > 0, err
}
