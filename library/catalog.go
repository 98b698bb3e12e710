package library

import (
	"context"
	"log/slog"
	"strings"
)

// NewItem is the input to Catalog.AddItem. The item's kind follows the
// concrete type of Details.
type NewItem struct {
	Title   string      `json:"title" validate:"required,max=255"`
	Creator string      `json:"creator" validate:"required,max=255"`
	Copies  int         `json:"copies" validate:"min=1"`
	Details ItemDetails `json:"details" validate:"required"`
}

// Catalog owns the item collection and its copy counts.
type Catalog struct {
	db     *Database
	logger *slog.Logger
}

func NewCatalog(db *Database) *Catalog {
	return &Catalog{db: db, logger: db.Logger("catalog")}
}

// AddItem creates the item and its kind-specific record in one transaction.
func (c *Catalog) AddItem(ctx context.Context, in NewItem) (*Item, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Creator = strings.TrimSpace(in.Creator)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := validateStruct(in.Details); err != nil {
		return nil, err
	}

	item := &Item{
		Title:           in.Title,
		Creator:         in.Creator,
		TotalCopies:     in.Copies,
		AvailableCopies: in.Copies,
		Details:         in.Details,
	}
	err := c.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		return tx.InsertItem(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("item added", "item_id", item.ID, "kind", item.Kind, "copies", item.TotalCopies)
	return item, nil
}

// RemoveItem deletes the item with its history and queue. It reports false
// when the item does not exist. Outstanding borrows do not block removal.
func (c *Catalog) RemoveItem(ctx context.Context, itemID int64) (bool, error) {
	var removed bool
	err := c.db.RunTransaction(ctx, func(ctx context.Context, tx *Tx) error {
		active, err := tx.CountActiveBorrowsForItem(ctx, itemID)
		if err != nil {
			return err
		}
		if removed, err = tx.DeleteItem(ctx, itemID); err != nil {
			return err
		}
		if removed && active > 0 {
			c.logger.Warn("removing item with active borrows", "item_id", itemID, "active_borrows", active)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		c.logger.Info("item removed", "item_id", itemID)
	}
	return removed, nil
}

func (c *Catalog) GetItem(ctx context.Context, itemID int64) (*Item, error) {
	var item *Item
	err := c.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		item, err = tx.GetItem(ctx, itemID)
		return err
	})
	return item, err
}

// ListItems returns the whole catalog ordered by id.
func (c *Catalog) ListItems(ctx context.Context) ([]*Item, error) {
	return c.SearchItems(ctx, "")
}

// SearchItems matches query against title or creator, ignoring case.
func (c *Catalog) SearchItems(ctx context.Context, query string) ([]*Item, error) {
	var items []*Item
	err := c.db.Read(ctx, func(ctx context.Context, tx *Tx) error {
		var err error
		items, err = tx.SearchItems(ctx, strings.TrimSpace(query))
		return err
	})
	return items, err
}

// IsAvailable reports whether at least one copy of item is on the shelf.
func (c *Catalog) IsAvailable(item *Item) bool { return item.IsAvailable() }
