package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"closet-service/internal/models"
	"closet-service/internal/repository"

	"github.com/jmoiron/sqlx"
)

const itemSelect = `
	SELECT i.id, i.name, i.category, i.gender,
	       COALESCE(i.image, '') AS image, COALESCE(i.brand, '') AS brand,
	       i.color, i.count,
	       s.size, s.waist, s.length, s.chest, s.sleeve
	FROM items i
	JOIN item_sizes s ON s.item_id = i.id`

// itemRow is an item joined with its size row.
type itemRow struct {
	models.Item
	SizeValue sql.NullString `db:"size"`
	Waist     sql.NullInt64  `db:"waist"`
	Length    sql.NullInt64  `db:"length"`
	Chest     sql.NullInt64  `db:"chest"`
	Sleeve    sql.NullInt64  `db:"sleeve"`
}

func (r *itemRow) toItem() models.Item {
	item := r.Item
	switch item.Category {
	case models.CategoryShirt:
		item.Size = models.ShirtSize{Value: r.SizeValue.String}
	case models.CategoryShoe:
		item.Size = models.ShoeSize{Value: r.SizeValue.String}
	case models.CategoryPant:
		item.Size = models.PantSize{Waist: int(r.Waist.Int64), Length: int(r.Length.Int64)}
	case models.CategorySuit:
		item.Size = models.SuitSize{Chest: int(r.Chest.Int64), Sleeve: int(r.Sleeve.Int64)}
	}
	return item
}

// sizeValues returns the size, waist, length, chest, sleeve column values for s.
func sizeValues(s models.Size) (size, waist, length, chest, sleeve any) {
	switch v := s.(type) {
	case models.ShirtSize:
		size = v.Value
	case models.ShoeSize:
		size = v.Value
	case models.PantSize:
		waist, length = v.Waist, v.Length
	case models.SuitSize:
		chest, sleeve = v.Chest, v.Sleeve
	}
	return
}

// GetItem retrieves an item by ID
func (s *Store) GetItem(ctx context.Context, id string) (*models.Item, error) {
	return s.getItem(ctx, itemSelect+` WHERE i.id = $1`, id)
}

// LockItem retrieves an item and locks its row until the transaction ends.
func (s *Store) LockItem(ctx context.Context, id string) (*models.Item, error) {
	return s.getItem(ctx, itemSelect+` WHERE i.id = $1 FOR UPDATE OF i`, id)
}

func (s *Store) getItem(ctx context.Context, query string, args ...any) (*models.Item, error) {
	var row itemRow
	err := mapError(sqlx.GetContext(ctx, s.q, &row, query, args...))
	if err == sql.ErrNoRows || errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	item := row.toItem()
	return &item, nil
}

// FindItem returns the first item matching filter, or nil.
func (s *Store) FindItem(ctx context.Context, filter models.ItemFilter) (*models.Item, error) {
	where, args, err := s.itemWhere(filter)
	if err != nil {
		return nil, err
	}
	return s.getItem(ctx, itemSelect+where+` ORDER BY i.name, i.id LIMIT 1`, args...)
}

// ListItems returns every item matching filter.
func (s *Store) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	where, args, err := s.itemWhere(filter)
	if err != nil {
		return nil, err
	}
	return s.selectItems(ctx, itemSelect+where+` ORDER BY i.name, i.id`, args...)
}

// SearchItems matches term against name, brand and color, or an exact item id.
func (s *Store) SearchItems(ctx context.Context, term string) ([]models.Item, error) {
	pattern := "%" + escapeLike(term) + "%"
	return s.selectItems(ctx, itemSelect+`
		WHERE i.id::text = $1 OR i.name ILIKE $2 OR i.brand ILIKE $2 OR i.color ILIKE $2
		ORDER BY i.name, i.id`, term, pattern)
}

func (s *Store) selectItems(ctx context.Context, query string, args ...any) ([]models.Item, error) {
	var rows []itemRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	items := make([]models.Item, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toItem())
	}
	return items, nil
}

// itemWhere builds the WHERE clause for filter, rebound for the driver.
func (s *Store) itemWhere(filter models.ItemFilter) (string, []any, error) {
	var conds []string
	var args []any

	add := func(cond string, arg ...any) {
		conds = append(conds, cond)
		args = append(args, arg...)
	}

	if filter.Name != "" {
		add("i.name = ?", filter.Name)
	}
	if filter.Category != "" {
		add("i.category = ?", string(filter.Category))
	}
	if filter.Gender != "" {
		add("i.gender = ?", filter.Gender)
	}
	if filter.Brand != "" {
		add("i.brand = ?", filter.Brand)
	}
	if len(filter.Colors) > 0 {
		add("i.color IN (?)", filter.Colors)
	}
	switch v := filter.Size.(type) {
	case models.ShirtSize:
		add("s.category = ? AND s.size = ?", string(v.Category()), v.Value)
	case models.ShoeSize:
		add("s.category = ? AND s.size = ?", string(v.Category()), v.Value)
	case models.PantSize:
		add("s.category = ? AND s.waist = ? AND s.length = ?", string(v.Category()), v.Waist, v.Length)
	case models.SuitSize:
		add("s.category = ? AND s.chest = ? AND s.sleeve = ?", string(v.Category()), v.Chest, v.Sleeve)
	}

	if len(conds) == 0 {
		return "", nil, nil
	}

	query, args, err := sqlx.In(" WHERE "+strings.Join(conds, " AND "), args...)
	if err != nil {
		return "", nil, fmt.Errorf("building item filter: %w", err)
	}
	return s.q.Rebind(query), args, nil
}

// CreateItem inserts an item and its size row. Callers run it inside WithTx.
func (s *Store) CreateItem(ctx context.Context, item *models.Item) error {
	if item.Size == nil || item.Size.Category() != item.Category {
		return fmt.Errorf("item %s has no %s size", item.ID, item.Category)
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO items (id, name, category, gender, image, brand, color, count)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		item.ID, item.Name, item.Category, item.Gender, item.Image, item.Brand, item.Color, item.Count)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}

	size, waist, length, chest, sleeve := sizeValues(item.Size)
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO item_sizes (item_id, category, size, waist, length, chest, sleeve)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, item.Category, size, waist, length, chest, sleeve)
	if err != nil {
		return fmt.Errorf("creating item size: %w", err)
	}
	return nil
}

// UpdateItem updates the editable fields of an item.
func (s *Store) UpdateItem(ctx context.Context, id string, upd models.ItemUpdate) error {
	return s.execAffected(ctx, `
		UPDATE items SET name = $1, gender = $2, image = NULLIF($3, ''), brand = NULLIF($4, ''), color = $5
		WHERE id = $6`,
		upd.Name, upd.Gender, upd.Image, upd.Brand, upd.Color, id)
}

// AdjustItemCount adds delta to the item's stock and returns the new count.
// The guard in the WHERE clause keeps the count from going negative even
// without a prior row lock.
func (s *Store) AdjustItemCount(ctx context.Context, id string, delta int) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, s.q, &count,
		`UPDATE items SET count = count + $1 WHERE id = $2 AND count + $1 >= 0 RETURNING count`,
		delta, id)
	if err == nil {
		return count, nil
	}
	if err = mapError(err); errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("adjusting item count: %w", err)
	}

	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists,
		`SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)`, id); err != nil {
		return 0, fmt.Errorf("checking item: %w", err)
	}
	if !exists {
		return 0, repository.ErrNotFound
	}
	return 0, repository.ErrInsufficientStock
}

// DeleteItem deletes one item and its size row.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	err := s.execAffected(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrReferenced) {
		return fmt.Errorf("deleting item: %w", err)
	}
	return err
}

// DeleteAllItems deletes every item.
func (s *Store) DeleteAllItems(ctx context.Context) (int64, error) {
	return s.execCount(ctx, `DELETE FROM items`)
}

// DeleteOutOfStockItems deletes items whose count is zero or less.
func (s *Store) DeleteOutOfStockItems(ctx context.Context) (int64, error) {
	return s.execCount(ctx, `DELETE FROM items WHERE count <= 0`)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
