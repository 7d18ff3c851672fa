package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"closet-service/internal/models"
	"closet-service/internal/repository"
)

var itemExportColumns = []string{"id", "name", "category", "gender", "image", "brand", "color", "count"}

// exportQueries maps an export table to its query. Item dumps use the
// column layout ImportCSV expects with ids included.
var exportQueries = map[string]string{
	repository.ExportShirts:       itemExportQuery(models.CategoryShirt),
	repository.ExportPants:        itemExportQuery(models.CategoryPant),
	repository.ExportShoes:        itemExportQuery(models.CategoryShoe),
	repository.ExportSuits:        itemExportQuery(models.CategorySuit),
	repository.ExportTransactions: txSelect + ` ORDER BY id`,
	repository.ExportUsers:        userSelect + ` ORDER BY onyen`,
}

func itemExportQuery(c models.Category) string {
	cols := ""
	for _, col := range itemExportColumns {
		cols += "i." + col + ", "
	}
	for i, col := range models.SizeColumns(c) {
		if i > 0 {
			cols += ", "
		}
		cols += "s." + col
	}
	return `SELECT ` + cols + `
		FROM items i JOIN item_sizes s ON s.item_id = i.id
		WHERE i.category = '` + string(c) + `'
		ORDER BY i.name, i.id`
}

var _ repository.Exporter = (*Store)(nil)

// ExportCSV streams table as CSV with a header row.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, table string) error {
	query, ok := exportQueries[table]
	if !ok {
		return fmt.Errorf("unknown export table %q", table)
	}

	rows, err := s.q.QueryxContext(ctx, query)
	if err != nil {
		return fmt.Errorf("exporting %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return err
	}

	record := make([]string, len(cols))
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return fmt.Errorf("scanning %s row: %w", table, err)
		}
		for i, v := range values {
			record[i] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("exporting %s: %w", table, err)
	}

	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
