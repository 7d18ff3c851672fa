package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	importLockName = "csv-import"
	importLockTTL  = 5 * time.Minute
)

// item columns after the optional id: name, category, gender, image, brand, color, count
const itemBaseColumns = 7

// ImportOptions describes the layout of an item CSV.
type ImportOptions struct {
	// HasHeader skips the first row.
	HasHeader bool
	// WithIDs means every row starts with the item id, as written by the
	// item backups. Otherwise a fresh id is generated per row.
	WithIDs bool
}

// readCSV parses data into rows, dropping the header when asked to. Rows may
// have different lengths since size columns depend on the category.
func readCSV(data []byte, hasHeader bool) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, apperr.BadRequestWrap(err, "The file is not valid CSV")
	}
	if hasHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

// ImportCSV creates one item per row. Rows are stored in order inside one
// database transaction and the first bad row aborts the whole import.
func (s *ItemService) ImportCSV(ctx context.Context, data []byte, opts ImportOptions) (int, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.ImportCSV")
	defer span.End()

	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, importLockName, importLockTTL)
		if err != nil {
			return 0, apperr.Internal("A problem occurred when starting the import", err)
		}
		if !ok {
			return 0, apperr.BadRequest("Another import is already running, try again shortly")
		}
		defer func() {
			if err := s.locker.ReleaseLock(context.Background(), importLockName, token); err != nil {
				s.logger.Warn("Failed to release import lock", zap.Error(err))
			}
		}()
	}

	rows, err := readCSV(data, opts.HasHeader)
	if err != nil {
		util.CSVImportsFailedTotal.WithLabelValues("items").Inc()
		return 0, err
	}

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		for i, row := range rows {
			line := i + 1
			if opts.HasHeader {
				line++
			}

			item, err := parseItemRow(row, opts.WithIDs)
			if err != nil {
				return apperr.BadRequestWrap(err, fmt.Sprintf("Row %d could not be imported", line))
			}
			if err := r.CreateItem(ctx, item); err != nil {
				return apperr.Internal(fmt.Sprintf("Row %d could not be saved", line), err)
			}
		}
		return nil
	})
	if err != nil {
		util.CSVImportsFailedTotal.WithLabelValues("items").Inc()
		s.logger.Warn("Item import failed", zap.Error(err))
		return 0, err
	}

	util.CSVRowsImportedTotal.WithLabelValues("items").Add(float64(len(rows)))
	s.logger.Info("Items imported", zap.Int("rows", len(rows)))
	return len(rows), nil
}

func parseItemRow(row []string, withIDs bool) (*models.Item, error) {
	id := ""
	if withIDs {
		if len(row) == 0 {
			return nil, fmt.Errorf("missing id column")
		}
		id = strings.TrimSpace(row[0])
		if _, err := uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("id %q is not a UUID", id)
		}
		row = row[1:]
	} else {
		id = uuid.New().String()
	}

	if len(row) < itemBaseColumns {
		return nil, fmt.Errorf("expected at least %d columns, got %d", itemBaseColumns, len(row))
	}

	category, err := models.ParseCategory(row[1])
	if err != nil {
		return nil, err
	}

	count, err := strconv.Atoi(strings.TrimSpace(row[6]))
	if err != nil || count < 0 {
		return nil, fmt.Errorf("count %q is not a whole number of zero or more", row[6])
	}

	size, err := models.ParseSize(category, row[itemBaseColumns:])
	if err != nil {
		return nil, err
	}

	item := &models.Item{
		ID:       id,
		Name:     strings.TrimSpace(row[0]),
		Category: category,
		Gender:   strings.TrimSpace(row[2]),
		Image:    strings.TrimSpace(row[3]),
		Brand:    strings.TrimSpace(row[4]),
		Color:    strings.TrimSpace(row[5]),
		Count:    count,
		Size:     size,
	}
	if item.Name == "" || item.Gender == "" || item.Color == "" {
		return nil, fmt.Errorf("name, gender and color are required")
	}
	return item, nil
}
