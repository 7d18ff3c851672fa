package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ItemService owns the item catalog.
type ItemService struct {
	repo     repository.Repository
	locker   Locker
	validate *validator.Validate
	logger   *zap.Logger
}

// NewItemService creates a new item service. locker may be nil, in which
// case CSV imports are not serialized across instances.
func NewItemService(repo repository.Repository, locker Locker) *ItemService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return &ItemService{
		repo:     repo,
		locker:   locker,
		validate: v,
		logger:   util.GetLogger(),
	}
}

// CreateItemInput is a new item as entered by staff.
type CreateItemInput struct {
	ID       string           `json:"id"`
	Name     string           `json:"name" validate:"required,max=200"`
	Category string           `json:"category" validate:"required,oneof=shirt pant shoe suit shirts pants shoes suits"`
	Gender   string           `json:"gender" validate:"required"`
	Image    string           `json:"image" validate:"omitempty,max=2048"`
	Brand    string           `json:"brand" validate:"max=200"`
	Color    string           `json:"color" validate:"required"`
	Count    int              `json:"count" validate:"gte=0"`
	Size     models.SizeInput `json:"size"`
}

// GetItem returns the item with id.
func (s *ItemService) GetItem(ctx context.Context, id string) (*models.Item, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, storeError("A problem occurred when retrieving the item", err)
	}
	if item == nil {
		return nil, apperr.BadRequest("item %s could not be retrieved", id)
	}
	return item, nil
}

// FindItem returns the first item matching filter, or nil when none does.
func (s *ItemService) FindItem(ctx context.Context, filter models.ItemFilter) (*models.Item, error) {
	item, err := s.repo.FindItem(ctx, filter)
	if err != nil {
		return nil, storeError("A problem occurred when looking up the item", err)
	}
	return item, nil
}

// ListItems returns every item matching filter.
func (s *ItemService) ListItems(ctx context.Context, filter models.ItemFilter) ([]models.Item, error) {
	items, err := s.repo.ListItems(ctx, filter)
	if err != nil {
		return nil, storeError("A problem occurred when listing items", err)
	}
	return items, nil
}

// Search matches term against item names, brands and colors. A term equal to
// an item id, as scanned from a label, matches that item.
func (s *ItemService) Search(ctx context.Context, term string) ([]models.Item, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []models.Item{}, nil
	}
	items, err := s.repo.SearchItems(ctx, term)
	if err != nil {
		return nil, storeError("A problem occurred when searching items", err)
	}
	return items, nil
}

// CreateItem validates in and stores the item with its size.
func (s *ItemService) CreateItem(ctx context.Context, in CreateItemInput) (*models.Item, error) {
	ctx, span := util.StartSpan(ctx, "ItemService.CreateItem")
	defer span.End()

	item, err := s.buildItem(in)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		return r.CreateItem(ctx, item)
	})
	if err != nil {
		return nil, storeError("A problem occurred when saving the item", err)
	}

	s.logger.Info("Item created",
		zap.String("item_id", item.ID),
		zap.String("category", string(item.Category)),
		zap.Int("count", item.Count))
	return item, nil
}

// buildItem checks every field of in and reports all problems at once.
func (s *ItemService) buildItem(in CreateItemInput) (*models.Item, error) {
	var problems []string

	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, apperr.Internal("A problem occurred when validating the item", err)
		}
		for _, fe := range verrs {
			problems = append(problems, describeFieldError(fe))
		}
	}

	var size models.Size
	category, catErr := models.ParseCategory(in.Category)
	if catErr == nil {
		var err error
		if size, err = in.Size.ToSize(category); err != nil {
			problems = append(problems, "size: "+err.Error())
		}
	}

	if len(problems) > 0 {
		return nil, apperr.BadRequest("The following values are invalid:\n- %s", strings.Join(problems, "\n- "))
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.New().String()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.BadRequest("The following values are invalid:\n- id: must be a UUID")
	}

	return &models.Item{
		ID:       id,
		Name:     strings.TrimSpace(in.Name),
		Category: category,
		Gender:   strings.TrimSpace(in.Gender),
		Image:    strings.TrimSpace(in.Image),
		Brand:    strings.TrimSpace(in.Brand),
		Color:    strings.TrimSpace(in.Color),
		Count:    in.Count,
		Size:     size,
	}, nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + ": is required"
	case "oneof":
		return fmt.Sprintf("%s: must be one of %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s: must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s: must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s: failed %s", fe.Field(), fe.Tag())
	}
}

// EditItem updates the descriptive fields of an item. Stock is only changed
// through the ledger.
func (s *ItemService) EditItem(ctx context.Context, id string, upd models.ItemUpdate) (*models.Item, error) {
	if strings.TrimSpace(upd.Name) == "" || strings.TrimSpace(upd.Gender) == "" || strings.TrimSpace(upd.Color) == "" {
		return nil, apperr.BadRequest("name, gender and color are required")
	}

	var item *models.Item
	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		if err := r.UpdateItem(ctx, id, upd); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperr.BadRequest("item %s could not be retrieved", id)
			}
			return err
		}
		var err error
		item, err = r.GetItem(ctx, id)
		return err
	})
	if err != nil {
		return nil, storeError("A problem occurred when editing the item", err)
	}
	return item, nil
}

// DeleteItem deletes an item that no transaction references.
func (s *ItemService) DeleteItem(ctx context.Context, id string) error {
	err := s.repo.DeleteItem(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.BadRequest("item %s could not be retrieved", id)
	}
	if err != nil {
		return storeError("A problem occurred when deleting the item", err)
	}
	s.logger.Info("Item deleted", zap.String("item_id", id))
	return nil
}

// DeleteAllItems empties the catalog.
func (s *ItemService) DeleteAllItems(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllItems(ctx)
	if err != nil {
		return 0, storeError("A problem occurred when deleting all items", err)
	}
	s.logger.Warn("All items deleted", zap.Int64("count", n))
	return n, nil
}

// DeleteOutOfStock deletes items with no stock left.
func (s *ItemService) DeleteOutOfStock(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteOutOfStockItems(ctx)
	if err != nil {
		return 0, storeError("A problem occurred when deleting out of stock items", err)
	}
	s.logger.Info("Out of stock items deleted", zap.Int64("count", n))
	return n, nil
}
