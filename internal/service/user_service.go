package service

import (
	"context"
	"fmt"
	"strings"

	"closet-service/internal/apperr"
	"closet-service/internal/models"
	"closet-service/internal/repository"
	"closet-service/internal/util"

	"go.uber.org/zap"
)

// UserService manages staff and recipients.
type UserService struct {
	repo      repository.Repository
	minAdmins int
	logger    *zap.Logger
}

// NewUserService creates a user service that keeps at least minAdmins
// human admins at all times.
func NewUserService(repo repository.Repository, minAdmins int) *UserService {
	if minAdmins < 1 {
		minAdmins = 1
	}
	return &UserService{repo: repo, minAdmins: minAdmins, logger: util.GetLogger()}
}

// UserInput carries the editable fields of a user.
type UserInput struct {
	Onyen string `json:"onyen"`
	Role  string `json:"role"`
	PID   string `json:"pid"`
	Email string `json:"email"`
}

func isReserved(onyen string) bool {
	return strings.EqualFold(strings.TrimSpace(onyen), models.SystemOnyen)
}

// Role resolves the role of onyen for access checks. Unknown people are
// ordinary users; the system identity can never act through a request.
func (s *UserService) Role(ctx context.Context, onyen string) (models.Role, error) {
	if isReserved(onyen) {
		return models.RoleDisabled, nil
	}
	u, err := s.repo.GetUser(ctx, onyen)
	if err != nil {
		return "", storeError("A problem occurred when resolving the user", err)
	}
	if u == nil {
		return models.RoleUser, nil
	}
	return u.Role, nil
}

// GetUser returns the user with onyen.
func (s *UserService) GetUser(ctx context.Context, onyen string) (*models.User, error) {
	u, err := s.repo.GetUser(ctx, onyen)
	if err != nil {
		return nil, storeError("A problem occurred when retrieving the user", err)
	}
	if u == nil {
		return nil, apperr.BadRequest("user %s could not be retrieved", onyen)
	}
	return u, nil
}

// ListUsers returns every user.
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, storeError("A problem occurred when listing users", err)
	}
	return users, nil
}

func parseUserInput(in UserInput) (*models.User, error) {
	onyen := strings.TrimSpace(in.Onyen)
	if onyen == "" {
		return nil, apperr.BadRequest("onyen is required")
	}
	if isReserved(onyen) {
		return nil, ErrReservedUser
	}
	role := models.RoleUser
	if in.Role != "" {
		var err error
		if role, err = models.ParseRole(strings.TrimSpace(in.Role)); err != nil {
			return nil, apperr.BadRequestWrap(err, "invalid role")
		}
	}
	return &models.User{
		Onyen: onyen,
		Role:  role,
		PID:   strings.TrimSpace(in.PID),
		Email: strings.TrimSpace(in.Email),
	}, nil
}

// CreateUser adds a user.
func (s *UserService) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	u, err := parseUserInput(in)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		existing, err := r.GetUser(ctx, u.Onyen)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.BadRequest("user %s already exists", u.Onyen)
		}
		return r.CreateUser(ctx, u)
	})
	if err != nil {
		return nil, storeError("A problem occurred when creating the user", err)
	}

	s.logger.Info("User created", zap.String("onyen", u.Onyen), zap.String("role", string(u.Role)))
	return u, nil
}

// EditUser changes role and contact details of a user. Demoting an admin is
// refused when it would leave too few admins.
func (s *UserService) EditUser(ctx context.Context, in UserInput) (*models.User, error) {
	u, err := parseUserInput(in)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		current, err := r.LockUser(ctx, u.Onyen)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.BadRequest("user %s could not be retrieved", u.Onyen)
		}
		if current.Role == models.RoleAdmin && u.Role != models.RoleAdmin {
			if err := s.checkAdminRemoval(ctx, r); err != nil {
				return err
			}
		}
		u.FirstItemDate = current.FirstItemDate
		u.ItemsReceived = current.ItemsReceived
		return r.UpdateUser(ctx, u)
	})
	if err != nil {
		return nil, storeError("A problem occurred when editing the user", err)
	}

	s.logger.Info("User updated", zap.String("onyen", u.Onyen), zap.String("role", string(u.Role)))
	return u, nil
}

// DeleteUser removes a user. The last admins cannot be removed.
func (s *UserService) DeleteUser(ctx context.Context, onyen string) error {
	if isReserved(onyen) {
		return ErrReservedUser
	}

	err := s.repo.WithTx(ctx, func(r repository.Repository) error {
		current, err := r.LockUser(ctx, onyen)
		if err != nil {
			return err
		}
		if current == nil {
			return apperr.BadRequest("user %s could not be retrieved", onyen)
		}
		if current.Role == models.RoleAdmin {
			if err := s.checkAdminRemoval(ctx, r); err != nil {
				return err
			}
		}
		return r.DeleteUser(ctx, onyen)
	})
	if err != nil {
		return storeError("A problem occurred when deleting the user", err)
	}

	s.logger.Info("User deleted", zap.String("onyen", onyen))
	return nil
}

// checkAdminRemoval fails when taking away one admin would go below the minimum.
func (s *UserService) checkAdminRemoval(ctx context.Context, r repository.Repository) error {
	admins, err := r.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if admins-1 < s.minAdmins {
		return apperr.BadRequest("At least %d admin(s) besides %s must remain", s.minAdmins, models.SystemOnyen)
	}
	return nil
}

// ImportUsersCSV creates a user of role user for every row. Columns are
// onyen, pid and email. The whole file is rejected on the first bad row.
func (s *UserService) ImportUsersCSV(ctx context.Context, data []byte, hasHeader bool) (int, error) {
	rows, err := readCSV(data, hasHeader)
	if err != nil {
		util.CSVImportsFailedTotal.WithLabelValues("users").Inc()
		return 0, err
	}

	err = s.repo.WithTx(ctx, func(r repository.Repository) error {
		for i, row := range rows {
			line := i + 1
			if hasHeader {
				line++
			}
			if len(row) < 3 {
				return apperr.BadRequest("Row %d could not be imported: expected onyen, pid and email", line)
			}

			u, err := parseUserInput(UserInput{Onyen: row[0], PID: row[1], Email: row[2]})
			if err != nil {
				return apperr.BadRequestWrap(err, fmt.Sprintf("Row %d could not be imported", line))
			}

			existing, err := r.GetUser(ctx, u.Onyen)
			if err != nil {
				return err
			}
			if existing != nil {
				return apperr.BadRequest("Row %d could not be imported: user %s already exists", line, u.Onyen)
			}
			if err := r.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		util.CSVImportsFailedTotal.WithLabelValues("users").Inc()
		return 0, storeError("A problem occurred when importing users", err)
	}

	util.CSVRowsImportedTotal.WithLabelValues("users").Add(float64(len(rows)))
	s.logger.Info("Users imported", zap.Int("rows", len(rows)))
	return len(rows), nil
}

// ClearUsers deletes every user who is neither an admin nor the system user.
func (s *UserService) ClearUsers(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteNonAdminUsers(ctx)
	if err != nil {
		return 0, storeError("A problem occurred when clearing users", err)
	}
	s.logger.Warn("Users cleared", zap.Int64("count", n))
	return n, nil
}
