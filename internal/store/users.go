package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"closet-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const userSelect = `
	SELECT onyen, role, COALESCE(pid, '') AS pid, COALESCE(email, '') AS email,
	       first_item_date, items_received, system
	FROM users`

// GetUser retrieves a user, or nil when the onyen is unknown.
func (s *Store) GetUser(ctx context.Context, onyen string) (*models.User, error) {
	return s.getUser(ctx, userSelect+` WHERE onyen = $1`, onyen)
}

// LockUser retrieves a user and locks the row until the transaction ends.
func (s *Store) LockUser(ctx context.Context, onyen string) (*models.User, error) {
	return s.getUser(ctx, userSelect+` WHERE onyen = $1 FOR UPDATE`, onyen)
}

func (s *Store) getUser(ctx context.Context, query, onyen string) (*models.User, error) {
	var u models.User
	err := sqlx.GetContext(ctx, s.q, &u, query, onyen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

// ListUsers returns every user ordered by onyen.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := sqlx.SelectContext(ctx, s.q, &users, userSelect+` ORDER BY onyen`); err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// CreateUser inserts a human user.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (onyen, role, pid, email, first_item_date, items_received)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6)`,
		u.Onyen, u.Role, u.PID, u.Email, u.FirstItemDate, u.ItemsReceived)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// EnsureUser creates onyen with role user unless it already exists.
func (s *Store) EnsureUser(ctx context.Context, onyen string) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO users (onyen, role) VALUES ($1, $2)
		ON CONFLICT (onyen) DO NOTHING`,
		onyen, models.RoleUser)
	if err != nil {
		return fmt.Errorf("ensuring user: %w", err)
	}
	return nil
}

// UpdateUser updates role and contact fields. The system user is never matched.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	return s.execAffected(ctx, `
		UPDATE users SET role = $1, pid = NULLIF($2, ''), email = NULLIF($3, '')
		WHERE onyen = $4 AND NOT system`,
		u.Role, u.PID, u.Email, u.Onyen)
}

// DeleteUser deletes a human user.
func (s *Store) DeleteUser(ctx context.Context, onyen string) error {
	return s.execAffected(ctx, `DELETE FROM users WHERE onyen = $1 AND NOT system`, onyen)
}

// CountAdmins counts human admins.
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, s.q, &n,
		`SELECT COUNT(*) FROM users WHERE role = $1 AND NOT system`, models.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("counting admins: %w", err)
	}
	return n, nil
}

// RecordItemsReceived adds quantity to the user's tally and sets the first
// item date when it is still empty.
func (s *Store) RecordItemsReceived(ctx context.Context, onyen string, quantity int, at time.Time) error {
	return s.execAffected(ctx, `
		UPDATE users
		SET items_received = items_received + $1,
		    first_item_date = COALESCE(first_item_date, $2)
		WHERE onyen = $3`,
		quantity, at, onyen)
}

// DeleteNonAdminUsers deletes every user that is neither an admin nor the system user.
func (s *Store) DeleteNonAdminUsers(ctx context.Context) (int64, error) {
	return s.execCount(ctx, `DELETE FROM users WHERE role <> $1 AND NOT system`, models.RoleAdmin)
}
