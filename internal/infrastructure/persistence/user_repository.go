package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/permitworks/backend/internal/domain/models"
	"github.com/permitworks/backend/pkg/constants"
)

// UserRepository handles database operations for users and groups.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, company_id, name, email, role, password_hash, created_time"

// FindByEmail loads a user by email
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE email = ?", userColumns, constants.TableUser)
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// FindByID loads a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", userColumns, constants.TableUser)
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

// CheckUserExistsByEmail reports whether any user has the given email
func (r *UserRepository) CheckUserExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE email = ?)", constants.TableUser)
	err := r.db.QueryRowContext(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Insert creates a new user
func (r *UserRepository) Insert(ctx context.Context, exec Executor, user *models.User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, constants.TableUser, userColumns)

	_, err := exec.ExecContext(ctx, query,
		user.ID, user.CompanyID, user.Name, user.Email, user.Role, user.PasswordHash, user.CreatedTime)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// ListGroupIDs returns the IDs of groups the user belongs to
func (r *UserRepository) ListGroupIDs(ctx context.Context, userID string) ([]string, error) {
	query := fmt.Sprintf("SELECT group_id FROM %s WHERE user_id = ?", constants.TableGroupMember)

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListGroupMemberIDs returns the user IDs belonging to a group
func (r *UserRepository) ListGroupMemberIDs(ctx context.Context, exec Executor, groupID string) ([]string, error) {
	query := fmt.Sprintf("SELECT user_id FROM %s WHERE group_id = ?", constants.TableGroupMember)

	rows, err := exec.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UserRepository) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedTime)
	if err != nil {
		return nil, err
	}
	return u, nil
}
