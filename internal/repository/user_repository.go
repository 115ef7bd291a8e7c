package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/utils"
)

// UserRepo provides data access to the staff_users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const staffColumns = "id,studio_id,trainer_id,email,password_hash,role,is_active,created_at,updated_at"

func scanStaff(s rowScanner) (model.StaffUser, error) {
	var (
		u         model.StaffUser
		trainerID sql.NullString
	)
	err := s.Scan(&u.ID, &u.StudioID, &trainerID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.TrainerID = nullString(trainerID)
	return u, mapReadErr(err)
}

// Create hashes password and inserts a staff account, returning its ID.
func (r *UserRepo) Create(ctx context.Context, studioID string, trainerID *string, email, password, role string, cost int) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = r.DB.ExecContext(ctx,
		"INSERT INTO staff_users (id, studio_id, trainer_id, email, password_hash, role) VALUES (?,?,?,?,?,?)",
		id, studioID, strPtr(trainerID), email, hash, role)
	if err != nil {
		if IsDuplicate(err) {
			return "", ErrEmailExists
		}
		return "", err
	}
	return id, nil
}

// GetByEmail fetches a staff user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.StaffUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanStaff(r.DB.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a staff user by id.
func (r *UserRepo) GetByID(ctx context.Context, id string) (model.StaffUser, error) {
	return scanStaff(r.DB.QueryRowContext(ctx,
		"SELECT "+staffColumns+" FROM staff_users WHERE id=? LIMIT 1", id))
}
