package model

import "time"

// Staff roles stored in staff_users.role.
const (
	RoleTrainer = "TRAINER"
	RoleAdmin   = "ADMIN"
)

// StaffUser is a studio staff account able to sign in.
//
// Fields:
//  ID           – staff_users.id
//  StudioID     – studio the account belongs to.
//  TrainerID    – trainer profile linked to the account (nullable for admins).
//  Email        – unique email address.
//  PasswordHash – bcrypt hash.
//  Role         – TRAINER or ADMIN.
//  IsActive     – disabled accounts cannot sign in.
type StaffUser struct {
	ID           string
	StudioID     string
	TrainerID    *string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
