package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// ClientRepo provides data access to the studio-scoped clients table.
// Emails are stored normalised (lower case, trimmed) by the caller.
type ClientRepo struct {
	db *sql.DB
}

// NewClientRepo returns a new ClientRepo bound to the given database.
func NewClientRepo(db *sql.DB) *ClientRepo { return &ClientRepo{db: db} }

const clientColumns = `id, studio_id, email, full_name, is_guest, account_id, created_at`

func scanClient(s rowScanner) (*model.Client, error) {
	var (
		c       model.Client
		account sql.NullString
	)
	if err := s.Scan(&c.ID, &c.StudioID, &c.Email, &c.FullName, &c.IsGuest, &account, &c.CreatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	c.AccountID = nullString(account)
	return &c, nil
}

// Get loads a client of the studio.
func (r *ClientRepo) Get(ctx context.Context, studioID, id string) (*model.Client, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ? AND studio_id = ?`, id, studioID))
}

// ByStudioEmail finds the client row of email inside one studio.
func (r *ClientRepo) ByStudioEmail(ctx context.Context, studioID, email string) (*model.Client, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE studio_id = ? AND email = ?`, studioID, email))
}

// AccountByEmail finds a non-guest client with email under any studio,
// preferring the oldest row.
func (r *ClientRepo) AccountByEmail(ctx context.Context, email string) (*model.Client, error) {
	return scanClient(r.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients
		 WHERE email = ? AND is_guest = 0
		 ORDER BY created_at LIMIT 1`, email))
}

// Create inserts c.  A duplicate (studio_id, email) is ErrConflict.
func (r *ClientRepo) Create(ctx context.Context, c *model.Client) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO clients (id, studio_id, email, full_name, is_guest, account_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.StudioID, c.Email, c.FullName, c.IsGuest, strPtr(c.AccountID), c.CreatedAt.UTC())
	return mapWriteErr(err)
}
