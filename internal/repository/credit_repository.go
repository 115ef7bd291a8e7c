package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
)

// CreditRepo provides data access to client_packages and credit_usages.
// sessions_used is only changed by ConsumeTx and RestoreTx, both of
// which are conditional updates guarded in SQL, so concurrent
// completions cannot drive the balance negative.
type CreditRepo struct {
	db *sql.DB
}

// NewCreditRepo returns a new CreditRepo bound to the given database.
func NewCreditRepo(db *sql.DB) *CreditRepo { return &CreditRepo{db: db} }

const packageColumns = `id, client_id, package_id, sessions_total, sessions_used, expires_at, status, created_at`

func scanPackage(s rowScanner) (*model.ClientPackage, error) {
	var (
		p         model.ClientPackage
		expiresAt sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.ClientID, &p.PackageID, &p.SessionsTotal, &p.SessionsUsed,
		&expiresAt, &p.Status, &p.CreatedAt); err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		p.ExpiresAt = &t
	}
	return &p, nil
}

func scanPackages(rows *sql.Rows) ([]model.ClientPackage, error) {
	defer rows.Close()
	out := []model.ClientPackage{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivePackagesForUpdateTx locks and returns the client's active
// packages in consumption order: soonest expiry first, packages without
// expiry last, ties broken by creation time.
func (r *CreditRepo) ActivePackagesForUpdateTx(ctx context.Context, tx *sql.Tx, clientID string) ([]model.ClientPackage, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+packageColumns+` FROM client_packages
		 WHERE client_id = ? AND status = 'active'
		 ORDER BY expires_at IS NULL, expires_at, created_at
		 FOR UPDATE`,
		clientID)
	if err != nil {
		return nil, err
	}
	return scanPackages(rows)
}

// MarkExpiredTx flips an active package to expired.
func (r *CreditRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, packageID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE client_packages SET status = 'expired' WHERE id = ? AND status = 'active'`,
		packageID)
	return err
}

// ConsumeTx adds credits to sessions_used when the package still has at
// least that many remaining, flipping it to exhausted when nothing is
// left.  ErrConflict means the guard did not match.
func (r *CreditRepo) ConsumeTx(ctx context.Context, tx *sql.Tx, packageID string, credits int) error {
	// MySQL evaluates SET assignments left to right, so the CASE sees the
	// incremented sessions_used.
	res, err := tx.ExecContext(ctx,
		`UPDATE client_packages
		 SET sessions_used = sessions_used + ?,
		     status = CASE WHEN sessions_used >= sessions_total THEN 'exhausted' ELSE status END
		 WHERE id = ? AND status = 'active' AND sessions_total - sessions_used >= ?`,
		credits, packageID, credits)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

// RestoreTx reverses a consumption.  An exhausted package becomes active
// again; an expired one stays expired.  ErrConflict means the package
// has fewer used sessions than the amount being restored.
func (r *CreditRepo) RestoreTx(ctx context.Context, tx *sql.Tx, packageID string, credits int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE client_packages
		 SET sessions_used = sessions_used - ?,
		     status = CASE WHEN status = 'exhausted' AND sessions_used < sessions_total THEN 'active' ELSE status END
		 WHERE id = ? AND sessions_used >= ?`,
		credits, packageID, credits)
	if err != nil {
		return mapWriteErr(err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

// UsageByBookingTx returns the usage row of a booking, locking it.
func (r *CreditRepo) UsageByBookingTx(ctx context.Context, tx *sql.Tx, bookingID string) (*model.CreditUsage, error) {
	var u model.CreditUsage
	err := tx.QueryRowContext(ctx,
		`SELECT id, client_package_id, booking_id, credits_used, created_at
		 FROM credit_usages WHERE booking_id = ? FOR UPDATE`,
		bookingID).Scan(&u.ID, &u.ClientPackageID, &u.BookingID, &u.CreditsUsed, &u.CreatedAt)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &u, nil
}

// CreateUsageTx inserts the audit row.  A second row for the same
// booking is rejected with ErrConflict.
func (r *CreditRepo) CreateUsageTx(ctx context.Context, tx *sql.Tx, u *model.CreditUsage) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO credit_usages (id, client_package_id, booking_id, credits_used, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.ClientPackageID, u.BookingID, u.CreditsUsed, u.CreatedAt.UTC())
	return mapWriteErr(err)
}

// DeleteUsageTx removes a usage row after its credits were restored.
func (r *CreditRepo) DeleteUsageTx(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM credit_usages WHERE id = ?`, id)
	return err
}

// CreatePackage inserts a new client package.
func (r *CreditRepo) CreatePackage(ctx context.Context, p *model.ClientPackage) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_packages (id, client_id, package_id, sessions_total, sessions_used, expires_at, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ClientID, p.PackageID, p.SessionsTotal, p.SessionsUsed, nullTime(p.ExpiresAt),
		string(p.Status), p.CreatedAt.UTC())
	return mapWriteErr(err)
}

// ListPackages returns every package of the client, newest first.
func (r *CreditRepo) ListPackages(ctx context.Context, clientID string) ([]model.ClientPackage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+packageColumns+` FROM client_packages WHERE client_id = ? ORDER BY created_at DESC`,
		clientID)
	if err != nil {
		return nil, err
	}
	return scanPackages(rows)
}

// ExpirePackages marks every active package whose expiry has passed.
func (r *CreditRepo) ExpirePackages(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE client_packages SET status = 'expired'
		 WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
