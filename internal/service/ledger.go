package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// Ledger is the only writer of sessions_used and credit_usages.  Every
// deduction and reversal is keyed by booking id, so retries are no-ops.
type Ledger struct {
	tx    TxRunner
	store CreditStore
	log   *zap.Logger
	now   func() time.Time
}

// NewLedger wires a Ledger.  now defaults to time.Now.
func NewLedger(tx TxRunner, store CreditStore, log *zap.Logger, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{tx: tx, store: store, log: log, now: now}
}

// DeductResult describes the outcome of a deduction.
type DeductResult struct {
	Usage          *model.CreditUsage `json:"usage,omitempty"`
	AlreadyApplied bool               `json:"already_applied"`
	Remaining      int                `json:"remaining"`
}

var errUsageRace = errors.New("credit usage inserted concurrently")

// Deduct charges credits for bookingID to one of the client's active
// packages.  A booking that was already charged returns AlreadyApplied
// without touching any balance.  Packages found expired on the way are
// marked expired even when the deduction itself fails.
func (l *Ledger) Deduct(ctx context.Context, clientID, bookingID string, credits int) (DeductResult, error) {
	var (
		res    DeductResult
		bizErr error
	)
	err := l.tx.WithTx(ctx, func(tx *sql.Tx) error {
		r, err := l.DeductTx(ctx, tx, clientID, bookingID, credits)
		if err != nil {
			var de *booking.Error
			if errors.As(err, &de) {
				// keep the lazy expiry updates, report the shortfall
				bizErr = err
				return nil
			}
			return err
		}
		res = r
		return nil
	})
	if errors.Is(err, errUsageRace) {
		return DeductResult{AlreadyApplied: true}, nil
	}
	if err != nil {
		return DeductResult{}, err
	}
	return res, bizErr
}

// DeductTx is Deduct inside a caller-owned transaction.
func (l *Ledger) DeductTx(ctx context.Context, tx *sql.Tx, clientID, bookingID string, credits int) (DeductResult, error) {
	if credits <= 0 {
		return DeductResult{}, booking.Validation("credits must be positive")
	}
	now := l.now().UTC()

	if _, err := l.store.UsageByBookingTx(ctx, tx, bookingID); err == nil {
		return DeductResult{AlreadyApplied: true}, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return DeductResult{}, err
	}

	pkgs, err := l.store.ActivePackagesForUpdateTx(ctx, tx, clientID)
	if err != nil {
		return DeductResult{}, err
	}
	var live []model.ClientPackage
	for _, p := range pkgs {
		if p.ExpiredAt(now) {
			if err := l.store.MarkExpiredTx(ctx, tx, p.ID); err != nil {
				return DeductResult{}, err
			}
			continue
		}
		live = append(live, p)
	}
	if len(live) == 0 {
		return DeductResult{}, booking.ErrNoActivePackage
	}

	// Packages arrive in consumption order; the first one that covers the
	// whole amount is charged.  Deductions are never split.
	var chosen *model.ClientPackage
	best := 0
	for i := range live {
		if r := live[i].SessionsRemaining(); r >= credits {
			chosen = &live[i]
			break
		} else if r > best {
			best = r
		}
	}
	if chosen == nil {
		return DeductResult{}, &booking.Error{
			Code:    booking.CodeInsufficientCredits,
			Message: fmt.Sprintf("%d credits required, largest package has %d remaining", credits, best),
		}
	}

	if err := l.store.ConsumeTx(ctx, tx, chosen.ID, credits); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return DeductResult{}, booking.ErrInsufficientCredits
		}
		return DeductResult{}, err
	}
	usage := &model.CreditUsage{
		ID:              uuid.NewString(),
		ClientPackageID: chosen.ID,
		BookingID:       bookingID,
		CreditsUsed:     credits,
		CreatedAt:       now,
	}
	if err := l.store.CreateUsageTx(ctx, tx, usage); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return DeductResult{}, errUsageRace
		}
		return DeductResult{}, err
	}

	remaining := 0
	for _, p := range live {
		remaining += p.SessionsRemaining()
	}
	remaining -= credits

	l.log.Info("credits deducted",
		zap.String("client_id", clientID),
		zap.String("booking_id", bookingID),
		zap.String("package_id", chosen.ID),
		zap.Int("credits", credits),
		zap.Int("remaining", remaining))
	return DeductResult{Usage: usage, Remaining: remaining}, nil
}

// RefundTx reverses the usage row of bookingID inside tx.  It returns
// the reversed row, or nil when the booking was never charged.  A
// package that cannot absorb the reversal yields ErrLedgerInconsistent.
func (l *Ledger) RefundTx(ctx context.Context, tx *sql.Tx, bookingID string) (*model.CreditUsage, error) {
	u, err := l.store.UsageByBookingTx(ctx, tx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := l.store.RestoreTx(ctx, tx, u.ClientPackageID, u.CreditsUsed); err != nil {
		if errors.Is(err, repository.ErrConflict) || errors.Is(err, repository.ErrNotFound) {
			return nil, &booking.Error{
				Code:    booking.CodeLedgerInconsistent,
				Message: fmt.Sprintf("package %s cannot absorb refund of booking %s", u.ClientPackageID, bookingID),
			}
		}
		return nil, err
	}
	if err := l.store.DeleteUsageTx(ctx, tx, u.ID); err != nil {
		return nil, err
	}
	l.log.Info("credits refunded",
		zap.String("booking_id", bookingID),
		zap.String("package_id", u.ClientPackageID),
		zap.Int("credits", u.CreditsUsed))
	return u, nil
}

// Balance sums the remaining credits of the client's usable packages.
func (l *Ledger) Balance(ctx context.Context, clientID string) (int, error) {
	pkgs, err := l.store.ListPackages(ctx, clientID)
	if err != nil {
		return 0, err
	}
	return usableBalance(pkgs, l.now()), nil
}

func usableBalance(pkgs []model.ClientPackage, now time.Time) int {
	total := 0
	for _, p := range pkgs {
		if p.Status == model.PackageActive && !p.ExpiredAt(now) {
			total += p.SessionsRemaining()
		}
	}
	return total
}

// Packages lists every package of the client.
func (l *Ledger) Packages(ctx context.Context, clientID string) ([]model.ClientPackage, error) {
	return l.store.ListPackages(ctx, clientID)
}

// AssignPackage grants a new package of sessions to the client.
func (l *Ledger) AssignPackage(ctx context.Context, clientID, packageID string, sessions int, expiresAt *time.Time) (*model.ClientPackage, error) {
	if clientID == "" || packageID == "" {
		return nil, booking.Validation("client_id and package_id are required")
	}
	if sessions <= 0 {
		return nil, booking.Validation("sessions_total must be positive")
	}
	now := l.now().UTC()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, booking.Validation("expires_at must be in the future")
	}
	p := &model.ClientPackage{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		PackageID:     packageID,
		SessionsTotal: sessions,
		ExpiresAt:     expiresAt,
		Status:        model.PackageActive,
		CreatedAt:     now,
	}
	if err := l.store.CreatePackage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ExpirePackages marks every package whose expiry has passed.
func (l *Ledger) ExpirePackages(ctx context.Context) (int64, error) {
	return l.store.ExpirePackages(ctx, l.now())
}
