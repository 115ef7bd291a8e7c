package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iliyamo/trainer-booking/internal/booking"
	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// IdentityResolver maps an anonymous email to a client of one studio.
// A person with an account elsewhere is linked through AccountID rather
// than shared across tenants.
type IdentityResolver struct {
	clients ClientStore
	log     *zap.Logger
	now     func() time.Time
}

// NewIdentityResolver returns a resolver over clients.
func NewIdentityResolver(clients ClientStore, log *zap.Logger, now func() time.Time) *IdentityResolver {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &IdentityResolver{clients: clients, log: log, now: now}
}

// NormalizeEmail trims and lower-cases email and checks its syntax.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", booking.Validation("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", booking.Validation("invalid email %q", email)
	}
	return email, nil
}

// Resolve returns the studio's client for email.  Lookup order: the
// studio's own row, then a non-guest client under any studio (a new
// studio row sharing its AccountID is created), then a new guest.
func (r *IdentityResolver) Resolve(ctx context.Context, studioID, email, fullName string) (*model.Client, error) {
	if studioID == "" {
		return nil, booking.Validation("studio_id is required")
	}
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}

	c, err := r.clients.ByStudioEmail(ctx, studioID, email)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	c = &model.Client{
		ID:        uuid.NewString(),
		StudioID:  studioID,
		Email:     email,
		FullName:  strings.TrimSpace(fullName),
		IsGuest:   true,
		CreatedAt: r.now().UTC(),
	}
	account, err := r.clients.AccountByEmail(ctx, email)
	switch {
	case err == nil:
		c.IsGuest = false
		accountID := account.ID
		if account.AccountID != nil {
			accountID = *account.AccountID
		}
		c.AccountID = &accountID
		if c.FullName == "" {
			c.FullName = account.FullName
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	if err := r.clients.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// lost a race with a concurrent request for the same email
			return r.clients.ByStudioEmail(ctx, studioID, email)
		}
		return nil, err
	}
	r.log.Info("client created",
		zap.String("studio_id", studioID),
		zap.String("client_id", c.ID),
		zap.Bool("guest", c.IsGuest))
	return c, nil
}
