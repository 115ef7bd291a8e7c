package servicetest

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// Credits implements service.CreditStore with the same guards as the
// SQL conditional updates.
type Credits struct{ s *Store }

func (v *Credits) UsageByBookingTx(_ context.Context, _ *sql.Tx, bookingID string) (*model.CreditUsage, error) {
	var (
		u     model.CreditUsage
		found bool
	)
	v.s.read(func() {
		for _, o := range v.s.usages {
			if o.BookingID == bookingID {
				u, found = o, true
				return
			}
		}
	})
	if !found {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (v *Credits) ActivePackagesForUpdateTx(_ context.Context, _ *sql.Tx, clientID string) ([]model.ClientPackage, error) {
	out := []model.ClientPackage{}
	v.s.read(func() {
		for _, p := range v.s.packages {
			if p.ClientID == clientID && p.Status == model.PackageActive {
				out = append(out, p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt != nil:
			return false
		case a.ExpiresAt != nil && b.ExpiresAt == nil:
			return true
		case a.ExpiresAt != nil && !a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out, nil
}

func (v *Credits) MarkExpiredTx(_ context.Context, _ *sql.Tx, packageID string) error {
	v.s.read(func() {
		if p, ok := v.s.packages[packageID]; ok && p.Status == model.PackageActive {
			p.Status = model.PackageExpired
			v.s.packages[packageID] = p
		}
	})
	return nil
}

func (v *Credits) ConsumeTx(_ context.Context, _ *sql.Tx, packageID string, credits int) error {
	var err error
	v.s.read(func() {
		p, ok := v.s.packages[packageID]
		if !ok || p.Status != model.PackageActive || p.SessionsTotal-p.SessionsUsed < credits {
			err = repository.ErrConflict
			return
		}
		p.SessionsUsed += credits
		if p.SessionsUsed >= p.SessionsTotal {
			p.Status = model.PackageExhausted
		}
		v.s.packages[packageID] = p
	})
	return err
}

func (v *Credits) RestoreTx(_ context.Context, _ *sql.Tx, packageID string, credits int) error {
	var err error
	v.s.read(func() {
		p, ok := v.s.packages[packageID]
		if v.s.FailRestore || !ok || p.SessionsUsed < credits {
			err = repository.ErrConflict
			return
		}
		p.SessionsUsed -= credits
		if p.Status == model.PackageExhausted && p.SessionsUsed < p.SessionsTotal {
			p.Status = model.PackageActive
		}
		v.s.packages[packageID] = p
	})
	return err
}

func (v *Credits) CreateUsageTx(_ context.Context, _ *sql.Tx, u *model.CreditUsage) error {
	var err error
	v.s.read(func() {
		for _, o := range v.s.usages {
			if o.BookingID == u.BookingID {
				err = repository.ErrConflict
				return
			}
		}
		v.s.usages[u.ID] = *u
	})
	return err
}

func (v *Credits) DeleteUsageTx(_ context.Context, _ *sql.Tx, id string) error {
	v.s.read(func() { delete(v.s.usages, id) })
	return nil
}

func (v *Credits) list(clientID string) []model.ClientPackage {
	out := []model.ClientPackage{}
	for _, p := range v.s.packages {
		if p.ClientID == clientID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (v *Credits) ListPackages(_ context.Context, clientID string) ([]model.ClientPackage, error) {
	var out []model.ClientPackage
	v.s.read(func() { out = v.list(clientID) })
	return out, nil
}

func (v *Credits) CreatePackage(_ context.Context, p *model.ClientPackage) error {
	var err error
	v.s.write(func() {
		if _, ok := v.s.packages[p.ID]; ok {
			err = repository.ErrConflict
			return
		}
		v.s.packages[p.ID] = *p
	})
	return err
}

func (v *Credits) ExpirePackages(_ context.Context, now time.Time) (int64, error) {
	var n int64
	v.s.write(func() {
		for id, p := range v.s.packages {
			if p.Status == model.PackageActive && p.ExpiredAt(now) {
				p.Status = model.PackageExpired
				v.s.packages[id] = p
				n++
			}
		}
	})
	return n, nil
}
