package servicetest

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// Studios implements service.StudioStore.
type Studios struct{ s *Store }

func (v *Studios) Settings(_ context.Context, studioID string) (model.StudioSettings, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	st, ok := v.s.studios[studioID]
	if !ok {
		return model.StudioSettings{StudioID: studioID}, repository.ErrNotFound
	}
	return st, nil
}

func (v *Studios) Trainer(_ context.Context, studioID, trainerID string) (*model.Trainer, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.trainers[trainerID]
	if !ok || (studioID != "" && t.StudioID != studioID) {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (v *Studios) Service(_ context.Context, studioID, serviceID string) (*model.Service, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	sv, ok := v.s.services[serviceID]
	if !ok || sv.StudioID != studioID {
		return nil, repository.ErrNotFound
	}
	return &sv, nil
}

func (v *Studios) AvailabilityRules(_ context.Context, trainerID string) ([]model.AvailabilityRule, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.AvailabilityRule
	for _, r := range v.s.rules {
		if r.TrainerID == trainerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (v *Studios) BlockedWindows(_ context.Context, trainerID string, from, to time.Time) ([]model.BlockedWindow, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []model.BlockedWindow
	for _, b := range v.s.blocks {
		if b.TrainerID == trainerID && b.StartsAt.Before(to) && b.EndsAt.After(from) {
			out = append(out, b)
		}
	}
	return out, nil
}

// ClientStore implements service.ClientStore.  BeforeCreate, when set,
// runs ahead of every insert and may seed a competing row.
type ClientStore struct {
	s *Store

	BeforeCreate func(c model.Client)
}

func (v *ClientStore) Get(_ context.Context, studioID, id string) (*model.Client, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	c, ok := v.s.clients[id]
	if !ok || c.StudioID != studioID {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (v *ClientStore) ByStudioEmail(_ context.Context, studioID, email string) (*model.Client, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, c := range v.s.clients {
		if c.StudioID == studioID && strings.EqualFold(c.Email, email) {
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (v *ClientStore) AccountByEmail(_ context.Context, email string) (*model.Client, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var matches []model.Client
	for _, c := range v.s.clients {
		if !c.IsGuest && strings.EqualFold(c.Email, email) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.Before(matches[j].CreatedAt) })
	return &matches[0], nil
}

func (v *ClientStore) Create(_ context.Context, c *model.Client) error {
	if v.BeforeCreate != nil {
		v.BeforeCreate(*c)
	}
	var err error
	v.s.write(func() {
		for _, o := range v.s.clients {
			if o.ID == c.ID || (o.StudioID == c.StudioID && strings.EqualFold(o.Email, c.Email)) {
				err = repository.ErrConflict
				return
			}
		}
		v.s.clients[c.ID] = *c
	})
	return err
}

// PaymentEvents implements service.PaymentEventStore.
type PaymentEvents struct{ s *Store }

func (v *PaymentEvents) Begin(_ context.Context, eventID, _, _ string) (bool, error) {
	var fresh bool
	v.s.write(func() {
		processed, seen := v.s.payments[eventID]
		if !seen {
			v.s.payments[eventID] = false
		}
		fresh = !processed
	})
	return fresh, nil
}

func (v *PaymentEvents) MarkProcessed(_ context.Context, eventID string) error {
	v.s.write(func() { v.s.payments[eventID] = true })
	return nil
}

// Processed reports whether eventID was marked processed.
func (s *Store) Processed(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[eventID]
}
