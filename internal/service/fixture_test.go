package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/service"
	"github.com/iliyamo/trainer-booking/internal/service/servicetest"
)

const (
	studioID  = "studio-1"
	trainerID = "trainer-1"
	clientID  = "client-1"
	serviceID = "svc-60"
)

// monday returns h:m on Monday 2026-03-02 UTC.
func monday(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

type fixture struct {
	store     *servicetest.Store
	clock     *servicetest.Clock
	emitter   *servicetest.Emitter
	reminders *servicetest.Reminders
	clients   *servicetest.ClientStore
	ledger    *service.Ledger
	res       *service.Reservations
	ids       *service.IdentityResolver
}

func newFixture(t *testing.T, settings ...func(*model.StudioSettings)) *fixture {
	t.Helper()
	st := servicetest.NewStore()
	clock := servicetest.NewClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))

	s := model.DefaultStudioSettings(studioID)
	for _, fn := range settings {
		fn(&s)
	}
	st.AddStudio(s)
	st.AddTrainer(model.Trainer{ID: trainerID, StudioID: studioID, Name: "Alex"})
	st.AddService(model.Service{ID: serviceID, StudioID: studioID, Name: "Personal training", DurationMinutes: 60, CreditsRequired: 1})
	st.AddClient(model.Client{ID: clientID, StudioID: studioID, Email: "sam@example.com", FullName: "Sam", CreatedAt: clock.Now()})

	f := &fixture{
		store:     st,
		clock:     clock,
		emitter:   &servicetest.Emitter{},
		reminders: &servicetest.Reminders{},
		clients:   st.ClientStore(),
	}
	f.ledger = service.NewLedger(st, st.Credits(), nil, clock.Now)
	f.useStudios(st.Studios())
	f.ids = service.NewIdentityResolver(f.clients, nil, clock.Now)
	return f
}

// useStudios rebuilds the reservation service on top of studios.
func (f *fixture) useStudios(studios service.StudioStore) {
	f.res = service.NewReservations(service.Deps{
		Tx:        f.store,
		Bookings:  f.store.Bookings(),
		Studios:   studios,
		Clients:   f.clients,
		Ledger:    f.ledger,
		Emitter:   f.emitter,
		Reminders: f.reminders,
		Now:       f.clock.Now,
	})
}

// serviceLookup overrides the Service read of a StudioStore.
type serviceLookup struct {
	service.StudioStore
	fn func(ctx context.Context, studioID, serviceID string) (*model.Service, error)
}

func (s serviceLookup) Service(ctx context.Context, studioID, serviceID string) (*model.Service, error) {
	return s.fn(ctx, studioID, serviceID)
}

func (f *fixture) addPackage(id string, total, used int, expiresAt *time.Time) {
	f.store.AddPackage(model.ClientPackage{
		ID:            id,
		ClientID:      clientID,
		PackageID:     "ten-pack",
		SessionsTotal: total,
		SessionsUsed:  used,
		ExpiresAt:     expiresAt,
		Status:        model.PackageActive,
		CreatedAt:     f.clock.Now(),
	})
}

func ptr[T any](v T) *T { return &v }
