// Package servicetest provides an in-memory implementation of the
// service store interfaces plus recording fakes for the notification
// emitter, the reminder scheduler and the clock.  Transactions are
// serialised and rolled back by snapshot, which mirrors the trainer row
// lock and the atomicity the MySQL repositories provide.
package servicetest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/trainer-booking/internal/model"
	"github.com/iliyamo/trainer-booking/internal/repository"
)

// Store is an in-memory database.  The zero value is not usable; call
// NewStore.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	studios  map[string]model.StudioSettings
	trainers map[string]model.Trainer
	services map[string]model.Service
	clients  map[string]model.Client
	rules    []model.AvailabilityRule
	blocks   []model.BlockedWindow
	bookings map[string]model.Booking
	sessions map[string]model.TrainingSession
	packages map[string]model.ClientPackage
	usages   map[string]model.CreditUsage
	payments map[string]bool

	// FailRestore makes every RestoreTx fail as if the package could not
	// absorb the reversal.
	FailRestore bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		studios:  map[string]model.StudioSettings{},
		trainers: map[string]model.Trainer{},
		services: map[string]model.Service{},
		clients:  map[string]model.Client{},
		bookings: map[string]model.Booking{},
		sessions: map[string]model.TrainingSession{},
		packages: map[string]model.ClientPackage{},
		usages:   map[string]model.CreditUsage{},
		payments: map[string]bool{},
	}
}

type snapshot struct {
	bookings map[string]model.Booking
	sessions map[string]model.TrainingSession
	packages map[string]model.ClientPackage
	usages   map[string]model.CreditUsage
	clients  map[string]model.Client
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// WithTx runs fn with a nil *sql.Tx.  Transactions never interleave; an
// error from fn restores every table fn could have written.
func (s *Store) WithTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snap := snapshot{
		bookings: cloneMap(s.bookings),
		sessions: cloneMap(s.sessions),
		packages: cloneMap(s.packages),
		usages:   cloneMap(s.usages),
		clients:  cloneMap(s.clients),
	}
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.bookings, s.sessions, s.packages, s.usages, s.clients =
			snap.bookings, snap.sessions, snap.packages, snap.usages, snap.clients
		s.mu.Unlock()
		return err
	}
	return nil
}

// write runs fn as an autocommit statement.
func (s *Store) write(fn func()) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

func (s *Store) read(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Seeding helpers.

// AddStudio stores studio settings.
func (s *Store) AddStudio(st model.StudioSettings) { s.read(func() { s.studios[st.StudioID] = st }) }

// AddTrainer stores a trainer.
func (s *Store) AddTrainer(t model.Trainer) { s.read(func() { s.trainers[t.ID] = t }) }

// AddService stores a service.
func (s *Store) AddService(sv model.Service) { s.read(func() { s.services[sv.ID] = sv }) }

// AddClient stores a client.
func (s *Store) AddClient(c model.Client) { s.read(func() { s.clients[c.ID] = c }) }

// AddRule stores an availability rule.
func (s *Store) AddRule(r model.AvailabilityRule) { s.read(func() { s.rules = append(s.rules, r) }) }

// AddBlock stores a blocked window.
func (s *Store) AddBlock(b model.BlockedWindow) { s.read(func() { s.blocks = append(s.blocks, b) }) }

// AddPackage stores a client package.
func (s *Store) AddPackage(p model.ClientPackage) { s.read(func() { s.packages[p.ID] = p }) }

// AddBooking stores a booking as-is, bypassing every check.
func (s *Store) AddBooking(b model.Booking) { s.read(func() { s.bookings[b.ID] = b }) }

// Inspection helpers.

// Booking returns the stored booking.
func (s *Store) Booking(id string) (model.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	return b, ok
}

// AllBookings returns every booking ordered by start.
func (s *Store) AllBookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

// Package returns the stored package.
func (s *Store) Package(id string) model.ClientPackage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packages[id]
}

// Usages returns the usage rows charged to packageID.
func (s *Store) Usages(packageID string) []model.CreditUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CreditUsage
	for _, u := range s.usages {
		if u.ClientPackageID == packageID {
			out = append(out, u)
		}
	}
	return out
}

// Sessions returns the number of training sessions recorded.
func (s *Store) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Clients returns every client of a studio.
func (s *Store) Clients(studioID string) []model.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Client
	for _, c := range s.clients {
		if c.StudioID == studioID {
			out = append(out, c)
		}
	}
	return out
}

// Views implementing the service store interfaces.

// Bookings returns the booking store view.
func (s *Store) Bookings() *Bookings { return &Bookings{s} }

// Credits returns the credit store view.
func (s *Store) Credits() *Credits { return &Credits{s} }

// Studios returns the studio store view.
func (s *Store) Studios() *Studios { return &Studios{s} }

// ClientStore returns the client store view.
func (s *Store) ClientStore() *ClientStore { return &ClientStore{s: s} }

// PaymentEvents returns the payment event store view.
func (s *Store) PaymentEvents() *PaymentEvents { return &PaymentEvents{s} }

// Bookings implements service.BookingStore.
type Bookings struct{ s *Store }

func (v *Bookings) LockTrainerTx(_ context.Context, _ *sql.Tx, studioID, trainerID string) error {
	var err error
	v.s.read(func() {
		t, ok := v.s.trainers[trainerID]
		if !ok || t.StudioID != studioID {
			err = repository.ErrNotFound
		}
	})
	return err
}

func (v *Bookings) expire(trainerID string, now time.Time) int64 {
	var n int64
	for id, b := range v.s.bookings {
		if (trainerID == "" || b.TrainerID == trainerID) && b.HoldExpired(now) {
			b.Status = model.StatusCancelled
			b.HoldExpiry = nil
			v.s.bookings[id] = b
			n++
		}
	}
	return n
}

func (v *Bookings) ExpireHoldsTx(_ context.Context, _ *sql.Tx, trainerID string, now time.Time) (int64, error) {
	var n int64
	v.s.read(func() { n = v.expire(trainerID, now) })
	return n, nil
}

func (v *Bookings) SweepExpiredHolds(_ context.Context, studioID string, now time.Time) (int64, error) {
	var n int64
	v.s.write(func() {
		for id, b := range v.s.bookings {
			if (studioID == "" || b.StudioID == studioID) && b.HoldExpired(now) {
				b.Status = model.StatusCancelled
				b.HoldExpiry = nil
				v.s.bookings[id] = b
				n++
			}
		}
	})
	return n, nil
}

func (v *Bookings) active(trainerID string, from, to time.Time) []model.Booking {
	out := []model.Booking{}
	for _, b := range v.s.bookings {
		if b.TrainerID == trainerID && b.Status.Active() &&
			!b.ScheduledAt.Before(from) && b.ScheduledAt.Before(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (v *Bookings) ActiveInWindowTx(_ context.Context, _ *sql.Tx, trainerID string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	v.s.read(func() { out = v.active(trainerID, from, to) })
	return out, nil
}

func (v *Bookings) ActiveBetween(_ context.Context, trainerID string, from, to time.Time) ([]model.Booking, error) {
	var out []model.Booking
	v.s.read(func() { out = v.active(trainerID, from, to) })
	return out, nil
}

// duplicateActiveStart emulates UNIQUE(trainer_id, active_start).
func (v *Bookings) duplicateActiveStart(b *model.Booking) bool {
	if !b.Status.Active() {
		return false
	}
	for _, o := range v.s.bookings {
		if o.ID != b.ID && o.TrainerID == b.TrainerID && o.Status.Active() && o.ScheduledAt.Equal(b.ScheduledAt) {
			return true
		}
	}
	return false
}

func (v *Bookings) CreateTx(_ context.Context, _ *sql.Tx, b *model.Booking) error {
	var err error
	v.s.read(func() {
		if _, exists := v.s.bookings[b.ID]; exists || v.duplicateActiveStart(b) {
			err = repository.ErrConflict
			return
		}
		v.s.bookings[b.ID] = *b
	})
	return err
}

func (v *Bookings) SaveTx(_ context.Context, _ *sql.Tx, b *model.Booking) error {
	var err error
	v.s.read(func() {
		if _, ok := v.s.bookings[b.ID]; !ok {
			err = repository.ErrNotFound
			return
		}
		if v.duplicateActiveStart(b) {
			err = repository.ErrConflict
			return
		}
		v.s.bookings[b.ID] = *b
	})
	return err
}

func (v *Bookings) get(studioID, id string) (*model.Booking, error) {
	var (
		b  model.Booking
		ok bool
	)
	v.s.read(func() { b, ok = v.s.bookings[id] })
	if !ok || (studioID != "" && b.StudioID != studioID) {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (v *Bookings) GetForUpdateTx(_ context.Context, _ *sql.Tx, studioID, id string) (*model.Booking, error) {
	return v.get(studioID, id)
}

func (v *Bookings) Get(_ context.Context, studioID, id string) (*model.Booking, error) {
	return v.get(studioID, id)
}

func (v *Bookings) List(_ context.Context, f repository.BookingFilter) ([]model.Booking, error) {
	out := []model.Booking{}
	v.s.read(func() {
		for _, b := range v.s.bookings {
			switch {
			case f.StudioID != "" && b.StudioID != f.StudioID,
				f.TrainerID != "" && b.TrainerID != f.TrainerID,
				f.ClientID != "" && (b.ClientID == nil || *b.ClientID != f.ClientID),
				f.Status != "" && b.Status != f.Status,
				f.From != nil && b.ScheduledAt.Before(*f.From),
				f.To != nil && !b.ScheduledAt.Before(*f.To):
				continue
			}
			out = append(out, b)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (v *Bookings) DeleteTx(_ context.Context, _ *sql.Tx, id string) error {
	var err error
	v.s.read(func() {
		if _, ok := v.s.bookings[id]; !ok {
			err = repository.ErrNotFound
			return
		}
		delete(v.s.bookings, id)
		for sid, sess := range v.s.sessions {
			if sess.BookingID == id {
				delete(v.s.sessions, sid)
			}
		}
	})
	return err
}

func (v *Bookings) CreateSessionTx(_ context.Context, _ *sql.Tx, sess *model.TrainingSession) error {
	var err error
	v.s.read(func() {
		for _, o := range v.s.sessions {
			if o.BookingID == sess.BookingID {
				err = repository.ErrConflict
				return
			}
		}
		v.s.sessions[sess.ID] = *sess
	})
	return err
}
