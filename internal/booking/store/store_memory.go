// Package store persists appointments and the local user directory.
package store

import (
	"context"
	"sync"

	"expatdesk/internal/booking/models"
	id "expatdesk/pkg/domain"
	"expatdesk/pkg/email"
	"expatdesk/pkg/platform/sentinel"
)

// InMemoryAppointments keeps one row per booking uid.
type InMemoryAppointments struct {
	mu    sync.RWMutex
	byUID map[string]*models.Appointment
}

func NewInMemoryAppointments() *InMemoryAppointments {
	return &InMemoryAppointments{byUID: make(map[string]*models.Appointment)}
}

func (s *InMemoryAppointments) FindByBookingUID(_ context.Context, uid string) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byUID[uid]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return a.Clone(), nil
}

// Upsert inserts or replaces the row for a.BookingUID. The first row's id
// is kept on replace.
func (s *InMemoryAppointments) Upsert(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := a.Clone()
	if existing, ok := s.byUID[a.BookingUID]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	}
	s.byUID[a.BookingUID] = c
	return nil
}

// InMemoryUsers is a user directory keyed by normalized email.
type InMemoryUsers struct {
	mu      sync.RWMutex
	byEmail map[string]*models.User
}

func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{byEmail: make(map[string]*models.User)}
}

func (s *InMemoryUsers) Create(_ context.Context, u *models.User) error {
	key := email.Normalize(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[key]; ok {
		return sentinel.ErrAlreadyUsed
	}
	c := *u
	s.byEmail[key] = &c
	return nil
}

func (s *InMemoryUsers) FindByEmail(_ context.Context, address string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEmail[email.Normalize(address)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *InMemoryUsers) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.byEmail {
		if u.ID == userID {
			c := *u
			return &c, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
