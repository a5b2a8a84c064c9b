// Package store persists review records.
package store

import (
	"context"
	"sort"
	"sync"

	"expatdesk/internal/review/models"
	id "expatdesk/pkg/domain"
	"expatdesk/pkg/platform/sentinel"
)

// InMemory is a process-local review store. Records are copied on the way
// in and out so callers never share state with the store.
type InMemory struct {
	mu         sync.RWMutex
	byToken    map[id.AccessToken]*models.ReviewRecord
	byCheckout map[string]id.AccessToken
}

func NewInMemory() *InMemory {
	return &InMemory{
		byToken:    make(map[id.AccessToken]*models.ReviewRecord),
		byCheckout: make(map[string]id.AccessToken),
	}
}

func (s *InMemory) Create(_ context.Context, r *models.ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byToken[r.AccessToken]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if r.CheckoutSessionID != "" {
		if _, ok := s.byCheckout[r.CheckoutSessionID]; ok {
			return sentinel.ErrAlreadyUsed
		}
		s.byCheckout[r.CheckoutSessionID] = r.AccessToken
	}
	s.byToken[r.AccessToken] = r.Clone()
	return nil
}

func (s *InMemory) FindByToken(_ context.Context, token id.AccessToken) (*models.ReviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemory) FindByCheckoutSession(_ context.Context, sessionID string) (*models.ReviewRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.byCheckout[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byToken[token].Clone(), nil
}

// Execute validates and mutates the record under the store lock.
func (s *InMemory) Execute(_ context.Context, token id.AccessToken, validate func(*models.ReviewRecord) error, mutate func(*models.ReviewRecord)) (*models.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byToken[token]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	if err := validate(working); err != nil {
		return nil, err
	}
	mutate(working)
	s.byToken[token] = working.Clone()
	return working, nil
}

// List returns reviews most recently updated first.
func (s *InMemory) List(_ context.Context, filter models.ListFilter) ([]*models.ReviewRecord, error) {
	filter.Normalize()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ReviewRecord, 0, len(s.byToken))
	for _, r := range s.byToken {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].AccessToken < out[j].AccessToken
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
