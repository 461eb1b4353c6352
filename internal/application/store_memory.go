package application

import (
	"context"
	"sync"

	"visaflow/internal/application/models"
	"visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// InMemoryStore is the test and local-development application store.
type InMemoryStore struct {
	mu   sync.RWMutex
	apps map[domain.ApplicationID]*models.Application
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{apps: make(map[domain.ApplicationID]*models.Application)}
}

func (s *InMemoryStore) Create(_ context.Context, app *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return sentinel.ErrConflict
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ApplicationID) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, exists := s.apps[id]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) Delete(_ context.Context, id domain.ApplicationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[id]; !exists {
		return sentinel.ErrNotFound
	}
	delete(s.apps, id)
	return nil
}

func (s *InMemoryStore) Execute(_ context.Context, id domain.ApplicationID, fn func(*models.Application) error) (*models.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, exists := s.apps[id]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	working := app.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.apps[id] = working
	return working.Clone(), nil
}
