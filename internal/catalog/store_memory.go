package catalog

import (
	"context"
	"sync"

	"visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

// InMemoryStore is the test and local-development product store.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[domain.ProductID]*Product
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{products: make(map[domain.ProductID]*Product)}
}

func (s *InMemoryStore) Create(_ context.Context, product *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[product.ID]; exists {
		return sentinel.ErrConflict
	}
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, productID domain.ProductID) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	product, exists := s.products[productID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	return cloneProduct(product), nil
}

func (s *InMemoryStore) Execute(_ context.Context, productID domain.ProductID, fn func(*Product) error) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	product, exists := s.products[productID]
	if !exists {
		return nil, sentinel.ErrNotFound
	}
	working := cloneProduct(product)
	if err := fn(working); err != nil {
		return nil, err
	}
	s.products[productID] = working
	return cloneProduct(working), nil
}

// cloneProduct deep-copies so callers never alias stored state.
func cloneProduct(p *Product) *Product {
	cp := *p
	cp.Fields = make([]FieldDefinition, len(p.Fields))
	for i, f := range p.Fields {
		cf := f
		cf.Options = append([]string(nil), f.Options...)
		cf.AllowedFileTypes = append([]string(nil), f.AllowedFileTypes...)
		cp.Fields[i] = cf
	}
	return &cp
}
