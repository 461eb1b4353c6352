package catalog

import (
	"context"

	"visaflow/pkg/domain"
)

// Store persists products and their field catalogs.
//
// Execute is the only mutation path: it loads the product under a lock (mutex
// or FOR UPDATE), runs fn against it, and persists the result iff fn returns
// nil. This keeps id allocation and the MaxFieldID high-water mark inside one
// transaction.
type Store interface {
	Create(ctx context.Context, product *Product) error
	FindByID(ctx context.Context, productID domain.ProductID) (*Product, error)
	Execute(ctx context.Context, productID domain.ProductID, fn func(*Product) error) (*Product, error)
}
