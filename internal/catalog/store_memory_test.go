package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaflow/pkg/domain"
	"visaflow/pkg/platform/sentinel"
)

func TestInMemoryStore_ExecuteIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	productID := domain.ProductID(uuid.New())

	require.NoError(t, store.Create(ctx, &Product{ID: productID, Name: "Tourist"}))

	// A failed Execute must not leak partial mutations.
	_, err := store.Execute(ctx, productID, func(p *Product) error {
		p.Fields = append(p.Fields, FieldDefinition{ID: 1, Type: FieldTypeText, Question: "q"})
		return assert.AnError
	})
	require.Error(t, err)

	product, err := store.FindByID(ctx, productID)
	require.NoError(t, err)
	assert.Empty(t, product.Fields)
}

func TestInMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	productID := domain.ProductID(uuid.New())

	require.NoError(t, store.Create(ctx, &Product{
		ID:     productID,
		Fields: []FieldDefinition{{ID: 1, Type: FieldTypeDropdown, Question: "q", Options: []string{"a"}}},
	}))

	got, err := store.FindByID(ctx, productID)
	require.NoError(t, err)
	got.Fields[0].Question = "mutated"
	got.Fields[0].Options[0] = "mutated"

	again, err := store.FindByID(ctx, productID)
	require.NoError(t, err)
	assert.Equal(t, "q", again.Fields[0].Question)
	assert.Equal(t, "a", again.Fields[0].Options[0])
}

func TestInMemoryStore_NotFound(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, err := store.FindByID(ctx, domain.ProductID(uuid.New()))
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	_, err = store.Execute(ctx, domain.ProductID(uuid.New()), func(*Product) error { return nil })
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
