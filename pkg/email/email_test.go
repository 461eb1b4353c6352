package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveNameFromEmail(t *testing.T) {
	tests := []struct {
		email string
		first string
		last  string
	}{
		{"jane.doe@example.com", "Jane", "Doe"},
		{"marco_rossi@example.com", "Marco", "Rossi"},
		{"a.b.c@example.com", "A", "C"},
		{"singleword@example.com", "Singleword", "User"},
		{"", "User", "User"},
	}
	for _, tt := range tests {
		first, last := DeriveNameFromEmail(tt.email)
		assert.Equal(t, tt.first, first, "first name for %q", tt.email)
		assert.Equal(t, tt.last, last, "last name for %q", tt.email)
	}
}
