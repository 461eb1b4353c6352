package uploads

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"visaflow/internal/catalog"
	"visaflow/pkg/domain"
	dErrors "visaflow/pkg/domain-errors"
)

// InMemoryStore keeps answer files in process memory. Tests and local
// development only.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string][]byte)}
}

func (s *InMemoryStore) Upload(_ context.Context, appID domain.ApplicationID, def catalog.FieldDefinition, fileName string, size int64, _ string, r io.Reader) (*FileRef, error) {
	if err := def.ValidateFile(fileName, size); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read answer file: %w", err)
	}

	objectKey := fmt.Sprintf("applications/%s/fields/%d/%s-%s", appID, def.ID, uuid.NewString(), fileName)
	s.mu.Lock()
	s.objects[objectKey] = data
	s.mu.Unlock()

	return &FileRef{Path: objectKey, Name: fileName, Size: size}, nil
}

func (s *InMemoryStore) PresignDownload(_ context.Context, path string, _ time.Duration) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[path]; !ok {
		return "", dErrors.New(dErrors.CodeNotFound, "file not found")
	}
	return "memory://" + path, nil
}

// Object returns the stored bytes for assertions in tests.
func (s *InMemoryStore) Object(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[path]
	return data, ok
}
