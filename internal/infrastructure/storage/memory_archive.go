package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	statementapp "github.com/stayledger/backend/internal/application/statement"
)

// ErrObjectNotFound is returned when an archived object does not exist
var ErrObjectNotFound = errors.New("object not found")

var _ statementapp.Archive = (*MemoryArchive)(nil)

// MemoryArchive keeps archived objects in memory. It backs local runs
// where no bucket is configured.
type MemoryArchive struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	body        []byte
	contentType string
}

// NewMemoryArchive creates an empty MemoryArchive
func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{objects: make(map[string]memoryObject)}
}

// Put stores a copy of body under key
func (a *MemoryArchive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	if key == "" {
		return errors.New("storage key is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = memoryObject{body: append([]byte(nil), body...), contentType: contentType}
	return nil
}

// Get returns a copy of the object
func (a *MemoryArchive) Get(ctx context.Context, key string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	obj, ok := a.objects[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	}
	return append([]byte(nil), obj.body...), nil
}

// Keys lists stored keys with the given prefix in lexical order
func (a *MemoryArchive) Keys(prefix string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
