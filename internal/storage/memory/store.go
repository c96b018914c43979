// Package memory is an in-process ObjectStorage used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// Store keeps objects in a map guarded by a RWMutex.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
	bucket  string
}

type object struct {
	body        []byte
	contentType string
}

var _ port.ObjectStorage = (*Store)(nil)

// New creates an empty store. bucket only appears in returned references.
func New(bucket string) *Store {
	return &Store{objects: make(map[string]object), bucket: bucket}
}

func (s *Store) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", domain.ErrInvalidInput)
	}
	buf := make([]byte, len(body))
	copy(buf, body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{body: buf, contentType: contentType}
	return fmt.Sprintf("memory://%s/%s", s.bucket, key), nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	buf := make([]byte, len(obj.body))
	copy(buf, obj.body)
	return buf, nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return false, nil
	}
	delete(s.objects, key)
	return true, nil
}

// Keys lists stored keys with the given prefix in lexical order.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ContentType returns the content type recorded for key.
func (s *Store) ContentType(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[key].contentType
}
