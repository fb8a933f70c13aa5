// Package memory keeps run results in memory, for dry runs and tests.
package memory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
)

// BlobStore stores documents in memory and returns memory:// URIs.
type BlobStore struct {
	mu          sync.RWMutex
	data        map[string][]byte
	contentType map[string]string
}

// NewBlobStore creates an empty in-memory store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		data:        make(map[string][]byte),
		contentType: make(map[string]string),
	}
}

// PutObject stores a copy of the content under path.
func (s *BlobStore) PutObject(_ context.Context, path string, contentType string, data io.Reader) (string, error) {
	body, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[path] = body
	s.contentType[path] = contentType
	return "memory://" + path, nil
}

// Get returns a copy of the document stored under path.
func (s *BlobStore) Get(path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.data[path]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), body...), s.contentType[path], true
}

// Paths lists stored paths in lexical order.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for p := range s.data {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
