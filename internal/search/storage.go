package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// Document is a search record derived from post events. It is keyed by
// the originating post ID.
type Document struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// DocumentStore is the narrow index contract. Both mutations must be
// idempotent: the bus delivers at least once and in no particular order
// across routing keys, so Insert after Delete for the same post must not
// resurrect the document.
type DocumentStore interface {
	Insert(ctx context.Context, doc *Document) error
	DeleteByPostID(ctx context.Context, postID string) error
	Search(ctx context.Context, query string, limit int) ([]*Document, error)
}

// MemoryDocumentStore is an in-memory DocumentStore with naive substring
// matching. Deletions leave a tombstone so a late-arriving insert for the
// same post ID stays a no-op, keeping the final state order-independent.
type MemoryDocumentStore struct {
	mu         sync.RWMutex
	docs       map[string]*Document
	tombstones map[string]struct{}
}

func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		docs:       make(map[string]*Document),
		tombstones: make(map[string]struct{}),
	}
}

func (s *MemoryDocumentStore) Insert(_ context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, deleted := s.tombstones[doc.PostID]; deleted {
		return nil
	}
	copy := *doc
	s.docs[doc.PostID] = &copy
	return nil
}

func (s *MemoryDocumentStore) DeleteByPostID(_ context.Context, postID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, postID)
	s.tombstones[postID] = struct{}{}
	return nil
}

func (s *MemoryDocumentStore) Search(_ context.Context, query string, limit int) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []*Document
	for _, d := range s.docs {
		if q == "" || strings.Contains(strings.ToLower(d.Content), q) {
			copy := *d
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
