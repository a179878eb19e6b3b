package posts

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a post does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("posts: post not found")

// Post is the stored record.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	MediaIDs  []string  `json:"mediaIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is the narrow persistence contract the service holds. Record
// storage itself (schemas, query planning) is an external collaborator.
type Store interface {
	Create(ctx context.Context, p *Post) error
	Get(ctx context.Context, id string) (*Post, error)

	// List returns a page of posts in reverse chronological order plus
	// the total count.
	List(ctx context.Context, offset, limit int) ([]*Post, int, error)

	// Delete removes the post only if it belongs to userID and returns
	// the removed record so the caller can publish its media IDs.
	Delete(ctx context.Context, id, userID string) (*Post, error)
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu    sync.RWMutex
	posts map[string]*Post
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{posts: make(map[string]*Post)}
}

func (s *MemoryStore) Create(_ context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *p
	s.posts[p.ID] = &copy
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) List(_ context.Context, offset, limit int) ([]*Post, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Post, 0, len(s.posts))
	for _, p := range s.posts {
		copy := *p
		all = append(all, &copy)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	if offset >= total {
		return []*Post{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (s *MemoryStore) Delete(_ context.Context, id, userID string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok || p.UserID != userID {
		return nil, ErrNotFound
	}
	delete(s.posts, id)
	copy := *p
	return &copy, nil
}
