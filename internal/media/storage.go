package media

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("media: media not found")

// Media is the stored record pointing at an externally hosted asset.
type Media struct {
	ID           string    `json:"id"`
	PublicID     string    `json:"publicId"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	URL          string    `json:"url"`
	UserID       string    `json:"userId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Store is the narrow persistence contract for media records.
type Store interface {
	Create(ctx context.Context, m *Media) error
	Get(ctx context.Context, id string) (*Media, error)
	List(ctx context.Context) ([]*Media, error)
	Delete(ctx context.Context, id string) error
}

// AssetHost is the external binary-asset collaborator (upload target and
// deletion endpoint). The core never touches asset bytes beyond handing
// them over.
type AssetHost interface {
	Upload(ctx context.Context, name, mimeType string, data []byte) (publicID, url string, err error)
	Delete(ctx context.Context, publicID string) error
}

// MemoryStore is an in-memory Store for tests and development.
type MemoryStore struct {
	mu    sync.RWMutex
	media map[string]*Media
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{media: make(map[string]*Media)}
}

func (s *MemoryStore) Create(_ context.Context, m *Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *m
	s.media[m.ID] = &copy
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.media[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *m
	return &copy, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Media, 0, len(s.media))
	for _, m := range s.media {
		copy := *m
		out = append(out, &copy)
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.media[id]; !ok {
		return ErrNotFound
	}
	delete(s.media, id)
	return nil
}

// MemoryAssetHost is an in-memory AssetHost for tests and development.
type MemoryAssetHost struct {
	mu     sync.Mutex
	assets map[string][]byte
	nextID func() string
}

func NewMemoryAssetHost(nextID func() string) *MemoryAssetHost {
	return &MemoryAssetHost{assets: make(map[string][]byte), nextID: nextID}
}

func (h *MemoryAssetHost) Upload(_ context.Context, name, mimeType string, data []byte) (string, string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	publicID := h.nextID()
	buf := make([]byte, len(data))
	copy(buf, data)
	h.assets[publicID] = buf
	return publicID, "https://assets.local/" + publicID, nil
}

func (h *MemoryAssetHost) Delete(_ context.Context, publicID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	// Deleting an absent asset is a no-op, mirroring remote hosts.
	delete(h.assets, publicID)
	return nil
}

// Has reports whether the asset is still hosted, for test assertions.
func (h *MemoryAssetHost) Has(publicID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.assets[publicID]
	return ok
}
