package artifacts

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists artifacts.
type Repository interface {
	Create(ctx context.Context, req *CreateArtifactRequest) (*Artifact, error)
	GetByID(ctx context.Context, id string) (*Artifact, error)
}

// InMemoryRepository keeps artifacts in a map; used when DATABASE_URL is unset.
type InMemoryRepository struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		artifacts: make(map[string]*Artifact),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, req *CreateArtifactRequest) (*Artifact, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	artifact := &Artifact{
		ID:                uuid.New().String(),
		Source:            req.Source,
		UserPrompt:        req.UserPrompt,
		UserImageURL:      req.UserImageURL,
		GeneratedImageURL: req.GeneratedImageURL,
		AIPrompt:          req.AIPrompt,
		AIProvider:        req.AIProvider,
		CreatedAt:         time.Now().UTC(),
	}

	r.mu.Lock()
	r.artifacts[artifact.ID] = artifact
	r.mu.Unlock()

	copied := *artifact
	return &copied, nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Artifact, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, ok := r.artifacts[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *artifact
	return &copied, nil
}
