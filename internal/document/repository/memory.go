package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/document"
)

// MemoryDocumentRepo and MemoryVersionRepo back unit tests and the no-Mongo
// development mode. Both are safe for concurrent use.
type MemoryDocumentRepo struct {
	mu       sync.RWMutex
	store    map[string]*document.Document
	versions *MemoryVersionRepo
}

func NewMemoryDocumentRepo(versions *MemoryVersionRepo) *MemoryDocumentRepo {
	return &MemoryDocumentRepo{store: make(map[string]*document.Document), versions: versions}
}

func (r *MemoryDocumentRepo) CreateWithVersion(ctx context.Context, doc *document.Document, v *document.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	v.Document = doc.ID
	if err := r.versions.Create(ctx, v); err != nil {
		return err
	}
	doc.CurrentVersion = v.ID
	cp := *doc
	r.store[doc.ID.Hex()] = &cp
	return nil
}

func (r *MemoryDocumentRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.store[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryDocumentRepo) SetPublished(ctx context.Context, id string, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.store[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.Published = published
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDocumentRepo) SetCurrentVersion(ctx context.Context, id string, versionID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.store[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.CurrentVersion = versionID
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryDocumentRepo) CountByAuthor(ctx context.Context, author string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, d := range r.store {
		if d.Author == author {
			n++
		}
	}
	return n, nil
}

func (r *MemoryDocumentRepo) IncCommentsCount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.store[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.CommentsCount++
	return nil
}

func (r *MemoryDocumentRepo) List(ctx context.Context, f document.Filter, page, limit int) ([]*document.Document, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := []*document.Document{}
	for _, d := range r.store {
		if f.Published != nil && d.Published != *f.Published {
			continue
		}
		if f.Author != "" && d.Author != f.Author {
			continue
		}
		cp := *d
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := int64(len(matched))
	start := (page - 1) * limit
	if start >= len(matched) {
		return []*document.Document{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

type MemoryVersionRepo struct {
	mu    sync.RWMutex
	store map[string]*document.Version
}

func NewMemoryVersionRepo() *MemoryVersionRepo {
	return &MemoryVersionRepo{store: make(map[string]*document.Version)}
}

func (r *MemoryVersionRepo) Create(ctx context.Context, v *document.Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.store {
		if existing.Document == v.Document && existing.Version == v.Version {
			return fmt.Errorf("version %d of document %s already exists: %w", v.Version, v.Document.Hex(), apperrors.ErrVersionConflict)
		}
	}
	now := time.Now().UTC()
	v.ID = primitive.NewObjectID()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Contributions == nil {
		v.Contributions = []string{}
	}
	cp := *v
	r.store[v.ID.Hex()] = &cp
	return nil
}

func (r *MemoryVersionRepo) Get(ctx context.Context, id string) (*document.Version, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.store[id]; ok {
		cp := *v
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryVersionRepo) UpdateContent(ctx context.Context, id string, content document.VersionContent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.store[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	v.Content = content
	v.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryVersionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.store, id)
	return nil
}

func (r *MemoryVersionRepo) ContributionIDs(ctx context.Context, documentID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := []*document.Version{}
	for _, v := range r.store {
		if v.Document.Hex() == documentID {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Version < versions[j].Version })
	out := []string{}
	for _, v := range versions {
		out = append(out, v.Contributions...)
	}
	return out, nil
}
