package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
)

// MemoryCommentRepo backs unit tests and the no-Mongo development mode.
type MemoryCommentRepo struct {
	mu    sync.RWMutex
	store map[string]*comment.Comment
}

func NewMemoryCommentRepo() *MemoryCommentRepo {
	return &MemoryCommentRepo{store: make(map[string]*comment.Comment)}
}

func (r *MemoryCommentRepo) Create(ctx context.Context, c *comment.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	r.store[c.ID.Hex()] = &cp
	return nil
}

func (r *MemoryCommentRepo) Get(ctx context.Context, id string) (*comment.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.store[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryCommentRepo) GetAll(ctx context.Context, f comment.Filter) ([]*comment.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	wanted := map[string]bool{}
	for _, id := range f.IDs {
		wanted[id] = true
	}
	out := []*comment.Comment{}
	for id, c := range r.store {
		if len(f.IDs) > 0 && !wanted[id] {
			continue
		}
		if f.Document != "" && c.Document.Hex() != f.Document {
			continue
		}
		if f.Field != "" && c.Field != f.Field {
			continue
		}
		if f.OnlyUnresolved && c.Resolved {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryCommentRepo) SetResolved(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.store[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Resolved = true
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryCommentRepo) SetReply(ctx context.Context, id, reply string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.store[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Reply = reply
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *MemoryCommentRepo) UpdateDecorations(ctx context.Context, versionID string, updates []comment.DecorationUpdate) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var modified int64
	for _, u := range updates {
		c, ok := r.store[u.CommentID]
		if !ok || c.Version.Hex() != versionID {
			continue
		}
		c.Decoration = u.Decoration
		c.UpdatedAt = time.Now().UTC()
		modified++
	}
	return modified, nil
}

func (r *MemoryCommentRepo) CountContextual(ctx context.Context, documentID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, c := range r.store {
		if c.Document.Hex() == documentID && c.Decoration != nil {
			n++
		}
	}
	return n, nil
}

func (r *MemoryCommentRepo) AuthorsOf(ctx context.Context, ids []string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{}
	for _, id := range ids {
		if c, ok := r.store[id]; ok {
			out = append(out, c.User)
		}
	}
	return out, nil
}

// MemoryLikeRepo mirrors the unique (user, comment) pair behavior of the
// Mongo implementation.
type MemoryLikeRepo struct {
	mu    sync.Mutex
	store map[string]*comment.Like // keyed by like id
}

func NewMemoryLikeRepo() *MemoryLikeRepo {
	return &MemoryLikeRepo{store: make(map[string]*comment.Like)}
}

func (r *MemoryLikeRepo) Get(ctx context.Context, user, commentID string) (*comment.Like, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.store {
		if l.User == user && l.Comment.Hex() == commentID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryLikeRepo) Create(ctx context.Context, l *comment.Like) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.store {
		if existing.User == l.User && existing.Comment == l.Comment {
			*l = *existing
			return nil
		}
	}
	l.ID = primitive.NewObjectID()
	l.CreatedAt = time.Now().UTC()
	cp := *l
	r.store[l.ID.Hex()] = &cp
	return nil
}

func (r *MemoryLikeRepo) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.store[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.store, id)
	return nil
}
