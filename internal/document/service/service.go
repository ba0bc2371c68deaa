package service

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
	"github.com/guillecro/leyesabiertas-core/internal/community"
	"github.com/guillecro/leyesabiertas-core/internal/customform"
	"github.com/guillecro/leyesabiertas-core/internal/document"
	"github.com/guillecro/leyesabiertas-core/internal/models"
	"github.com/guillecro/leyesabiertas-core/internal/notify"
	"github.com/guillecro/leyesabiertas-core/pkg/logger"
)

// Repository is the document store contract the workflow depends on.
type Repository interface {
	CreateWithVersion(ctx context.Context, doc *document.Document, v *document.Version) error
	Get(ctx context.Context, id string) (*document.Document, error)
	SetPublished(ctx context.Context, id string, published bool) error
	SetCurrentVersion(ctx context.Context, id string, versionID primitive.ObjectID) error
	CountByAuthor(ctx context.Context, author string) (int64, error)
	IncCommentsCount(ctx context.Context, id string) error
	List(ctx context.Context, f document.Filter, page, limit int) ([]*document.Document, int64, error)
}

// VersionRepository is the version store contract.
type VersionRepository interface {
	Create(ctx context.Context, v *document.Version) error
	Get(ctx context.Context, id string) (*document.Version, error)
	UpdateContent(ctx context.Context, id string, content document.VersionContent) error
	Delete(ctx context.Context, id string) error
	ContributionIDs(ctx context.Context, documentID string) ([]string, error)
}

// FormProvider resolves a custom form reference to its schema.
type FormProvider interface {
	Resolve(ctx context.Context, ref string) (*customform.CustomForm, error)
}

// PolicyProvider exposes the community document-creation policy.
type PolicyProvider interface {
	Get(ctx context.Context) (*community.Community, error)
}

// CommentSource is the narrow slice of the comment store the document
// workflow needs: decoration rewrites and closed-document aggregates.
type CommentSource interface {
	UpdateDecorations(ctx context.Context, versionID string, updates []comment.DecorationUpdate) (int64, error)
	CountContextual(ctx context.Context, documentID string) (int64, error)
	AuthorsOf(ctx context.Context, ids []string) ([]string, error)
}

// UpdatePatch is the tagged input for Update. Nil fields are left untouched.
// Closed is accepted for wire compatibility but the closed state is always
// derived from the closing date.
type UpdatePatch struct {
	Published     *bool
	Closed        *bool
	Content       *document.VersionContent
	Contributions []string
	Decorations   []comment.DecorationUpdate
}

// ListResult carries one page of documents with their current versions.
type ListResult struct {
	Results    []*document.View `json:"results"`
	Count      int64            `json:"count"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
}

// Service orchestrates the document/version workflow.
type Service struct {
	docs     Repository
	versions VersionRepository
	forms    FormProvider
	policy   PolicyProvider
	comments CommentSource
	notifier *notify.Dispatcher
	now      func() time.Time
}

func New(docs Repository, versions VersionRepository, forms FormProvider, policy PolicyProvider, comments CommentSource, notifier *notify.Dispatcher) *Service {
	return &Service{
		docs:     docs,
		versions: versions,
		forms:    forms,
		policy:   policy,
		comments: comments,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create makes a new document with its initial version. Fails with
// ErrPolicyViolation once the author reached the community creation limit
// and with ErrInvalidParam when the form reference cannot be resolved.
func (s *Service) Create(ctx context.Context, actor *models.User, formRef string, content document.VersionContent) (*document.View, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	pol, err := s.policy.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load community policy: %w", err)
	}
	limit := pol.Permissions.Accountable.DocumentCreationLimit
	count, err := s.docs.CountByAuthor(ctx, actor.Sub)
	if err != nil {
		return nil, fmt.Errorf("count documents of %s: %w", actor.Sub, err)
	}
	if count >= int64(limit) {
		return nil, fmt.Errorf("author %s has %d documents (limit %d): %w", actor.Sub, count, limit, apperrors.ErrPolicyViolation)
	}
	form, err := s.forms.Resolve(ctx, formRef)
	if err != nil {
		return nil, fmt.Errorf("custom form %q: %w", formRef, apperrors.ErrInvalidParam)
	}

	doc := &document.Document{
		Author:     actor.Sub,
		CustomForm: form.ID.Hex(),
		Published:  false,
	}
	v := &document.Version{Version: 1, Content: content}
	if err := s.docs.CreateWithVersion(ctx, doc, v); err != nil {
		return nil, err
	}
	if content.ClosingDate != nil {
		s.notifier.DocumentCloses(doc.ID.Hex(), *content.ClosingDate)
	}
	return s.view(ctx, doc, v)
}

// Get returns the document with its current version and derived closed
// state. Closed documents additionally carry the contribution aggregates.
func (s *Service) Get(ctx context.Context, id string) (*document.View, error) {
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	v, err := s.versions.Get(ctx, doc.CurrentVersion.Hex())
	if err != nil {
		return nil, fmt.Errorf("current version of %s: %w", id, err)
	}
	return s.view(ctx, doc, v)
}

// Update applies an author-only patch. A patch carrying contributions
// produces a new immutable version; otherwise content is amended in place.
// Decorations are rewritten against the current version before any bump.
func (s *Service) Update(ctx context.Context, id string, actor *models.User, patch UpdatePatch) (*document.View, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Author != actor.Sub {
		return nil, fmt.Errorf("user %s is not the author of %s: %w", actor.Sub, id, apperrors.ErrForbidden)
	}
	cur, err := s.versions.Get(ctx, doc.CurrentVersion.Hex())
	if err != nil {
		return nil, fmt.Errorf("current version of %s: %w", id, err)
	}
	if patch.Closed != nil {
		// the closed state is derived from the closing date; the legacy
		// stored flag is accepted and ignored
		logger.Debugf("update %s: ignoring caller-supplied closed=%v", id, *patch.Closed)
	}

	if len(patch.Decorations) > 0 {
		if _, err := s.comments.UpdateDecorations(ctx, cur.ID.Hex(), patch.Decorations); err != nil {
			return nil, fmt.Errorf("update decorations: %w", err)
		}
	}

	if len(patch.Contributions) > 0 {
		content := cur.Content
		if patch.Content != nil {
			content = *patch.Content
		}
		next := &document.Version{
			Document:      doc.ID,
			Version:       cur.Version + 1,
			Content:       content,
			Contributions: patch.Contributions,
		}
		if err := s.versions.Create(ctx, next); err != nil {
			return nil, err
		}
		if err := s.docs.SetCurrentVersion(ctx, id, next.ID); err != nil {
			// compensate: an unreferenced version would block every later
			// bump with a version conflict
			_ = s.versions.Delete(context.Background(), next.ID.Hex())
			return nil, err
		}
		for _, cid := range patch.Contributions {
			s.notifier.CommentContribution(cid)
		}
		cur = next
	} else if patch.Content != nil {
		if err := s.versions.UpdateContent(ctx, cur.ID.Hex(), *patch.Content); err != nil {
			return nil, err
		}
		cur.Content = *patch.Content
	}

	if patch.Published != nil {
		if err := s.docs.SetPublished(ctx, id, *patch.Published); err != nil {
			return nil, err
		}
		doc.Published = *patch.Published
	}

	// re-emit the schedule so the latest closing date wins
	if cur.Content.ClosingDate != nil {
		s.notifier.DocumentCloses(doc.ID.Hex(), *cur.Content.ClosingDate)
	}
	doc.CurrentVersion = cur.ID
	return s.view(ctx, doc, cur)
}

// List returns one page of documents with their current versions.
func (s *Service) List(ctx context.Context, f document.Filter, page, limit int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	docs, total, err := s.docs.List(ctx, f, page, limit)
	if err != nil {
		return nil, err
	}
	results := make([]*document.View, 0, len(docs))
	for _, d := range docs {
		v, err := s.versions.Get(ctx, d.CurrentVersion.Hex())
		if err != nil {
			return nil, fmt.Errorf("current version of %s: %w", d.ID.Hex(), err)
		}
		results = append(results, &document.View{Document: d, CurrentVersion: v, Closed: v.Closed(s.now())})
	}
	return &ListResult{Results: results, Count: total, Page: page, Limit: limit}, nil
}

func (s *Service) view(ctx context.Context, doc *document.Document, v *document.Version) (*document.View, error) {
	out := &document.View{Document: doc, CurrentVersion: v, Closed: v.Closed(s.now())}
	if !out.Closed {
		return out, nil
	}
	ids, err := s.versions.ContributionIDs(ctx, doc.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("contributions of %s: %w", doc.ID.Hex(), err)
	}
	out.ContributionsCount = len(ids)
	authors, err := s.comments.AuthorsOf(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("contributors of %s: %w", doc.ID.Hex(), err)
	}
	distinct := map[string]bool{}
	for _, a := range authors {
		distinct[a] = true
	}
	out.ContributorsCount = len(distinct)
	contextual, err := s.comments.CountContextual(ctx, doc.ID.Hex())
	if err != nil {
		return nil, fmt.Errorf("contextual comments of %s: %w", doc.ID.Hex(), err)
	}
	out.ContextualCommentsCount = contextual
	return out, nil
}
