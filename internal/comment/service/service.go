package service

import (
	"context"
	"fmt"
	"time"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
	"github.com/guillecro/leyesabiertas-core/internal/customform"
	"github.com/guillecro/leyesabiertas-core/internal/document"
	"github.com/guillecro/leyesabiertas-core/internal/models"
	"github.com/guillecro/leyesabiertas-core/internal/notify"
)

// Repository is the comment store contract.
type Repository interface {
	Create(ctx context.Context, c *comment.Comment) error
	Get(ctx context.Context, id string) (*comment.Comment, error)
	GetAll(ctx context.Context, f comment.Filter) ([]*comment.Comment, error)
	SetResolved(ctx context.Context, id string) error
	SetReply(ctx context.Context, id, reply string) error
}

// LikeRepository is the like store contract. Get returns nil when no like
// exists for the pair.
type LikeRepository interface {
	Get(ctx context.Context, user, commentID string) (*comment.Like, error)
	Create(ctx context.Context, l *comment.Like) error
	Remove(ctx context.Context, id string) error
}

// DocumentStore is the slice of the document store the comment workflow
// needs: lookups, version lookups and the comment counter.
type DocumentStore interface {
	Get(ctx context.Context, id string) (*document.Document, error)
	IncCommentsCount(ctx context.Context, id string) error
}

type VersionStore interface {
	Get(ctx context.Context, id string) (*document.Version, error)
}

type FormProvider interface {
	Resolve(ctx context.Context, ref string) (*customform.CustomForm, error)
}

// CreateInput is the tagged input for Create.
type CreateInput struct {
	Document   string
	Field      string
	Content    string
	Decoration map[string]interface{}
}

// Service owns the comment and like workflows.
type Service struct {
	comments Repository
	likes    LikeRepository
	docs     DocumentStore
	versions VersionStore
	forms    FormProvider
	notifier *notify.Dispatcher
	now      func() time.Time
}

func New(comments Repository, likes LikeRepository, docs DocumentStore, versions VersionStore, forms FormProvider, notifier *notify.Dispatcher) *Service {
	return &Service{
		comments: comments,
		likes:    likes,
		docs:     docs,
		versions: versions,
		forms:    forms,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create anchors a comment to a commentable field of the document's current
// version. Fails with ErrClosed past the closing date and ErrInvalidParam
// when the field does not accept comments.
func (s *Service) Create(ctx context.Context, actor *models.User, in CreateInput) (*comment.Comment, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	doc, err := s.docs.Get(ctx, in.Document)
	if err != nil {
		return nil, err
	}
	cur, err := s.versions.Get(ctx, doc.CurrentVersion.Hex())
	if err != nil {
		return nil, fmt.Errorf("current version of %s: %w", in.Document, err)
	}
	if cur.Closed(s.now()) {
		return nil, fmt.Errorf("document %s: %w", in.Document, apperrors.ErrClosed)
	}
	form, err := s.forms.Resolve(ctx, doc.CustomForm)
	if err != nil {
		return nil, fmt.Errorf("custom form of %s: %w", in.Document, err)
	}
	if !form.AllowsComments(in.Field) {
		return nil, fmt.Errorf("field %q does not accept comments: %w", in.Field, apperrors.ErrInvalidParam)
	}

	c := &comment.Comment{
		User:       actor.Sub,
		Document:   doc.ID,
		Version:    cur.ID,
		Field:      in.Field,
		Content:    in.Content,
		Decoration: in.Decoration,
		Resolved:   false,
	}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	if err := s.docs.IncCommentsCount(ctx, in.Document); err != nil {
		return nil, fmt.Errorf("increment comments count of %s: %w", in.Document, err)
	}
	s.notifier.CommentNew(c.ID.Hex())
	return c, nil
}

// GetAll lists comments by filter. An empty filter fails with
// ErrMissingQuery. When withReplies is false the reply text is omitted from
// the projection.
func (s *Service) GetAll(ctx context.Context, f comment.Filter, withReplies bool) ([]*comment.Comment, error) {
	if f.Empty() {
		return nil, apperrors.ErrMissingQuery
	}
	comments, err := s.comments.GetAll(ctx, f)
	if err != nil {
		return nil, err
	}
	if !withReplies {
		for _, c := range comments {
			c.Reply = ""
		}
	}
	return comments, nil
}

// Resolve marks a comment resolved. Only the document's author may resolve;
// resolving twice is not an error.
func (s *Service) Resolve(ctx context.Context, actor *models.User, id string) (*comment.Comment, error) {
	c, _, err := s.authorOnly(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.comments.SetResolved(ctx, id); err != nil {
		return nil, err
	}
	c.Resolved = true
	s.notifier.CommentResolved(id)
	return c, nil
}

// Reply sets the author's response on a comment, overwriting any prior
// reply.
func (s *Service) Reply(ctx context.Context, actor *models.User, id, reply string) (*comment.Comment, error) {
	c, _, err := s.authorOnly(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.comments.SetReply(ctx, id, reply); err != nil {
		return nil, err
	}
	c.Reply = reply
	return c, nil
}

// ToggleLike flips the (user, comment) like. The returned like is nil when
// the toggle removed an existing one, letting the caller distinguish the
// two outcomes.
func (s *Service) ToggleLike(ctx context.Context, actor *models.User, commentID string) (*comment.Like, error) {
	if actor == nil {
		return nil, apperrors.ErrUnauthorized
	}
	c, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return nil, err
	}
	existing, err := s.likes.Get(ctx, actor.Sub, commentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := s.likes.Remove(ctx, existing.ID.Hex()); err != nil {
			return nil, err
		}
		return nil, nil
	}
	l := &comment.Like{User: actor.Sub, Comment: c.ID}
	if err := s.likes.Create(ctx, l); err != nil {
		return nil, err
	}
	doc, err := s.docs.Get(ctx, c.Document.Hex())
	if err != nil {
		return nil, err
	}
	// a like from the document's author is worth telling the commenter about
	if actor.Sub != c.User && actor.Sub == doc.Author {
		s.notifier.CommentLiked(commentID)
	}
	return l, nil
}

func (s *Service) authorOnly(ctx context.Context, actor *models.User, commentID string) (*comment.Comment, *document.Document, error) {
	if actor == nil {
		return nil, nil, apperrors.ErrUnauthorized
	}
	c, err := s.comments.Get(ctx, commentID)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.docs.Get(ctx, c.Document.Hex())
	if err != nil {
		return nil, nil, err
	}
	if doc.Author != actor.Sub {
		return nil, nil, fmt.Errorf("user %s is not the author of document %s: %w", actor.Sub, doc.ID.Hex(), apperrors.ErrForbidden)
	}
	return c, doc, nil
}
