package customform

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Service resolves custom form references for the document workflow.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// Resolve accepts either a hex object id or a slug and returns the form.
func (s *Service) Resolve(ctx context.Context, ref string) (*CustomForm, error) {
	if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
		f, err := s.repo.GetByID(ctx, oid)
		if err != nil {
			return nil, fmt.Errorf("resolve custom form %q: %w", ref, err)
		}
		return f, nil
	}
	f, err := s.repo.GetBySlug(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve custom form %q: %w", ref, err)
	}
	return f, nil
}

func (s *Service) List(ctx context.Context) ([]*CustomForm, error) {
	return s.repo.List(ctx)
}
