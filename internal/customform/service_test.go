package customform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
)

type fakeRepo struct {
	byID   map[primitive.ObjectID]*CustomForm
	bySlug map[string]*CustomForm
}

func (f *fakeRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*CustomForm, error) {
	if form, ok := f.byID[id]; ok {
		return form, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeRepo) GetBySlug(ctx context.Context, slug string) (*CustomForm, error) {
	if form, ok := f.bySlug[slug]; ok {
		return form, nil
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeRepo) List(ctx context.Context) ([]*CustomForm, error) { return nil, nil }

func TestResolveByIDAndSlug(t *testing.T) {
	form := &CustomForm{
		ID:   primitive.NewObjectID(),
		Slug: "ley-general",
		Name: "Ley General",
		Fields: FormFields{
			AllowComments: []string{"brief", "articles"},
		},
	}
	repo := &fakeRepo{
		byID:   map[primitive.ObjectID]*CustomForm{form.ID: form},
		bySlug: map[string]*CustomForm{form.Slug: form},
	}
	svc := NewService(repo)

	got, err := svc.Resolve(context.Background(), form.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, form.Slug, got.Slug)

	got, err = svc.Resolve(context.Background(), "ley-general")
	require.NoError(t, err)
	require.Equal(t, form.ID, got.ID)

	_, err = svc.Resolve(context.Background(), "missing-slug")
	require.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestAllowsComments(t *testing.T) {
	form := &CustomForm{Fields: FormFields{AllowComments: []string{"brief"}}}
	require.True(t, form.AllowsComments("brief"))
	require.False(t, form.AllowsComments("title"))
	require.False(t, form.AllowsComments(""))
}
