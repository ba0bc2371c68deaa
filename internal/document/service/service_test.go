package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
	commentrepo "github.com/guillecro/leyesabiertas-core/internal/comment/repository"
	"github.com/guillecro/leyesabiertas-core/internal/community"
	"github.com/guillecro/leyesabiertas-core/internal/customform"
	"github.com/guillecro/leyesabiertas-core/internal/document"
	"github.com/guillecro/leyesabiertas-core/internal/document/repository"
	"github.com/guillecro/leyesabiertas-core/internal/models"
	"github.com/guillecro/leyesabiertas-core/internal/notify"
)

type staticForms struct{ form *customform.CustomForm }

func (s *staticForms) Resolve(ctx context.Context, ref string) (*customform.CustomForm, error) {
	if ref == "missing" {
		return nil, apperrors.ErrNotFound
	}
	return s.form, nil
}

type capture struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *capture) sink() notify.FuncSink {
	return func(ctx context.Context, ev notify.Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, ev)
		return nil
	}
}

func (c *capture) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Type
	}
	return out
}

type fixture struct {
	svc        *Service
	docs       *repository.MemoryDocumentRepo
	versions   *repository.MemoryVersionRepo
	comments   *commentrepo.MemoryCommentRepo
	dispatcher *notify.Dispatcher
	events     *capture
}

func newFixture(t *testing.T, creationLimit int) *fixture {
	t.Helper()
	versions := repository.NewMemoryVersionRepo()
	docs := repository.NewMemoryDocumentRepo(versions)
	comments := commentrepo.NewMemoryCommentRepo()
	events := &capture{}
	dispatcher := notify.NewDispatcher(events.sink(), notify.NewMemoryScheduleStore(), 16)
	policy := community.NewStaticRepository(&community.Community{
		Name: "test",
		Permissions: community.Permissions{
			Accountable: community.AccountablePermissions{DocumentCreationLimit: creationLimit},
		},
	})
	forms := &staticForms{form: &customform.CustomForm{Slug: "article"}}
	return &fixture{
		svc:        New(docs, versions, forms, policy, comments, dispatcher),
		docs:       docs,
		versions:   versions,
		comments:   comments,
		dispatcher: dispatcher,
		events:     events,
	}
}

func TestCreate_FirstVersion(t *testing.T) {
	f := newFixture(t, 5)
	actor := &models.User{Sub: "author-1"}

	view, err := f.svc.Create(context.Background(), actor, "article", document.VersionContent{Title: "Ley de Humedales"})
	require.NoError(t, err)
	require.Equal(t, 1, view.CurrentVersion.Version)
	require.False(t, view.Document.Published)
	require.False(t, view.Closed)
	require.Equal(t, view.CurrentVersion.ID, view.Document.CurrentVersion)
}

func TestCreate_PolicyLimit(t *testing.T) {
	f := newFixture(t, 2)
	actor := &models.User{Sub: "author-1"}

	for i := 0; i < 2; i++ {
		_, err := f.svc.Create(context.Background(), actor, "article", document.VersionContent{Title: fmt.Sprintf("doc %d", i)})
		require.NoError(t, err)
	}
	_, err := f.svc.Create(context.Background(), actor, "article", document.VersionContent{Title: "one too many"})
	require.ErrorIs(t, err, apperrors.ErrPolicyViolation)

	// the limit is per author
	_, err = f.svc.Create(context.Background(), &models.User{Sub: "author-2"}, "article", document.VersionContent{Title: "fine"})
	require.NoError(t, err)
}

func TestCreate_UnknownForm(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.svc.Create(context.Background(), &models.User{Sub: "author-1"}, "missing", document.VersionContent{})
	require.ErrorIs(t, err, apperrors.ErrInvalidParam)
}

func TestCreate_WithClosingDateSchedulesEvent(t *testing.T) {
	f := newFixture(t, 5)
	closes := time.Now().Add(48 * time.Hour).UTC()
	view, err := f.svc.Create(context.Background(), &models.User{Sub: "author-1"}, "article", document.VersionContent{
		Title:       "Presupuesto",
		ClosingDate: &closes,
	})
	require.NoError(t, err)

	f.dispatcher.Close()
	require.Equal(t, []string{notify.EventDocumentCloses}, f.events.types())
	require.Equal(t, view.Document.ID.Hex(), f.events.events[0].DocumentID)
}

func TestUpdate_AuthorOnly(t *testing.T) {
	f := newFixture(t, 5)
	view, err := f.svc.Create(context.Background(), &models.User{Sub: "author-1"}, "article", document.VersionContent{Title: "draft"})
	require.NoError(t, err)

	published := true
	_, err = f.svc.Update(context.Background(), view.Document.ID.Hex(), &models.User{Sub: "author-2"}, UpdatePatch{Published: &published})
	require.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = f.svc.Update(context.Background(), view.Document.ID.Hex(), nil, UpdatePatch{Published: &published})
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestUpdate_AmendInPlace(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: "draft"})
	require.NoError(t, err)

	updated, err := f.svc.Update(context.Background(), view.Document.ID.Hex(), author, UpdatePatch{
		Content: &document.VersionContent{Title: "draft, revised"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, updated.CurrentVersion.Version)
	require.Equal(t, "draft, revised", updated.CurrentVersion.Content.Title)
	require.Equal(t, view.CurrentVersion.ID, updated.CurrentVersion.ID)
}

func TestUpdate_ContributionsBumpVersion(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: "v1"})
	require.NoError(t, err)

	updated, err := f.svc.Update(context.Background(), view.Document.ID.Hex(), author, UpdatePatch{
		Content:       &document.VersionContent{Title: "v2"},
		Contributions: []string{"comment-a", "comment-b"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.CurrentVersion.Version)
	require.Equal(t, "v2", updated.CurrentVersion.Content.Title)
	require.NotEqual(t, view.CurrentVersion.ID, updated.CurrentVersion.ID)
	require.Equal(t, updated.CurrentVersion.ID, updated.Document.CurrentVersion)

	// the first version is untouched
	prev, err := f.versions.Get(context.Background(), view.CurrentVersion.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, "v1", prev.Content.Title)

	f.dispatcher.Close()
	require.Equal(t, []string{notify.EventCommentContribution, notify.EventCommentContribution}, f.events.types())
}

func TestUpdate_ContributionsCarryContentForward(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: "kept"})
	require.NoError(t, err)

	updated, err := f.svc.Update(context.Background(), view.Document.ID.Hex(), author, UpdatePatch{
		Contributions: []string{"comment-a"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.CurrentVersion.Version)
	require.Equal(t, "kept", updated.CurrentVersion.Content.Title)
}

func TestUpdate_ClosedFlagIgnored(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: "open"})
	require.NoError(t, err)

	closed := true
	updated, err := f.svc.Update(context.Background(), view.Document.ID.Hex(), author, UpdatePatch{Closed: &closed})
	require.NoError(t, err)
	require.False(t, updated.Closed)
}

func TestGet_ClosedCarriesAggregates(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	past := time.Now().Add(-time.Hour).UTC()
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{
		Title:       "finished",
		ClosingDate: &past,
	})
	require.NoError(t, err)
	docID := view.Document.ID

	c1 := &comment.Comment{User: "reader-1", Document: docID, Version: view.CurrentVersion.ID, Field: "articles", Content: "a"}
	c2 := &comment.Comment{User: "reader-2", Document: docID, Version: view.CurrentVersion.ID, Field: "articles", Content: "b"}
	c3 := &comment.Comment{User: "reader-1", Document: docID, Version: view.CurrentVersion.ID, Field: "articles", Content: "c",
		Decoration: map[string]interface{}{"from": 10, "to": 24}}
	for _, c := range []*comment.Comment{c1, c2, c3} {
		require.NoError(t, f.comments.Create(context.Background(), c))
	}

	_, err = f.svc.Update(context.Background(), docID.Hex(), author, UpdatePatch{
		Contributions: []string{c1.ID.Hex(), c2.ID.Hex()},
	})
	require.NoError(t, err)
	_, err = f.svc.Update(context.Background(), docID.Hex(), author, UpdatePatch{
		Contributions: []string{c3.ID.Hex()},
	})
	require.NoError(t, err)

	got, err := f.svc.Get(context.Background(), docID.Hex())
	require.NoError(t, err)
	require.True(t, got.Closed)
	require.Equal(t, 3, got.ContributionsCount)
	require.Equal(t, 2, got.ContributorsCount)
	require.Equal(t, int64(1), got.ContextualCommentsCount)
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t, 100)
	author := &models.User{Sub: "author-1"}
	for i := 0; i < 7; i++ {
		view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: fmt.Sprintf("doc %d", i)})
		require.NoError(t, err)
		if i%2 == 0 {
			published := true
			_, err = f.svc.Update(context.Background(), view.Document.ID.Hex(), author, UpdatePatch{Published: &published})
			require.NoError(t, err)
		}
	}

	published := true
	page, err := f.svc.List(context.Background(), document.Filter{Published: &published}, 1, 3)
	require.NoError(t, err)
	require.Equal(t, int64(4), page.Count)
	require.Len(t, page.Results, 3)

	page, err = f.svc.List(context.Background(), document.Filter{Published: &published}, 2, 3)
	require.NoError(t, err)
	require.Len(t, page.Results, 1)

	// out-of-range values fall back to sane defaults
	page, err = f.svc.List(context.Background(), document.Filter{Author: "author-1"}, 0, -5)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, 10, page.Limit)
	require.Len(t, page.Results, 7)
}

type failingDocs struct {
	Repository
}

func (failingDocs) CreateWithVersion(ctx context.Context, doc *document.Document, v *document.Version) error {
	return fmt.Errorf("write failed")
}

func TestCreate_StoreFailureEmitsNothing(t *testing.T) {
	f := newFixture(t, 5)
	f.svc.docs = failingDocs{Repository: f.docs}

	closes := time.Now().Add(time.Hour).UTC()
	_, err := f.svc.Create(context.Background(), &models.User{Sub: "author-1"}, "article", document.VersionContent{
		Title:       "doomed",
		ClosingDate: &closes,
	})
	require.Error(t, err)

	f.dispatcher.Close()
	require.Empty(t, f.events.types())
}

type brokenPointerDocs struct {
	Repository
}

func (brokenPointerDocs) SetCurrentVersion(ctx context.Context, id string, versionID primitive.ObjectID) error {
	return fmt.Errorf("pointer update failed")
}

func TestUpdate_ContributionFailureLeavesNoOrphanVersion(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: "v1"})
	require.NoError(t, err)
	docID := view.Document.ID.Hex()

	f.svc.docs = brokenPointerDocs{Repository: f.docs}
	_, err = f.svc.Update(context.Background(), docID, author, UpdatePatch{
		Contributions: []string{"comment-a"},
	})
	require.Error(t, err)

	// the half-written version was compensated away, so later bumps are
	// not wedged on a version conflict and the merge history stays clean
	f.svc.docs = f.docs
	updated, err := f.svc.Update(context.Background(), docID, author, UpdatePatch{
		Contributions: []string{"comment-b"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, updated.CurrentVersion.Version)

	ids, err := f.versions.ContributionIDs(context.Background(), docID)
	require.NoError(t, err)
	require.Equal(t, []string{"comment-b"}, ids)
}

func TestUpdate_DecorationsRewrite(t *testing.T) {
	f := newFixture(t, 5)
	author := &models.User{Sub: "author-1"}
	view, err := f.svc.Create(context.Background(), author, "article", document.VersionContent{Title: "annotated"})
	require.NoError(t, err)

	c := &comment.Comment{
		User:       "reader-1",
		Document:   view.Document.ID,
		Version:    view.CurrentVersion.ID,
		Field:      "articles",
		Content:    "anchored",
		Decoration: map[string]interface{}{"from": 1, "to": 5},
	}
	require.NoError(t, f.comments.Create(context.Background(), c))

	_, err = f.svc.Update(context.Background(), view.Document.ID.Hex(), author, UpdatePatch{
		Decorations: []comment.DecorationUpdate{
			{CommentID: c.ID.Hex(), Decoration: map[string]interface{}{"from": 10, "to": 14}},
		},
	})
	require.NoError(t, err)

	got, err := f.comments.Get(context.Background(), c.ID.Hex())
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"from": 10, "to": 14}, got.Decoration)
}
