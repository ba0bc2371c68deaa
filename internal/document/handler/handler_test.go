package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	commentrepo "github.com/guillecro/leyesabiertas-core/internal/comment/repository"
	"github.com/guillecro/leyesabiertas-core/internal/community"
	"github.com/guillecro/leyesabiertas-core/internal/config"
	"github.com/guillecro/leyesabiertas-core/internal/customform"
	"github.com/guillecro/leyesabiertas-core/internal/document"
	"github.com/guillecro/leyesabiertas-core/internal/document/repository"
	"github.com/guillecro/leyesabiertas-core/internal/document/service"
	"github.com/guillecro/leyesabiertas-core/internal/notify"
	"github.com/guillecro/leyesabiertas-core/pkg/middleware"
)

type fakeToken struct{ claims map[string]interface{} }

func (t *fakeToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type fakeVerifier struct{ tokens map[string]map[string]interface{} }

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	claims, ok := f.tokens[raw]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &fakeToken{claims: claims}, nil
}

type staticForms struct{}

func (staticForms) Resolve(ctx context.Context, ref string) (*customform.CustomForm, error) {
	return &customform.CustomForm{Slug: ref}, nil
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	versions := repository.NewMemoryVersionRepo()
	docs := repository.NewMemoryDocumentRepo(versions)
	comments := commentrepo.NewMemoryCommentRepo()
	policy := community.NewStaticRepository(community.Default(config.CommunityConfig{
		Name:                  "test",
		DocumentCreationLimit: 5,
	}))
	dispatcher := notify.NewDispatcher(notify.FuncSink(func(ctx context.Context, ev notify.Event) error { return nil }), notify.NewMemoryScheduleStore(), 4)
	t.Cleanup(dispatcher.Close)
	svc := service.New(docs, versions, staticForms{}, policy, comments, dispatcher)

	verifier := &fakeVerifier{tokens: map[string]map[string]interface{}{
		"author-token": {"sub": "author-1", "name": "Ana", "roles": []interface{}{"accountable"}},
		"other-token":  {"sub": "author-2", "name": "Beto", "roles": []interface{}{"accountable"}},
		"reader-token": {"sub": "reader-1", "name": "Cata"},
	}}

	g := gin.New()
	api := g.Group("/api/v1")
	RegisterDocumentRoutes(api, svc, middleware.AuthMiddleware(verifier))
	return g
}

func doJSON(g *gin.Engine, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	g.ServeHTTP(w, req)
	return w
}

func createDocument(t *testing.T, g *gin.Engine, token string) string {
	t.Helper()
	w := doJSON(g, http.MethodPost, "/api/v1/documents", token,
		`{"customForm":"article","content":{"title":"Ley de Humedales"}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var view document.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view.Document.ID.Hex()
}

func TestCreateDocument_RequiresAccountable(t *testing.T) {
	g := newRouter(t)

	w := doJSON(g, http.MethodPost, "/api/v1/documents", "", `{"customForm":"article"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(g, http.MethodPost, "/api/v1/documents", "reader-token", `{"customForm":"article"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	createDocument(t, g, "author-token")
}

func TestGetDocument(t *testing.T) {
	g := newRouter(t)
	id := createDocument(t, g, "author-token")

	w := doJSON(g, http.MethodGet, "/api/v1/documents/"+id, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view document.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, 1, view.CurrentVersion.Version)
	require.False(t, view.Closed)

	w = doJSON(g, http.MethodGet, "/api/v1/documents/aaaaaaaaaaaaaaaaaaaaaaaa", "", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateDocument_AuthorOnly(t *testing.T) {
	g := newRouter(t)
	id := createDocument(t, g, "author-token")

	w := doJSON(g, http.MethodPut, "/api/v1/documents/"+id, "other-token", `{"published":true}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(g, http.MethodPut, "/api/v1/documents/"+id, "author-token", `{"published":true,"content":{"title":"revised"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var view document.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.True(t, view.Document.Published)
	require.Equal(t, "revised", view.CurrentVersion.Content.Title)
	require.Equal(t, 1, view.CurrentVersion.Version)
}

func TestUpdateDocument_ContributionsBumpVersion(t *testing.T) {
	g := newRouter(t)
	id := createDocument(t, g, "author-token")

	w := doJSON(g, http.MethodPut, "/api/v1/documents/"+id, "author-token",
		`{"content":{"title":"v2"},"contributions":["c1","c2"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	var view document.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.Equal(t, 2, view.CurrentVersion.Version)
}

func TestListDocuments_PublishedOnly(t *testing.T) {
	g := newRouter(t)
	id := createDocument(t, g, "author-token")
	createDocument(t, g, "author-token") // stays draft

	w := doJSON(g, http.MethodPut, "/api/v1/documents/"+id, "author-token", `{"published":true}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(g, http.MethodGet, "/api/v1/documents", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page service.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, int64(1), page.Count)
	require.Len(t, page.Results, 1)
}

func TestMyDocuments(t *testing.T) {
	g := newRouter(t)
	for i := 0; i < 3; i++ {
		createDocument(t, g, "author-token")
	}
	createDocument(t, g, "other-token")

	w := doJSON(g, http.MethodGet, "/api/v1/my-documents?limit=2", "author-token", "")
	require.Equal(t, http.StatusOK, w.Code)
	var page service.ListResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Equal(t, int64(3), page.Count)
	require.Len(t, page.Results, 2)
	require.Equal(t, 2, page.Limit)

	w = doJSON(g, http.MethodGet, "/api/v1/my-documents", "", "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateDocument_PolicyLimit(t *testing.T) {
	g := newRouter(t)
	for i := 0; i < 5; i++ {
		createDocument(t, g, "author-token")
	}
	w := doJSON(g, http.MethodPost, "/api/v1/documents", "author-token",
		fmt.Sprintf(`{"customForm":"article","content":{"title":"doc %d"}}`, 6))
	require.Equal(t, http.StatusForbidden, w.Code)
}
