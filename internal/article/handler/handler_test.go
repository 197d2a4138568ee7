package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/internal/article/listview"
	"github.com/AbiyasX/FirebaseActt/internal/article/repository"
	"github.com/AbiyasX/FirebaseActt/internal/article/service"
	"github.com/AbiyasX/FirebaseActt/internal/storage"
	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

// brokenService fails the calls named in its fields.
type brokenService struct {
	service.Service
	getErr, deleteErr, listErr error
}

func (b *brokenService) Get(ctx context.Context, id string) (*article.Article, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return b.Service.Get(ctx, id)
}

func (b *brokenService) Delete(ctx context.Context, id string) error {
	if b.deleteErr != nil {
		return b.deleteErr
	}
	return b.Service.Delete(ctx, id)
}

func (b *brokenService) List(ctx context.Context) ([]article.Article, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.Service.List(ctx)
}

func setup(t *testing.T, opts ...Option) (*gin.Engine, *repository.MemoryRepo, service.Service) {
	t.Helper()
	repo := repository.NewMemoryRepo()
	svc := service.New(repo)
	r := gin.New()
	RegisterArticleRoutes(r, svc, opts...)
	return r, repo, svc
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seed(t *testing.T, svc service.Service, title, body string) string {
	t.Helper()
	id, err := svc.Create(context.Background(), &article.Article{Title: title, Author: "ann", Description: body})
	require.NoError(t, err)
	return id
}

func TestListArticles(t *testing.T) {
	r, _, svc := setup(t)
	seed(t, svc, "first", "")
	seed(t, svc, "second", strings.Repeat("x", 130))

	w := do(r, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0]["title"])
	assert.Equal(t, article.NoContentPlaceholder, got[0]["preview"])
	assert.Equal(t, strings.Repeat("x", 120)+"...", got[1]["preview"])
	assert.NotEmpty(t, got[0]["date"])
	assert.NotEmpty(t, got[0]["id"])
}

func TestListArticles_StoreFailure(t *testing.T) {
	svc := &brokenService{Service: service.NewMemoryService(), listErr: errors.New("down")}
	r := gin.New()
	RegisterArticleRoutes(r, svc)
	w := do(r, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), listview.LoadErrorMessage)
}

func TestGetArticle_Outcomes(t *testing.T) {
	r, _, svc := setup(t, WithRedirectDelay(3*time.Second))
	id := seed(t, svc, "Hello", "one two three")

	w := do(r, http.MethodGet, "/api/articles/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var found struct {
		Article article.Article        `json:"article"`
		Meta    map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	assert.Equal(t, id, found.Article.ID)
	assert.Equal(t, "Hello", found.Article.Title)
	assert.Equal(t, float64(3), found.Meta["wordCount"])
	assert.Equal(t, "1 min read", found.Meta["readingTime"])

	w = do(r, http.MethodGet, "/api/articles/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	var nf map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nf))
	assert.Equal(t, "Article not found", nf["error"])
	assert.Equal(t, "/", nf["redirect"])
	assert.Equal(t, float64(3000), nf["redirectAfterMs"])
}

func TestGetArticle_FetchFailure(t *testing.T) {
	svc := &brokenService{Service: service.NewMemoryService(), getErr: errors.New("timeout")}
	r := gin.New()
	RegisterArticleRoutes(r, svc)
	w := do(r, http.MethodGet, "/api/articles/any", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Unable to load article")
	assert.NotContains(t, w.Body.String(), "redirect")
}

func TestCreateArticle(t *testing.T) {
	withClaims := func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, map[string]interface{}{"sub": "u1", "email": "dana@example.com"})
		c.Next()
	}
	r, repo, _ := setup(t, WithAuth(withClaims))

	w := do(r, http.MethodPost, "/api/articles", `{"title":"  ","description":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/api/articles", `{"title":"New","description":"body"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	a, err := repo.Get(context.Background(), created["id"])
	require.NoError(t, err)
	assert.Equal(t, "dana", a.Author)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Nil(t, a.UpdatedAt)
}

func TestMutationsRequireAuth(t *testing.T) {
	deny := func(c *gin.Context) { c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"}) }
	r, _, svc := setup(t, WithAuth(deny))
	id := seed(t, svc, "kept", "")

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/articles", `{"title":"x"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPatch, "/api/articles/"+id, `{"title":"y"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodDelete, "/api/articles/"+id+"?confirm=true", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/api/archive/articles/"+id, "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/articles/"+id, "").Code)
}

func TestUpdateArticle(t *testing.T) {
	r, _, svc := setup(t)
	id := seed(t, svc, "Old", "body")

	w := do(r, http.MethodPatch, "/api/articles/"+id, `{"title":"New"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var a article.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, "New", a.Title)
	assert.Equal(t, "body", a.Description)
	require.NotNil(t, a.UpdatedAt)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/api/articles/"+id, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/api/articles/"+id, `{"title":""}`).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/api/articles/missing", `{"title":"x"}`).Code)
}

func TestDeleteArticle_NeedsConfirmation(t *testing.T) {
	r, repo, svc := setup(t)
	id := seed(t, svc, "My Post", "")

	w := do(r, http.MethodDelete, "/api/articles/"+id, "")
	require.Equal(t, http.StatusConflict, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Delete \"My Post\"?\n\nThis action cannot be undone.", body["prompt"])
	_, err := repo.Get(context.Background(), id)
	require.NoError(t, err)

	w = do(r, http.MethodDelete, "/api/articles/"+id+"?confirm=true", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	_, err = repo.Get(context.Background(), id)
	require.ErrorIs(t, err, repository.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, "/api/articles/"+id+"?confirm=true", "").Code)
}

func TestDeleteArticle_Failure(t *testing.T) {
	inner := service.NewMemoryService()
	id := seed(t, inner, "t", "")
	svc := &brokenService{Service: inner, deleteErr: errors.New("permission denied")}
	r := gin.New()
	RegisterArticleRoutes(r, svc)

	w := do(r, http.MethodDelete, "/api/articles/"+id+"?confirm=true", "")
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), listview.DeleteErrorMessage)
	_, err := inner.Get(context.Background(), id)
	require.NoError(t, err)
}

type sseEvent struct {
	name string
	data streamPayload
}

func readEvent(t *testing.T, rd *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		switch {
		case line == "":
			if ev.name == "ping" {
				ev = sseEvent{}
			}
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:") && ev.name != "ping":
			require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev.data))
		}
	}
}

func TestStreamArticles(t *testing.T) {
	r, repo, svc := setup(t)
	seed(t, svc, "one", "")
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/articles/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")
	rd := bufio.NewReader(resp.Body)

	ev := readEvent(t, rd)
	require.Equal(t, "snapshot", ev.name)
	require.Len(t, ev.data.Articles, 1)
	assert.Equal(t, "one", ev.data.Articles[0].Title)
	assert.Equal(t, article.NoContentPlaceholder, ev.data.Articles[0].Preview)

	seed(t, svc, "two", "")
	for {
		ev = readEvent(t, rd)
		if len(ev.data.Articles) == 2 {
			break
		}
	}
	assert.Equal(t, "two", ev.data.Articles[1].Title)

	require.Equal(t, 1, repo.Subscribers())
	_ = resp.Body.Close()
	cancel()
	require.Eventually(t, func() bool { return repo.Subscribers() == 0 }, 3*time.Second, 20*time.Millisecond)
}

// failingSubscription delivers a single error event and then stays open.
type failingSubscription struct{ ch chan article.Event }

func (s *failingSubscription) Events() <-chan article.Event { return s.ch }
func (s *failingSubscription) Close() error                 { return nil }

type failingFeedService struct {
	service.Service
}

func (f *failingFeedService) Subscribe(ctx context.Context) (repository.Subscription, error) {
	sub := &failingSubscription{ch: make(chan article.Event, 1)}
	sub.ch <- article.ErrorEvent(errors.New("change stream lost"))
	return sub, nil
}

func TestStreamArticles_EndsAfterError(t *testing.T) {
	r := gin.New()
	RegisterArticleRoutes(r, &failingFeedService{Service: service.NewMemoryService()}, WithKeepAlive(20*time.Millisecond))
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/articles/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rd := bufio.NewReader(resp.Body)

	ev := readEvent(t, rd)
	require.Equal(t, "error", ev.name)
	assert.Equal(t, listview.LoadErrorMessage, ev.data.Error)

	rest, err := io.ReadAll(rd)
	require.NoError(t, err)
	assert.NotContains(t, string(rest), "event:")
}

// bucket is an in-memory object store for the article archive.
type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	down    error
}

func (b *bucket) UploadFile(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[key] = data
	return nil
}

func (b *bucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down != nil {
		return nil, b.down
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func TestArchivedArticle(t *testing.T) {
	objects := &bucket{}
	svc := service.NewMemoryService(service.WithArchive(storage.NewArticleArchive(objects)))
	r := gin.New()
	RegisterArticleRoutes(r, svc)
	id := seed(t, svc, "Retired", "old words")

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/archive/articles/"+id, "").Code)
	require.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/articles/"+id+"?confirm=true", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/articles/"+id, "").Code)

	w := do(r, http.MethodGet, "/api/archive/articles/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Article    article.Article `json:"article"`
		ArchivedAt time.Time       `json:"archivedAt"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.Article.ID)
	assert.Equal(t, "old words", got.Article.Description)
	assert.False(t, got.ArchivedAt.IsZero())

	objects.down = errors.New("bucket offline")
	assert.Equal(t, http.StatusBadGateway, do(r, http.MethodGet, "/api/archive/articles/"+id, "").Code)
}

func TestArchivedArticle_ArchiveDisabled(t *testing.T) {
	r, _, _ := setup(t)
	w := do(r, http.MethodGet, "/api/archive/articles/anything", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), service.ErrNotArchived.Error())
}
