package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/internal/article/detailview"
	"github.com/AbiyasX/FirebaseActt/internal/article/listview"
	"github.com/AbiyasX/FirebaseActt/internal/article/service"
	"github.com/AbiyasX/FirebaseActt/internal/auth"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/AbiyasX/FirebaseActt/pkg/middleware"
	"github.com/gin-gonic/gin"
)

var log = logger.Named("article-http")

type options struct {
	auth          gin.HandlerFunc
	redirectDelay time.Duration
	keepAlive     time.Duration
}

type Option func(*options)

// WithAuth guards the create, update and delete routes.
func WithAuth(mw gin.HandlerFunc) Option { return func(o *options) { o.auth = mw } }

// WithRedirectDelay is reported to clients with a not-found article.
func WithRedirectDelay(d time.Duration) Option { return func(o *options) { o.redirectDelay = d } }

// WithKeepAlive sets how often an idle stream gets a ping event.
func WithKeepAlive(d time.Duration) Option { return func(o *options) { o.keepAlive = d } }

// Summary is one row of the article list.
type Summary struct {
	article.Article
	Preview string `json:"preview"`
	Date    string `json:"date"`
}

func summarize(list []article.Article) []Summary {
	out := make([]Summary, 0, len(list))
	for _, a := range list {
		out = append(out, Summary{Article: a, Preview: article.Preview(a.Description), Date: article.FormatDate(a.CreatedAt)})
	}
	return out
}

type createRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
}

// RegisterArticleRoutes mounts the article API on r.
func RegisterArticleRoutes(r gin.IRouter, svc service.Service, opts ...Option) {
	o := options{redirectDelay: detailview.DefaultRedirectDelay, keepAlive: 30 * time.Second}
	for _, fn := range opts {
		fn(&o)
	}
	guarded := func(h gin.HandlerFunc) []gin.HandlerFunc {
		if o.auth == nil {
			return []gin.HandlerFunc{h}
		}
		return []gin.HandlerFunc{o.auth, h}
	}

	r.GET("/api/articles", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context())
		if err != nil {
			log.Errorf("list articles: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": listview.LoadErrorMessage})
			return
		}
		c.JSON(http.StatusOK, summarize(list))
	})

	r.GET("/api/articles/stream", func(c *gin.Context) {
		streamArticles(c, svc, o.keepAlive)
	})

	r.GET("/api/articles/:id", func(c *gin.Context) {
		vm := detailview.New(svc, detailview.WithRedirectDelay(o.redirectDelay))
		defer vm.Close()

		switch vm.Load(c.Request.Context(), c.Param("id")) {
		case detailview.OutcomeFound:
			st := vm.State()
			c.JSON(http.StatusOK, gin.H{"article": st.Article, "meta": detailview.MetaFor(st.Article)})
		case detailview.OutcomeNotFound:
			c.JSON(http.StatusNotFound, gin.H{
				"error":           detailview.NotFoundMessage,
				"redirect":        detailview.RouteHome,
				"redirectAfterMs": o.redirectDelay.Milliseconds(),
			})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": detailview.LoadErrorMessage})
		}
	})

	r.POST("/api/articles", guarded(func(c *gin.Context) {
		var req createRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.Author) == "" {
			req.Author = authorFromClaims(middleware.Claims(c))
		}
		a := &article.Article{Title: req.Title, Author: req.Author, Description: req.Description}
		id, err := svc.Create(c.Request.Context(), a)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": id, "title": a.Title})
	})...)

	r.PATCH("/api/articles/:id", guarded(func(c *gin.Context) {
		var p article.Patch
		if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if p.Empty() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
			return
		}
		a, err := svc.Update(c.Request.Context(), c.Param("id"), p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, a)
	})...)

	r.DELETE("/api/articles/:id", guarded(func(c *gin.Context) {
		id := c.Param("id")
		a, err := svc.Get(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}

		confirmed := c.Query("confirm") == "true"
		var prompt, alert string
		vm := listview.New(svc,
			listview.WithConfirmer(listview.ConfirmFunc(func(_ context.Context, p string) bool {
				prompt = p
				return confirmed
			})),
			listview.WithAlerter(listview.AlertFunc(func(msg string) { alert = msg })),
		)
		res, err := vm.RemoveArticle(c.Request.Context(), id, a.Title)
		switch res {
		case listview.RemoveCancelled:
			c.JSON(http.StatusConflict, gin.H{"error": "confirmation required", "prompt": prompt})
		case listview.RemoveFailed:
			log.Errorf("delete %s: %v", id, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": alert})
		default:
			c.Status(http.StatusNoContent)
		}
	})...)

	// copies kept by the archive when articles were deleted
	r.GET("/api/archive/articles/:id", guarded(func(c *gin.Context) {
		arch, err := svc.Archived(c.Request.Context(), c.Param("id"))
		switch {
		case errors.Is(err, service.ErrNotArchived):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case err != nil:
			log.Errorf("archived %s: %v", c.Param("id"), err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "article archive unavailable"})
		default:
			c.JSON(http.StatusOK, gin.H{"article": arch.Article, "archivedAt": arch.ArchivedAt})
		}
	})...)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": detailview.NotFoundMessage})
	case errors.Is(err, service.ErrTitleMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "article store unavailable"})
	}
}

// authorFromClaims prefers the display name and falls back to the email
// local part.
func authorFromClaims(claims map[string]interface{}) string {
	if name, _ := claims["name"].(string); strings.TrimSpace(name) != "" {
		return name
	}
	if u, _ := claims["preferred_username"].(string); u != "" {
		return u
	}
	email, _ := claims["email"].(string)
	return auth.UsernameFromEmail(email)
}
