package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/internal/article/repository"
	"github.com/AbiyasX/FirebaseActt/internal/storage"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound     = repository.ErrNotFound
	ErrTitleMissing = errors.New("title is required")
	ErrNotArchived  = errors.New("article not archived")
)

var log = logger.Named("article-service")

// Service is the store contract consumed by the view models and handlers.
type Service interface {
	Create(ctx context.Context, a *article.Article) (string, error)
	Get(ctx context.Context, id string) (*article.Article, error)
	List(ctx context.Context) ([]article.Article, error)
	Update(ctx context.Context, id string, p article.Patch) (*article.Article, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (repository.Subscription, error)
	Archived(ctx context.Context, id string) (*storage.ArchivedArticle, error)
}

// Archiver keeps a copy of an article that is about to be deleted and reads
// it back later.
type Archiver interface {
	Archive(ctx context.Context, a *article.Article) error
	Load(ctx context.Context, id string) (*storage.ArchivedArticle, error)
}

// Repository is implemented by MemoryRepo and MongoRepo.
type Repository interface {
	Create(ctx context.Context, a *article.Article) (string, error)
	Get(ctx context.Context, id string) (*article.Article, error)
	List(ctx context.Context) ([]article.Article, error)
	Update(ctx context.Context, id string, p article.Patch) (*article.Article, error)
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context) (repository.Subscription, error)
}

type Option func(*articleService)

// WithArchive stores every article in a before it is deleted. A failed
// archive aborts the delete.
func WithArchive(a Archiver) Option {
	return func(s *articleService) { s.archive = a }
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService(opts ...Option) Service {
	return New(repository.NewMemoryRepo(), opts...)
}

// NewMongoService returns a Service backed by a MongoDB collection.
// Caller is responsible for creating the collection (and client) and passing
// it in. A nil notifier selects change streams.
func NewMongoService(ctx context.Context, col *mongo.Collection, notifier repository.Notifier, opts ...Option) Service {
	return New(repository.NewMongoRepo(ctx, col, notifier), opts...)
}

// New wraps repo with validation and archiving.
func New(repo Repository, opts ...Option) Service {
	s := &articleService{repo: repo}
	for _, o := range opts {
		o(s)
	}
	return s
}

type articleService struct {
	repo    Repository
	archive Archiver
}

func (s *articleService) Create(ctx context.Context, a *article.Article) (string, error) {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return "", ErrTitleMissing
	}
	return s.repo.Create(ctx, a)
}

func (s *articleService) Get(ctx context.Context, id string) (*article.Article, error) {
	return s.repo.Get(ctx, id)
}

func (s *articleService) List(ctx context.Context) ([]article.Article, error) {
	return s.repo.List(ctx)
}

func (s *articleService) Update(ctx context.Context, id string, p article.Patch) (*article.Article, error) {
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return nil, ErrTitleMissing
		}
		p.Title = &t
	}
	return s.repo.Update(ctx, id, p)
}

func (s *articleService) Delete(ctx context.Context, id string) error {
	if s.archive != nil {
		a, err := s.repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := s.archive.Archive(ctx, a); err != nil {
			return fmt.Errorf("archive article %s: %w", id, err)
		}
		log.Debugf("archived article %s before delete", id)
	}
	return s.repo.Delete(ctx, id)
}

func (s *articleService) Subscribe(ctx context.Context) (repository.Subscription, error) {
	return s.repo.Subscribe(ctx)
}

// Archived returns the copy kept when the article with id was deleted.
func (s *articleService) Archived(ctx context.Context, id string) (*storage.ArchivedArticle, error) {
	if s.archive == nil {
		return nil, ErrNotArchived
	}
	a, err := s.archive.Load(ctx, id)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, ErrNotArchived
	}
	if err != nil {
		return nil, fmt.Errorf("load archived article %s: %w", id, err)
	}
	return a, nil
}
