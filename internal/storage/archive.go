package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the part of MinIOStorage the archive needs.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
}

// ArchivedArticle is the JSON written for a deleted article.
type ArchivedArticle struct {
	Article    article.Article `json:"article"`
	ArchivedAt time.Time       `json:"archivedAt"`
}

// ArticleArchive keeps a JSON copy of every deleted article under
// deleted/<id>.json.
type ArticleArchive struct {
	store ObjectStore
	now   func() time.Time
}

func NewArticleArchive(store ObjectStore) *ArticleArchive {
	return &ArticleArchive{store: store, now: time.Now}
}

func archiveKey(id string) string { return "deleted/" + id + ".json" }

func (a *ArticleArchive) Archive(ctx context.Context, art *article.Article) error {
	b, err := json.Marshal(ArchivedArticle{Article: *art, ArchivedAt: a.now().UTC()})
	if err != nil {
		return err
	}
	if err := a.store.UploadFile(ctx, archiveKey(art.ID), bytes.NewReader(b), int64(len(b)), "application/json"); err != nil {
		return fmt.Errorf("upload %s: %w", archiveKey(art.ID), err)
	}
	return nil
}

// Load reads back the archived copy of the article with id.
func (a *ArticleArchive) Load(ctx context.Context, id string) (*ArchivedArticle, error) {
	rc, err := a.store.DownloadFile(ctx, archiveKey(id))
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	var out ArchivedArticle
	if err := json.NewDecoder(rc).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", archiveKey(id), err)
	}
	return &out, nil
}
