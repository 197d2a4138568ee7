package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"github.com/AbiyasX/FirebaseActt/pkg/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var log = logger.Named("article-store")

const indexTimeout = 10 * time.Second

// collection is the part of *mongo.Collection the repo uses.
type collection interface {
	Name() string
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// MongoRepo implements the article store on a MongoDB collection. New
// articles use string UUIDs as _id; documents written by other tools may
// carry an ObjectID, which is exposed as its hex string. Live subscriptions
// re-read the collection every time the Notifier reports a change.
type MongoRepo struct {
	col      collection
	notifier Notifier
	now      func() time.Time
}

// NewMongoRepo returns a repo for col and makes sure the sort index exists.
// A nil notifier selects MongoDB change streams, which need the server to run
// as a replica set.
func NewMongoRepo(ctx context.Context, col *mongo.Collection, notifier Notifier) *MongoRepo {
	if notifier == nil {
		notifier = NewChangeStreamNotifier(col)
	}
	ictx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()
	// snapshots are sorted on createdAt
	idxModel := mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}}
	if _, err := col.Indexes().CreateOne(ictx, idxModel); err != nil {
		log.Warnf("create createdAt index on %s: %v", col.Name(), err)
	}
	return newMongoRepo(col, notifier)
}

func newMongoRepo(col collection, notifier Notifier) *MongoRepo {
	return &MongoRepo{col: col, notifier: notifier, now: time.Now}
}

// byID matches id as stored, or as an ObjectID when id is 24 hex digits.
func byID(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

func (m *MongoRepo) Create(ctx context.Context, a *article.Article) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	// createdAt is always assigned here, never taken from the caller
	a.CreatedAt = m.now().UTC()
	a.UpdatedAt = nil
	doc := bson.M{
		"_id":         a.ID,
		"title":       a.Title,
		"author":      a.Author,
		"description": a.Description,
		"createdAt":   a.CreatedAt,
	}
	if _, err := m.col.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}
	m.changed(ctx)
	return a.ID, nil
}

func (m *MongoRepo) Get(ctx context.Context, id string) (*article.Article, error) {
	raw, err := m.col.FindOne(ctx, byID(id)).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find article %s: %w", id, err)
	}
	a, err := decodeArticle(raw)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (m *MongoRepo) List(ctx context.Context) ([]article.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	defer cur.Close(ctx)
	out := []article.Article{}
	for cur.Next(ctx) {
		a, err := decodeArticle(cur.Current)
		if err != nil {
			log.Warnf("skipping undecodable article: %v", err)
			continue
		}
		out = append(out, a)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return out, nil
}

func (m *MongoRepo) Update(ctx context.Context, id string, p article.Patch) (*article.Article, error) {
	a, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Apply(a, m.now().UTC())
	set := bson.M{
		"title":       a.Title,
		"author":      a.Author,
		"description": a.Description,
		"updatedAt":   *a.UpdatedAt,
	}
	res, err := m.col.UpdateOne(ctx, byID(id), bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update article %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	m.changed(ctx)
	return a, nil
}

func (m *MongoRepo) Delete(ctx context.Context, id string) error {
	res, err := m.col.DeleteOne(ctx, byID(id))
	if err != nil {
		return fmt.Errorf("delete article %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	m.changed(ctx)
	return nil
}

// Subscribe starts listening for changes before reading the first snapshot,
// so a write that lands in between still produces a later snapshot.
func (m *MongoRepo) Subscribe(ctx context.Context) (Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	lis, err := m.notifier.Listen(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("listen for article changes: %w", err)
	}
	f := newFeed(cancel)
	go func() {
		defer f.Close()
		defer lis.Close()

		emit := func() bool {
			list, err := m.List(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.push(article.ErrorEvent(err))
				}
				return false
			}
			return f.push(article.SnapshotEvent(list))
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-lis.Changes():
				if !ok {
					if err := lis.Err(); err != nil && ctx.Err() == nil {
						f.push(article.ErrorEvent(err))
					}
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
	return f, nil
}

func (m *MongoRepo) changed(ctx context.Context) {
	if err := m.notifier.Publish(ctx); err != nil {
		log.Warnf("publish article change: %v", err)
	}
}
