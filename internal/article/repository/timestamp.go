package repository

import (
	"fmt"
	"math"
	"time"

	"github.com/AbiyasX/FirebaseActt/internal/article"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// Timestamps reach the collection in several shapes depending on the writer:
// BSON dates from this service, strings or epoch millis from scripts, and
// {seconds, nanoseconds} documents from Firestore exports. They are all
// turned into time.Time here and nowhere else.

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// normalizeTime converts a stored timestamp value to UTC. ok is false when
// the value is absent or cannot be interpreted.
func normalizeTime(v bson.RawValue) (time.Time, bool) {
	switch v.Type {
	case bsontype.DateTime:
		return v.Time().UTC(), true
	case bsontype.Timestamp:
		t, _ := v.Timestamp()
		return time.Unix(int64(t), 0).UTC(), true
	case bsontype.String:
		s := v.StringValue()
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	case bsontype.Int32, bsontype.Int64, bsontype.Double:
		ms, ok := number(v)
		if !ok {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	case bsontype.EmbeddedDocument:
		doc := v.Document()
		secs, ok := lookupNumber(doc, "seconds", "_seconds")
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := lookupNumber(doc, "nanoseconds", "_nanoseconds")
		return time.Unix(int64(secs), int64(nanos)).UTC(), true
	}
	return time.Time{}, false
}

func number(v bson.RawValue) (float64, bool) {
	switch v.Type {
	case bsontype.Int32:
		return float64(v.Int32()), true
	case bsontype.Int64:
		return float64(v.Int64()), true
	case bsontype.Double:
		f := v.Double()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func lookupNumber(doc bson.Raw, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, err := doc.LookupErr(k)
		if err != nil {
			continue
		}
		if n, ok := number(v); ok {
			return n, true
		}
	}
	return 0, false
}

func lookupString(doc bson.Raw, key string) string {
	v, err := doc.LookupErr(key)
	if err != nil {
		return ""
	}
	s, _ := v.StringValueOK()
	return s
}

// decodeArticle reads a stored article without trusting the field types.
func decodeArticle(raw bson.Raw) (article.Article, error) {
	var a article.Article
	idv, err := raw.LookupErr("_id")
	if err != nil {
		return a, fmt.Errorf("decode article: missing _id")
	}
	switch idv.Type {
	case bsontype.String:
		a.ID = idv.StringValue()
	case bsontype.ObjectID:
		a.ID = idv.ObjectID().Hex()
	default:
		return a, fmt.Errorf("decode article: unsupported _id type %s", idv.Type)
	}
	a.Title = lookupString(raw, "title")
	a.Author = lookupString(raw, "author")
	a.Description = lookupString(raw, "description")
	if v, err := raw.LookupErr("createdAt"); err == nil {
		if t, ok := normalizeTime(v); ok {
			a.CreatedAt = t
		}
	}
	if v, err := raw.LookupErr("updatedAt"); err == nil {
		if t, ok := normalizeTime(v); ok {
			a.UpdatedAt = &t
		}
	}
	return a, nil
}
