package article

import "time"

// Article is a published text article as held by the document store.
// CreatedAt is assigned by the store when the article is created; UpdatedAt
// stays nil until the first edit.
type Article struct {
	ID          string     `json:"id" bson:"_id"`
	Title       string     `json:"title" bson:"title"`
	Author      string     `json:"author" bson:"author"`
	Description string     `json:"description" bson:"description"`
	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Patch carries the editable fields of an article. Nil fields are left as-is.
type Patch struct {
	Title       *string `json:"title,omitempty"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Author == nil && p.Description == nil
}

// Apply copies the set fields of p onto a and bumps UpdatedAt. UpdatedAt never
// moves backwards, even when now is earlier than the stored value.
func (p Patch) Apply(a *Article, now time.Time) {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Author != nil {
		a.Author = *p.Author
	}
	if p.Description != nil {
		a.Description = *p.Description
	}
	if a.UpdatedAt != nil && a.UpdatedAt.After(now) {
		return
	}
	a.UpdatedAt = &now
}

// EventKind distinguishes the two shapes of a subscription event.
type EventKind int

const (
	EventSnapshot EventKind = iota
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventError:
		return "error"
	}
	return "unknown"
}

// Event is delivered on a collection subscription: either a full ordered
// snapshot of the collection or the error that ended the stream.
type Event struct {
	Kind     EventKind
	Articles []Article
	Err      error
}

// SnapshotEvent builds a snapshot event that owns a copy of list.
func SnapshotEvent(list []Article) Event {
	out := make([]Article, len(list))
	copy(out, list)
	return Event{Kind: EventSnapshot, Articles: out}
}

// ErrorEvent builds an error event.
func ErrorEvent(err error) Event {
	return Event{Kind: EventError, Err: err}
}
