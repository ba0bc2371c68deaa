package comment

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Comment is anchored to a commentable field of a specific document version.
// Document and Version are both kept as explicit references: an old comment
// keeps pointing at the version it was made against even after newer
// versions supersede it.
type Comment struct {
	ID         primitive.ObjectID     `bson:"_id,omitempty" json:"id"`
	User       string                 `bson:"user" json:"user"` // author sub
	Document   primitive.ObjectID     `bson:"document" json:"document"`
	Version    primitive.ObjectID     `bson:"version" json:"version"`
	Field      string                 `bson:"field" json:"field"`
	Content    string                 `bson:"content" json:"content"`
	Decoration map[string]interface{} `bson:"decoration,omitempty" json:"decoration,omitempty"`
	Resolved   bool                   `bson:"resolved" json:"resolved"`
	Reply      string                 `bson:"reply,omitempty" json:"reply,omitempty"`
	CreatedAt  time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// Like marks that a user liked a comment. Existence is the liked state;
// at most one per (user, comment) pair.
type Like struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      string             `bson:"user" json:"user"`
	Comment   primitive.ObjectID `bson:"comment" json:"comment"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// Filter selects comments by id set, by field (optionally unresolved only),
// or by document. An entirely empty filter is rejected by the service.
type Filter struct {
	IDs            []string
	Document       string
	Field          string
	OnlyUnresolved bool
}

// Empty reports whether no criterion is set.
func (f Filter) Empty() bool {
	return len(f.IDs) == 0 && f.Document == "" && f.Field == ""
}

// DecorationUpdate rewrites the decoration of one comment during a version
// amendment. The comment id travels inside the payload.
type DecorationUpdate struct {
	CommentID  string                 `json:"commentId"`
	Decoration map[string]interface{} `json:"decoration"`
}
