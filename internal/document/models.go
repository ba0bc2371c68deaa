package document

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VersionContent is the form-shaped payload of a document version. Fields
// carries the custom-form values; the schema itself lives with the custom
// form, not here.
type VersionContent struct {
	Title       string                 `bson:"title" json:"title"`
	Brief       string                 `bson:"brief,omitempty" json:"brief,omitempty"`
	Fields      map[string]interface{} `bson:"fields,omitempty" json:"fields,omitempty"`
	ClosingDate *time.Time             `bson:"closingDate,omitempty" json:"closingDate,omitempty"`
}

// Document carries identity, authorship and lifecycle state. The content
// itself lives on the version chain; CurrentVersion always references a
// version of this document. Author never changes after creation.
type Document struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Author         string             `bson:"author" json:"author"` // user sub
	CustomForm     string             `bson:"customForm" json:"customForm"`
	Published      bool               `bson:"published" json:"published"`
	CurrentVersion primitive.ObjectID `bson:"currentVersion" json:"currentVersion"`
	CommentsCount  int                `bson:"commentsCount" json:"commentsCount"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Version is an immutable snapshot of document content. Version numbers form
// a strictly increasing chain per document starting at 1. The only permitted
// mutation is an in-place content amendment that carries no contributions.
type Version struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Document      primitive.ObjectID `bson:"document" json:"document"`
	Version       int                `bson:"version" json:"version"`
	Content       VersionContent     `bson:"content" json:"content"`
	Contributions []string           `bson:"contributions" json:"contributions"` // merged comment ids
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Closed reports whether the version's closing date has passed. A version
// without a closing date never closes.
func (v *Version) Closed(now time.Time) bool {
	return v.Content.ClosingDate != nil && !now.Before(*v.Content.ClosingDate)
}

// Filter selects documents for listing: published-only for the public
// listing, or authored-by for my-documents.
type Filter struct {
	Published *bool
	Author    string
}

// View is the read model returned by Get: the document, its current version
// and the derived closed flag. The aggregate counts are populated only once
// the document is closed.
type View struct {
	Document                *Document `json:"document"`
	CurrentVersion          *Version  `json:"currentVersion"`
	Closed                  bool      `json:"closed"`
	ContributionsCount      int       `json:"contributionsCount,omitempty"`
	ContributorsCount       int       `json:"contributorsCount,omitempty"`
	ContextualCommentsCount int64     `json:"contextualCommentsCount,omitempty"`
}
