package customform

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FormBlock groups fields for presentation.
type FormBlock struct {
	Name   string   `bson:"name" json:"name"`
	Fields []string `bson:"fields" json:"fields"`
}

// FormFields describes the field schema of a custom form: the open property
// map, which fields are required, and which ones accept comments.
type FormFields struct {
	Blocks        []FormBlock            `bson:"blocks,omitempty" json:"blocks,omitempty"`
	Properties    map[string]interface{} `bson:"properties,omitempty" json:"properties,omitempty"`
	Required      []string               `bson:"required,omitempty" json:"required,omitempty"`
	AllowComments []string               `bson:"allowComments,omitempty" json:"allowComments,omitempty"`
}

// CustomForm is an admin-defined document schema. Documents reference the
// form they were created from; the form decides which fields are commentable.
type CustomForm struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Slug      string             `bson:"slug" json:"slug"`
	Name      string             `bson:"name" json:"name"`
	Icon      string             `bson:"icon,omitempty" json:"icon,omitempty"`
	Version   int                `bson:"version" json:"version"`
	Fields    FormFields         `bson:"fields" json:"fields"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AllowsComments reports whether the named field accepts comments.
func (f *CustomForm) AllowsComments(field string) bool {
	for _, name := range f.Fields.AllowComments {
		if name == field {
			return true
		}
	}
	return false
}
