package customform

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
)

// Repository defines persistence operations for custom forms
type Repository interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*CustomForm, error)
	GetBySlug(ctx context.Context, slug string) (*CustomForm, error)
	List(ctx context.Context) ([]*CustomForm, error)
}

// MongoRepository implements Repository using MongoDB
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoRepository{col: col}
}

func (r *MongoRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*CustomForm, error) {
	var f CustomForm
	if err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(&f); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *MongoRepository) GetBySlug(ctx context.Context, slug string) (*CustomForm, error) {
	var f CustomForm
	if err := r.col.FindOne(ctx, bson.M{"slug": slug}).Decode(&f); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &f, nil
}

func (r *MongoRepository) List(ctx context.Context) ([]*CustomForm, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*CustomForm{}
	for cur.Next(ctx) {
		var f CustomForm
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, cur.Err()
}

// MemoryRepository serves a fixed set of forms. Used when MongoDB is
// unavailable and in tests.
type MemoryRepository struct {
	forms []*CustomForm
}

func NewMemoryRepository(forms ...*CustomForm) *MemoryRepository {
	for _, f := range forms {
		if f.ID.IsZero() {
			f.ID = primitive.NewObjectID()
		}
	}
	return &MemoryRepository{forms: forms}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*CustomForm, error) {
	for _, f := range r.forms {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryRepository) GetBySlug(ctx context.Context, slug string) (*CustomForm, error) {
	for _, f := range r.forms {
		if f.Slug == slug {
			return f, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context) ([]*CustomForm, error) {
	return r.forms, nil
}
