package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/guillecro/leyesabiertas-core/internal/apperrors"
	"github.com/guillecro/leyesabiertas-core/internal/comment"
)

// MongoCommentRepo persists comments in the "comments" collection.
type MongoCommentRepo struct {
	col *mongo.Collection
}

func NewMongoCommentRepo(col *mongo.Collection) *MongoCommentRepo {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "document", Value: 1}, {Key: "field", Value: 1}}}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoCommentRepo{col: col}
}

func (r *MongoCommentRepo) Create(ctx context.Context, c *comment.Comment) error {
	now := time.Now().UTC()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, c)
	return err
}

func (r *MongoCommentRepo) Get(ctx context.Context, id string) (*comment.Comment, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("comment id %q: %w", id, apperrors.ErrInvalidParam)
	}
	var c comment.Comment
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&c); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *MongoCommentRepo) GetAll(ctx context.Context, f comment.Filter) ([]*comment.Comment, error) {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		oids := make([]primitive.ObjectID, 0, len(f.IDs))
		for _, id := range f.IDs {
			oid, err := primitive.ObjectIDFromHex(id)
			if err != nil {
				return nil, fmt.Errorf("comment id %q: %w", id, apperrors.ErrInvalidParam)
			}
			oids = append(oids, oid)
		}
		filter["_id"] = bson.M{"$in": oids}
	}
	if f.Document != "" {
		oid, err := primitive.ObjectIDFromHex(f.Document)
		if err != nil {
			return nil, fmt.Errorf("document id %q: %w", f.Document, apperrors.ErrInvalidParam)
		}
		filter["document"] = oid
	}
	if f.Field != "" {
		filter["field"] = f.Field
	}
	if f.OnlyUnresolved {
		filter["resolved"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*comment.Comment{}
	for cur.Next(ctx) {
		var c comment.Comment
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, cur.Err()
}

// SetResolved marks the comment resolved. Resolving an already resolved
// comment is not an error.
func (r *MongoCommentRepo) SetResolved(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("comment id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"resolved": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *MongoCommentRepo) SetReply(ctx context.Context, id, reply string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("comment id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"reply": reply, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// UpdateDecorations bulk-rewrites decorations for comments of the given
// version. Comments not mentioned in the payload are left untouched.
func (r *MongoCommentRepo) UpdateDecorations(ctx context.Context, versionID string, updates []comment.DecorationUpdate) (int64, error) {
	void, err := primitive.ObjectIDFromHex(versionID)
	if err != nil {
		return 0, fmt.Errorf("version id %q: %w", versionID, apperrors.ErrInvalidParam)
	}
	var modified int64
	for _, u := range updates {
		oid, err := primitive.ObjectIDFromHex(u.CommentID)
		if err != nil {
			return modified, fmt.Errorf("comment id %q: %w", u.CommentID, apperrors.ErrInvalidParam)
		}
		res, err := r.col.UpdateOne(ctx,
			bson.M{"_id": oid, "version": void},
			bson.M{"$set": bson.M{"decoration": u.Decoration, "updatedAt": time.Now().UTC()}})
		if err != nil {
			return modified, err
		}
		modified += res.ModifiedCount
	}
	return modified, nil
}

// CountContextual counts the document's comments carrying a decoration.
func (r *MongoCommentRepo) CountContextual(ctx context.Context, documentID string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return 0, fmt.Errorf("document id %q: %w", documentID, apperrors.ErrInvalidParam)
	}
	return r.col.CountDocuments(ctx, bson.M{"document": oid, "decoration": bson.M{"$ne": nil}})
}

// AuthorsOf returns the author sub of each referenced comment, with
// duplicates preserved.
func (r *MongoCommentRepo) AuthorsOf(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return []string{}, nil
	}
	comments, err := r.GetAll(ctx, comment.Filter{IDs: ids})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.User)
	}
	return out, nil
}

// MongoLikeRepo persists likes in the "likes" collection. The unique
// (user, comment) index guarantees at most one like per pair.
type MongoLikeRepo struct {
	col *mongo.Collection
}

func NewMongoLikeRepo(col *mongo.Collection) *MongoLikeRepo {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "user", Value: 1}, {Key: "comment", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoLikeRepo{col: col}
}

// Get returns nil without error when no like exists for the pair.
func (r *MongoLikeRepo) Get(ctx context.Context, user, commentID string) (*comment.Like, error) {
	oid, err := primitive.ObjectIDFromHex(commentID)
	if err != nil {
		return nil, fmt.Errorf("comment id %q: %w", commentID, apperrors.ErrInvalidParam)
	}
	var l comment.Like
	if err := r.col.FindOne(ctx, bson.M{"user": user, "comment": oid}).Decode(&l); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

// Create inserts the like. A concurrent duplicate resolves to the existing
// row rather than an error.
func (r *MongoLikeRepo) Create(ctx context.Context, l *comment.Like) error {
	l.ID = primitive.NewObjectID()
	l.CreatedAt = time.Now().UTC()
	if _, err := r.col.InsertOne(ctx, l); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			existing, gerr := r.Get(ctx, l.User, l.Comment.Hex())
			if gerr == nil && existing != nil {
				*l = *existing
				return nil
			}
		}
		return err
	}
	return nil
}

func (r *MongoLikeRepo) Remove(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("like id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
