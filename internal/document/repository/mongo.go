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
	"github.com/guillecro/leyesabiertas-core/internal/document"
)

// MongoDocumentRepo persists documents in the "documents" collection.
type MongoDocumentRepo struct {
	col      *mongo.Collection
	versions *MongoVersionRepo
}

func NewMongoDocumentRepo(col *mongo.Collection, versions *MongoVersionRepo) *MongoDocumentRepo {
	idx := mongo.IndexModel{Keys: bson.D{{Key: "author", Value: 1}}}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoDocumentRepo{col: col, versions: versions}
}

// CreateWithVersion writes the initial version first and then the document
// carrying the currentVersion pointer; if the document write fails the
// version is compensated away. A reader can never observe a document whose
// version chain is missing.
func (r *MongoDocumentRepo) CreateWithVersion(ctx context.Context, doc *document.Document, v *document.Version) error {
	now := time.Now().UTC()
	doc.ID = primitive.NewObjectID()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	v.Document = doc.ID
	if err := r.versions.Create(ctx, v); err != nil {
		return fmt.Errorf("create initial version: %w", err)
	}
	doc.CurrentVersion = v.ID

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		// compensate: the document never became visible, drop its version
		_ = r.versions.Delete(context.Background(), v.ID.Hex())
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *MongoDocumentRepo) Get(ctx context.Context, id string) (*document.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("document id %q: %w", id, apperrors.ErrInvalidParam)
	}
	var d document.Document
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *MongoDocumentRepo) SetPublished(ctx context.Context, id string, published bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("document id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"published": published, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *MongoDocumentRepo) SetCurrentVersion(ctx context.Context, id string, versionID primitive.ObjectID) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("document id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"currentVersion": versionID, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *MongoDocumentRepo) CountByAuthor(ctx context.Context, author string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"author": author})
}

func (r *MongoDocumentRepo) IncCommentsCount(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("document id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"commentsCount": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *MongoDocumentRepo) List(ctx context.Context, f document.Filter, page, limit int) ([]*document.Document, int64, error) {
	filter := bson.M{}
	if f.Published != nil {
		filter["published"] = *f.Published
	}
	if f.Author != "" {
		filter["author"] = f.Author
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	out := []*document.Document{}
	for cur.Next(ctx) {
		var d document.Document
		if err := cur.Decode(&d); err != nil {
			return nil, 0, err
		}
		out = append(out, &d)
	}
	return out, total, cur.Err()
}

// MongoVersionRepo persists version snapshots in "document_versions". The
// unique (document, version) index is what rejects a racing version bump.
type MongoVersionRepo struct {
	col *mongo.Collection
}

func NewMongoVersionRepo(col *mongo.Collection) *MongoVersionRepo {
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "document", Value: 1}, {Key: "version", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	col.Indexes().CreateOne(context.Background(), idx)
	return &MongoVersionRepo{col: col}
}

func (r *MongoVersionRepo) Create(ctx context.Context, v *document.Version) error {
	now := time.Now().UTC()
	v.ID = primitive.NewObjectID()
	v.CreatedAt = now
	v.UpdatedAt = now
	if v.Contributions == nil {
		v.Contributions = []string{}
	}
	if _, err := r.col.InsertOne(ctx, v); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("version %d of document %s already exists: %w", v.Version, v.Document.Hex(), apperrors.ErrVersionConflict)
		}
		return err
	}
	return nil
}

func (r *MongoVersionRepo) Get(ctx context.Context, id string) (*document.Version, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("version id %q: %w", id, apperrors.ErrInvalidParam)
	}
	var v document.Version
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&v); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// UpdateContent amends content in place. Version number and contributions
// are never touched here.
func (r *MongoVersionRepo) UpdateContent(ctx context.Context, id string, content document.VersionContent) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("version id %q: %w", id, apperrors.ErrInvalidParam)
	}
	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"content": content, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ContributionIDs returns the comment ids merged across every version of the
// document, in version order.
func (r *MongoVersionRepo) ContributionIDs(ctx context.Context, documentID string) ([]string, error) {
	oid, err := primitive.ObjectIDFromHex(documentID)
	if err != nil {
		return nil, fmt.Errorf("document id %q: %w", documentID, apperrors.ErrInvalidParam)
	}
	opts := options.Find().SetSort(bson.D{{Key: "version", Value: 1}})
	cur, err := r.col.Find(ctx, bson.M{"document": oid}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []string{}
	for cur.Next(ctx) {
		var v document.Version
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v.Contributions...)
	}
	return out, cur.Err()
}

// Delete removes a version document. Used to compensate partially applied
// writes; a version that was never pointed at by its document must not
// linger in the chain.
func (r *MongoVersionRepo) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("version id %q: %w", id, apperrors.ErrInvalidParam)
	}
	_, err = r.col.DeleteOne(ctx, bson.M{"_id": oid})
	return err
}
