package community

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/guillecro/leyesabiertas-core/internal/config"
)

// AccountablePermissions holds the per-role policy for document authors.
type AccountablePermissions struct {
	DocumentCreationLimit int `bson:"documentCreationLimit" json:"documentCreationLimit"`
}

type Permissions struct {
	Accountable AccountablePermissions `bson:"accountable" json:"accountable"`
}

// Community is the singleton policy document for the deployment.
type Community struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	MainColor   string             `bson:"mainColor,omitempty" json:"mainColor,omitempty"`
	Permissions Permissions        `bson:"permissions" json:"permissions"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Repository defines persistence operations for the community document
type Repository interface {
	Get(ctx context.Context) (*Community, error)
}

// MongoRepository reads the community document, seeding it from config
// defaults when the collection is empty.
type MongoRepository struct {
	col      *mongo.Collection
	defaults config.CommunityConfig
}

func NewMongoRepository(col *mongo.Collection, defaults config.CommunityConfig) *MongoRepository {
	return &MongoRepository{col: col, defaults: defaults}
}

func (r *MongoRepository) Get(ctx context.Context) (*Community, error) {
	var c Community
	err := r.col.FindOne(ctx, bson.M{}).Decode(&c)
	if err == nil {
		return &c, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}
	seeded := Default(r.defaults)
	res, err := r.col.InsertOne(ctx, seeded)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		seeded.ID = oid
	}
	return seeded, nil
}

// Default builds the community from configured defaults.
func Default(cfg config.CommunityConfig) *Community {
	now := time.Now().UTC()
	return &Community{
		Name: cfg.Name,
		Permissions: Permissions{
			Accountable: AccountablePermissions{DocumentCreationLimit: cfg.DocumentCreationLimit},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StaticRepository serves a fixed community document. Used when MongoDB is
// unavailable and in tests.
type StaticRepository struct {
	c *Community
}

func NewStaticRepository(c *Community) *StaticRepository {
	return &StaticRepository{c: c}
}

func (r *StaticRepository) Get(ctx context.Context) (*Community, error) {
	return r.c, nil
}
