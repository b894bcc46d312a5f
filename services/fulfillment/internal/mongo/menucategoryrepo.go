package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/kitchen"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MenuCategoryRepo reads the menu categories the router maps to stations.
type MenuCategoryRepo struct {
	collection *mongo.Collection
}

func NewMenuCategoryRepo(db *mongo.Database) *MenuCategoryRepo {
	return &MenuCategoryRepo{
		collection: db.Collection(categoriesCollection),
	}
}

// Create upserts c so seeding the same category twice is harmless.
func (r *MenuCategoryRepo) Create(ctx context.Context, c *kitchen.MenuCategory) error {
	if c == nil {
		return fmt.Errorf("menu category is nil")
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, opts); err != nil {
		return pkg.NewStoreError(categoriesCollection, "upsert", err)
	}
	return nil
}

func (r *MenuCategoryRepo) Get(ctx context.Context, id uuid.UUID) (*kitchen.MenuCategory, error) {
	var c kitchen.MenuCategory
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pkg.ErrNotFound
		}
		return nil, pkg.NewStoreError(categoriesCollection, "get", err)
	}
	return &c, nil
}
