package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type tenantRecord struct {
	BrandKey  string    `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// TenantDirectory maps brand keys to tenant ids in the tenants collection.
// It is used when no Postgres directory is configured.
type TenantDirectory struct {
	collection *mongo.Collection
}

func NewTenantDirectory(db *mongo.Database) *TenantDirectory {
	return &TenantDirectory{
		collection: db.Collection(tenantsCollection),
	}
}

func (d *TenantDirectory) LookupTenant(ctx context.Context, brandKey string) (string, error) {
	var rec tenantRecord
	err := d.collection.FindOne(ctx, bson.M{"_id": brandKey}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", pkg.ErrNotFound
		}
		return "", pkg.NewStoreError(tenantsCollection, "get", err)
	}
	return rec.TenantID, nil
}

// RegisterTenant records brandKey once; an existing mapping is left untouched.
func (d *TenantDirectory) RegisterTenant(ctx context.Context, brandKey, tenantID string) error {
	update := bson.M{"$setOnInsert": bson.M{
		"tenant_id":  tenantID,
		"created_at": time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := d.collection.UpdateOne(ctx, bson.M{"_id": brandKey}, update, opts); err != nil {
		return pkg.NewStoreError(tenantsCollection, "upsert", err)
	}
	return nil
}
