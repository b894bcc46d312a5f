package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{
		collection: db.Collection(ordersCollection),
	}
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		return pkg.NewStoreError(ordersCollection, "insert", err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	var o order.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pkg.ErrNotFound
		}
		return nil, pkg.NewStoreError(ordersCollection, "get", err)
	}
	return &o, nil
}

func (r *OrderRepo) ListByTenant(ctx context.Context, tenantID, status string) ([]*order.Order, error) {
	query := bson.M{"tenant_id": tenantID}
	if status != "" {
		query["status"] = status
	}
	return r.find(ctx, query)
}

// ListStranded joins accepted orders against their tickets and keeps the ones
// the kitchen never received.
func (r *OrderRepo) ListStranded(ctx context.Context, cutoff time.Time) ([]*order.Order, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":     orderstatus.Statuses.Accepted.Code(),
			"updated_at": bson.M{"$lte": cutoff},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         ticketsCollection,
			"localField":   "_id",
			"foreignField": "order_id",
			"as":           "tickets",
		}}},
		{{Key: "$match", Value: bson.M{"tickets": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"tickets": 0}}},
		{{Key: "$sort", Value: bson.M{"created_at": 1}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, pkg.NewStoreError(ordersCollection, "aggregate", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, pkg.NewStoreError(ordersCollection, "decode", err)
	}
	return result, nil
}

// Save writes the lifecycle fields of o if the stored version still matches.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	next := o.Version + 1
	filter := bson.M{"_id": o.ID, "version": o.Version}
	update := bson.M{"$set": bson.M{
		"status":      o.Status,
		"timestamps":  o.Timestamps,
		"location_id": o.LocationID,
		"updated_at":  o.UpdatedAt,
		"version":     next,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return pkg.NewStoreError(ordersCollection, "update", err)
	}

	if result.MatchedCount == 0 {
		return pkg.NewStoreError(ordersCollection, "update", versionConflictOrMissing(ctx, r.collection, o.ID))
	}

	o.Version = next
	return nil
}

func (r *OrderRepo) find(ctx context.Context, query bson.M) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, pkg.NewStoreError(ordersCollection, "find", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, pkg.NewStoreError(ordersCollection, "decode", err)
	}

	return result, nil
}
