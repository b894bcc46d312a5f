package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type OrderItemRepo struct {
	collection *mongo.Collection
}

func NewOrderItemRepo(db *mongo.Database) *OrderItemRepo {
	return &OrderItemRepo{
		collection: db.Collection(orderItemsCollection),
	}
}

// CreateMany inserts the lines of one order. A failed insert removes the
// lines it already wrote.
func (r *OrderItemRepo) CreateMany(ctx context.Context, items []*order.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		if item == nil {
			return fmt.Errorf("order item is nil")
		}
		docs = append(docs, item)
		ids = append(ids, item.ID)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	if _, delErr := r.collection.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
		err = errors.Join(err, delErr)
	}
	return pkg.NewStoreError(orderItemsCollection, "insert", err)
}

func (r *OrderItemRepo) DeleteByOrder(ctx context.Context, orderID uuid.UUID) error {
	if _, err := r.collection.DeleteMany(ctx, bson.M{"order_id": orderID}); err != nil {
		return pkg.NewStoreError(orderItemsCollection, "delete", err)
	}
	return nil
}

// ListByOrder returns the items of an order in the position they were ordered.
func (r *OrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.OrderItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"order_id": orderID}, opts)
	if err != nil {
		return nil, pkg.NewStoreError(orderItemsCollection, "find", err)
	}
	defer cursor.Close(ctx)

	var result []*order.OrderItem
	if err := cursor.All(ctx, &result); err != nil {
		return nil, pkg.NewStoreError(orderItemsCollection, "decode", err)
	}

	return result, nil
}
