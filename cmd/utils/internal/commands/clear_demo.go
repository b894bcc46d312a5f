package commands

import (
	"context"
	"fmt"

	"github.com/appetiteclub/appetite/pkg/tenant"
	"github.com/appetiteclub/apt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ClearDemo removes everything recorded for the demo tenant so the service
// seeds it again on its next start with seeding.demo=true.
func ClearDemo(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	logger.Info("Starting demo data cleanup...")

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	orderIDs, err := demoOrderIDs(ctx, db)
	if err != nil {
		return err
	}

	if len(orderIDs) > 0 {
		res, err := db.Collection("order_items").DeleteMany(ctx, bson.M{"order_id": bson.M{"$in": orderIDs}})
		if err != nil {
			return fmt.Errorf("delete demo order items: %w", err)
		}
		logger.Info("Deleted demo order items", "count", res.DeletedCount)
	}

	byTenant := bson.M{"tenant_id": tenant.DemoTenantID}
	for _, collection := range []string{"orders", "tickets", "menu_categories"} {
		res, err := db.Collection(collection).DeleteMany(ctx, byTenant)
		if err != nil {
			return fmt.Errorf("delete demo %s: %w", collection, err)
		}
		logger.Info("Deleted demo documents", "collection", collection, "count", res.DeletedCount)
	}

	if _, err := db.Collection("tenants").DeleteOne(ctx, bson.M{"_id": tenant.DemoBrandKey}); err != nil {
		return fmt.Errorf("delete demo tenant: %w", err)
	}

	res, err := db.Collection("_seeds").DeleteMany(ctx, bson.M{"_id": bson.M{"$regex": "_demo_"}})
	if err != nil {
		return fmt.Errorf("delete demo seed tracker: %w", err)
	}
	logger.Info("Cleared demo seed tracker", "deleted", res.DeletedCount)

	return nil
}

func demoOrderIDs(ctx context.Context, db *mongo.Database) ([]interface{}, error) {
	ids, err := db.Collection("orders").Distinct(ctx, "_id", bson.M{"tenant_id": tenant.DemoTenantID})
	if err != nil {
		return nil, fmt.Errorf("list demo orders: %w", err)
	}
	return ids, nil
}
