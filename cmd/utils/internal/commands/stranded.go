package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/appetite/pkg/enums/orderstatus"
	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// StrandedOrder is an accepted order the kitchen never received tickets for.
type StrandedOrder struct {
	ID        uuid.UUID `bson:"_id"`
	TenantID  string    `bson:"tenant_id"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Stranded reports accepted orders older than stranded.grace that have
// no tickets. The service reconciler re-dispatches them on its next pass.
func Stranded(ctx context.Context, config *apt.Config, logger apt.Logger) error {
	grace := 30 * time.Second
	if raw, _ := config.GetString("stranded.grace"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid stranded.grace %q: %w", raw, err)
		}
		grace = d
	}

	client, db, err := connect(ctx, config, logger)
	if err != nil {
		return err
	}
	defer client.Disconnect(ctx)

	orders, err := findStranded(ctx, db, time.Now().Add(-grace))
	if err != nil {
		return err
	}

	for _, o := range orders {
		logger.Info("Stranded order", "order_id", o.ID.String(), "tenant_id", o.TenantID, "accepted_for", time.Since(o.UpdatedAt).Round(time.Second).String())
	}
	logger.Info("Stranded order scan finished", "count", len(orders))
	return nil
}

func findStranded(ctx context.Context, db *mongo.Database, cutoff time.Time) ([]StrandedOrder, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":     orderstatus.Statuses.Accepted.Code(),
			"updated_at": bson.M{"$lte": cutoff},
		}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "tickets",
			"localField":   "_id",
			"foreignField": "order_id",
			"as":           "tickets",
		}}},
		{{Key: "$match", Value: bson.M{"tickets": bson.M{"$size": 0}}}},
		{{Key: "$project", Value: bson.M{"tenant_id": 1, "updated_at": 1}}},
	}

	cursor, err := db.Collection("orders").Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate stranded orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []StrandedOrder
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode stranded orders: %w", err)
	}
	return orders, nil
}
