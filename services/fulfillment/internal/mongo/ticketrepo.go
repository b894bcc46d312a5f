package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/kitchen"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TicketRepo struct {
	collection *mongo.Collection
}

func NewTicketRepo(db *mongo.Database) *TicketRepo {
	return &TicketRepo{
		collection: db.Collection(ticketsCollection),
	}
}

// CreateAll inserts a dispatch batch in order. If the insert fails part way,
// the tickets it did write are removed again so the order is either fully
// ticketed or not at all. The unique order_id+station index turns a second
// ticket for the same station into kitchen.ErrTicketExists.
func (r *TicketRepo) CreateAll(ctx context.Context, tickets []*kitchen.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(tickets))
	ids := make([]kitchen.TicketID, 0, len(tickets))
	for _, t := range tickets {
		if t == nil {
			return fmt.Errorf("ticket is nil")
		}
		docs = append(docs, t)
		ids = append(ids, t.ID)
	}

	_, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return nil
	}

	if _, delErr := r.collection.DeleteMany(context.WithoutCancel(ctx), bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
		return pkg.NewStoreError(ticketsCollection, "insert", errors.Join(err, delErr))
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("order %s: %w", tickets[0].OrderID, kitchen.ErrTicketExists)
	}
	return pkg.NewStoreError(ticketsCollection, "insert", err)
}

// Update writes t if the stored version still matches and bumps t.Version.
func (r *TicketRepo) Update(ctx context.Context, t *kitchen.Ticket) error {
	if t == nil {
		return fmt.Errorf("ticket is nil")
	}

	next := t.Version + 1
	filter := bson.M{"_id": t.ID, "version": t.Version}
	update := bson.M{"$set": bson.M{
		"status":     t.Status,
		"priority":   t.Priority,
		"items":      t.Items,
		"updated_at": t.UpdatedAt,
		"started_at": t.StartedAt,
		"ready_at":   t.ReadyAt,
		"bumped_at":  t.BumpedAt,
		"version":    next,
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return pkg.NewStoreError(ticketsCollection, "update", err)
	}

	if result.MatchedCount == 0 {
		return pkg.NewStoreError(ticketsCollection, "update", versionConflictOrMissing(ctx, r.collection, t.ID))
	}

	t.Version = next
	return nil
}

func (r *TicketRepo) FindByID(ctx context.Context, id kitchen.TicketID) (*kitchen.Ticket, error) {
	var ticket kitchen.Ticket
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&ticket)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, pkg.ErrNotFound
		}
		return nil, pkg.NewStoreError(ticketsCollection, "get", err)
	}
	return &ticket, nil
}

func (r *TicketRepo) ListByOrder(ctx context.Context, orderID kitchen.OrderID) ([]kitchen.Ticket, error) {
	return r.List(ctx, kitchen.TicketFilter{OrderID: &orderID})
}

func (r *TicketRepo) List(ctx context.Context, filter kitchen.TicketFilter) ([]kitchen.Ticket, error) {
	query := bson.M{}

	if filter.TenantID != "" {
		query["tenant_id"] = filter.TenantID
	}

	if filter.Station != "" {
		query["station"] = filter.Station
	}

	if filter.Status != "" {
		query["status"] = filter.Status
	}

	if filter.OrderID != nil {
		query["order_id"] = *filter.OrderID
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, pkg.NewStoreError(ticketsCollection, "find", err)
	}
	defer cursor.Close(ctx)

	var tickets []kitchen.Ticket
	if err := cursor.All(ctx, &tickets); err != nil {
		return nil, pkg.NewStoreError(ticketsCollection, "decode", err)
	}

	return tickets, nil
}
