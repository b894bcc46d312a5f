package kitchen

import (
	"context"
	"errors"
	"fmt"

	"github.com/appetiteclub/appetite/pkg/tenant"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/seed"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	kitchenDemoSeedApplication = "fulfillment_demo"

	DemoBrandKey = tenant.DemoBrandKey
	DemoTenantID = tenant.DemoTenantID
)

// demoCategories cover every station so a demo order exercises the router.
var demoCategories = []MenuCategory{
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d01"), Name: "Beverages"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d02"), Name: "Hot Beverages"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d03"), Name: "Cold Appetizers"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d04"), Name: "Salads"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d05"), Name: "Appetizers"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d06"), Name: "Main Courses"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d07"), Name: "Desserts"},
	{ID: uuid.MustParse("4a1f6e2c-0b7d-4c59-8d2e-1f3a5b7c9d08"), Name: "Chef Specials"},
}

// ApplyDemoSeeds registers the demo tenant and its menu categories once.
func ApplyDemoSeeds(ctx context.Context, registry tenant.Registry, categories MenuCategoryRepo, db *mongo.Database, logger apt.Logger) error {
	if db == nil {
		return errors.New("database is required for demo seeding")
	}

	tracker := seed.NewMongoTracker(db)

	logger.Info("Applying demo fulfillment seeds")
	if err := seed.Apply(ctx, tracker, buildDemoSeeds(registry, categories), kitchenDemoSeedApplication); err != nil {
		return fmt.Errorf("demo seed failed: %w", err)
	}
	logger.Info("Demo fulfillment seeds applied")
	return nil
}

func buildDemoSeeds(registry tenant.Registry, categories MenuCategoryRepo) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "2026-10-18_demo_tenant_v1",
			Description: "Register the demo tenant",
			Run: func(ctx context.Context) error {
				return registry.RegisterTenant(ctx, DemoBrandKey, DemoTenantID)
			},
		},
		{
			ID:          "2026-10-18_demo_menu_categories_v1",
			Description: "Create demo menu categories covering every station",
			Run: func(ctx context.Context) error {
				return seedDemoCategories(ctx, categories)
			},
		},
	}
}

func seedDemoCategories(ctx context.Context, categories MenuCategoryRepo) error {
	for _, c := range demoCategories {
		category := c
		category.TenantID = DemoTenantID
		if err := categories.Create(ctx, &category); err != nil {
			return fmt.Errorf("cannot create demo category %s: %w", c.Name, err)
		}
	}
	return nil
}
