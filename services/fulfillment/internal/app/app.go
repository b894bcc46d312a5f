package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/tenant"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/events"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/kitchen"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/mongo"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/postgres"
	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	AppName    = "fulfillment"
	AppVersion = "0.1.0"

	defaultBusAttempts = 5
	defaultBusBackoff  = 200 * time.Millisecond
	defaultTenantTTL   = 10 * time.Minute
)

// App wires the order lifecycle and the kitchen pipeline into one service.
type App struct {
	config     *apt.Config
	logger     apt.Logger
	micro      *apt.Micro
	baseRepo   *mongo.BaseRepo
	transport  *transport
	lifecycles []interface{}
}

func New(config *apt.Config, logger apt.Logger) (*App, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &App{
		config: config,
		logger: logger,
	}, nil
}

// Initialize connects the stores and the broker and builds the micro service.
func (a *App) Initialize(ctx context.Context) error {
	mode, err := kitchen.ParseStationMode(a.config.GetStringOrDef("kitchen.dispatch.station_mode", string(kitchen.StationModeSingle)))
	if err != nil {
		return err
	}

	a.baseRepo = mongo.NewBaseRepo(a.config, a.logger)
	if err := a.baseRepo.Start(ctx); err != nil {
		return err
	}
	a.lifecycles = append(a.lifecycles, apt.LifecycleHooks{OnStop: a.baseRepo.Stop})

	db := a.baseRepo.GetDatabase()
	orderRepo := mongo.NewOrderRepo(db)
	orderItemRepo := mongo.NewOrderItemRepo(db)
	ticketRepo := mongo.NewTicketRepo(db)
	categoryRepo := mongo.NewMenuCategoryRepo(db)

	directory, err := a.tenantDirectory(ctx)
	if err != nil {
		return err
	}

	a.transport, err = newTransport(ctx, a.config, a.logger)
	if err != nil {
		return err
	}
	a.lifecycles = append(a.lifecycles, apt.LifecycleHooks{OnStop: a.transport.Close})
	pub := a.transport.Publisher

	orderLifecycle := order.NewLifecycle(orderRepo, pub, a.logger)
	ticketLifecycle := kitchen.NewTicketLifecycle(ticketRepo, pub, mode, a.logger)
	dispatcher := kitchen.NewDispatcher(kitchen.DispatcherDeps{
		Tickets:    ticketRepo,
		Items:      orderItemRepo,
		Categories: categoryRepo,
		Publisher:  pub,
		Mode:       mode,
	}, a.logger)
	a.logger.Info("Kitchen dispatch configured", "station_mode", string(mode))

	board := kitchen.NewTicketStateCache(ticketRepo, a.logger)
	boardLifecycle := apt.LifecycleHooks{
		OnStart: func(ctx context.Context) error {
			if err := board.Warm(ctx); err != nil {
				a.logger.Info("failed to warm station board", "error", err)
			}
			return board.Start(ctx, a.transport.Board)
		},
	}

	dispatchSub := events.NewDispatchSubscriber(a.transport.Dispatch, orderRepo, dispatcher, a.logger)
	advanceSub := order.NewKitchenTicketSubscriber(a.transport.Advance, orderLifecycle, a.logger)

	reconciler := events.NewReconciler(
		orderRepo,
		dispatcher,
		a.duration("kitchen.dispatch.reconcile_interval", events.DefaultReconcileInterval),
		a.duration("kitchen.dispatch.reconcile_grace", events.DefaultReconcileGrace),
		a.logger,
	)

	tenantCache := tenant.NewCache(a.duration("tenant.cache.ttl", defaultTenantTTL))
	resolver := tenant.NewResolver(directory, tenantCache, a.config.GetStringOrDef("tenant.default_brand", kitchen.DemoBrandKey), a.logger)

	routes := &tenantRoutes{
		middleware: tenant.Middleware(resolver),
		modules: []routeModule{
			order.NewHandler(order.HandlerDeps{
				OrderRepo:     orderRepo,
				OrderItemRepo: orderItemRepo,
				Lifecycle:     orderLifecycle,
			}, a.logger),
			kitchen.NewHandler(ticketRepo, ticketLifecycle, board, a.logger),
		},
	}

	a.lifecycles = append(a.lifecycles, tenantCache, dispatchSub, advanceSub, boardLifecycle, reconciler)

	demoEnabled, _ := a.config.GetString("seeding.demo")
	if demoEnabled == "true" {
		a.logger.Info("Demo seeding enabled for fulfillment service")
		a.lifecycles = append(a.lifecycles, apt.LifecycleHooks{
			OnStart: func(ctx context.Context) error {
				if err := kitchen.ApplyDemoSeeds(ctx, directory, categoryRepo, db, a.logger); err != nil {
					a.logger.Errorf("Demo seeding failed (non-fatal): %v", err)
				}
				return nil
			},
		})
	}

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      a.logger,
		DisableCORS: true,
	})
	guard, err := networkGuard(a.config.GetStringOrDef("http.allowed_networks", networksInternal))
	if err != nil {
		return err
	}
	if guard != nil {
		stack = append(stack, guard)
	}

	options := []apt.Option{
		apt.WithConfig(a.config),
		apt.WithLogger(a.logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", routes),
		apt.WithLifecycle(a.lifecycles...),
		apt.WithHealthChecks(AppName),
	}

	a.micro = apt.NewMicro(options...)
	return nil
}

// Run starts the application
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("Starting %s(%s)", AppName, AppVersion)
	if err := a.micro.Run(ctx); err != nil {
		return err
	}
	a.logger.Infof("%s(%s) stopped", AppName, AppVersion)
	return nil
}

// Shutdown releases what Initialize opened when Run never took ownership.
func (a *App) Shutdown(ctx context.Context) error {
	if a.transport != nil {
		_ = a.transport.Close(ctx)
	}
	if a.baseRepo != nil {
		return a.baseRepo.Stop(ctx)
	}
	return nil
}

// tenantDirectory prefers the shared Postgres tenants table and falls back
// to the tenants collection in Mongo.
func (a *App) tenantDirectory(ctx context.Context) (tenant.Registry, error) {
	pgURL, _ := a.config.GetString("db.postgres.url")
	if pgURL == "" {
		return mongo.NewTenantDirectory(a.baseRepo.GetDatabase()), nil
	}

	directory := postgres.NewTenantDirectory(pgURL, a.logger)
	if err := directory.Start(ctx); err != nil {
		return nil, err
	}
	a.lifecycles = append(a.lifecycles, apt.LifecycleHooks{OnStop: directory.Stop})
	return directory, nil
}

func (a *App) duration(key string, def time.Duration) time.Duration {
	raw, _ := a.config.GetString(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		a.logger.Info("invalid duration in config, using default", "key", key, "value", raw, "default", def.String())
		return def
	}
	return d
}

const (
	networksInternal = "internal"
	networksAny      = "any"
)

// networkGuard builds the client network filter from http.allowed_networks:
// "internal" keeps private ranges only, "any" disables the filter, anything
// else is a comma separated CIDR list. Clients are matched on the leftmost
// X-Forwarded-For address, so a public edge proxy needs "any" or its own list.
func networkGuard(raw string) (func(http.Handler) http.Handler, error) {
	switch strings.TrimSpace(raw) {
	case "", networksInternal:
		return middleware.InternalOnly(), nil
	case networksAny:
		return nil, nil
	}

	var networks []*net.IPNet
	for _, part := range strings.Split(raw, ",") {
		_, network, err := net.ParseCIDR(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("http.allowed_networks %q: %w", part, pkg.ErrConfig)
		}
		networks = append(networks, network)
	}
	return middleware.AllowFromNetworks(networks...), nil
}

type routeModule interface {
	RegisterRoutes(r chi.Router)
}

// tenantRoutes mounts the API modules behind tenant resolution so health
// endpoints stay reachable without a brand host.
type tenantRoutes struct {
	middleware func(next http.Handler) http.Handler
	modules    []routeModule
}

func (t *tenantRoutes) RegisterRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(t.middleware)
		for _, m := range t.modules {
			m.RegisterRoutes(r)
		}
	})
}
