package events

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/kitchen"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

// MockSubscriber implements events.Subscriber for testing
type MockSubscriber struct {
	Topic   string
	Handler events.HandlerFunc
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	m.Topic = topic
	m.Handler = handler
	return nil
}

type MockOrderRepo struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]order.Order
	tickets *MockTicketRepo
	GetErr  error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[uuid.UUID]order.Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	stored, ok := m.orders[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	o := copyOrder(&stored)
	return &o, nil
}

func (m *MockOrderRepo) ListByTenant(ctx context.Context, tenantID, status string) ([]*order.Order, error) {
	return m.list(func(o order.Order) bool {
		return o.TenantID == tenantID && (status == "" || o.Status == status)
	}), nil
}

// ListStranded mirrors the store join: accepted, older than cutoff and
// without tickets.
func (m *MockOrderRepo) ListStranded(ctx context.Context, cutoff time.Time) ([]*order.Order, error) {
	candidates := m.list(func(o order.Order) bool {
		return o.Status == "accepted" && !o.UpdatedAt.After(cutoff)
	})

	var result []*order.Order
	for _, o := range candidates {
		if m.tickets != nil {
			if tickets, _ := m.tickets.ListByOrder(ctx, o.ID); len(tickets) > 0 {
				continue
			}
		}
		result = append(result, o)
	}
	return result, nil
}

func (m *MockOrderRepo) list(keep func(o order.Order) bool) []*order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*order.Order
	for _, stored := range m.orders {
		if !keep(stored) {
			continue
		}
		o := copyOrder(&stored)
		result = append(result, &o)
	}
	return result
}

func (m *MockOrderRepo) Save(ctx context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok {
		return pkg.ErrNotFound
	}
	if stored.Version != o.Version {
		return pkg.ErrVersionConflict
	}
	o.Version++
	m.orders[o.ID] = copyOrder(o)
	return nil
}

func (m *MockOrderRepo) Stored(id uuid.UUID) order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func copyOrder(o *order.Order) order.Order {
	c := *o
	c.Timestamps = make(map[string]time.Time, len(o.Timestamps))
	for k, v := range o.Timestamps {
		c.Timestamps[k] = v
	}
	return c
}

type MockOrderItemRepo struct {
	mu    sync.Mutex
	items []*order.OrderItem
	lists int
}

func (m *MockOrderItemRepo) CreateMany(ctx context.Context, items []*order.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
	return nil
}

func (m *MockOrderItemRepo) DeleteByOrder(ctx context.Context, orderID uuid.UUID) error {
	return nil
}

func (m *MockOrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var result []*order.OrderItem
	for _, item := range m.items {
		if item.OrderID == orderID {
			result = append(result, item)
		}
	}
	return result, nil
}

type MockTicketRepo struct {
	mu         sync.Mutex
	tickets    map[uuid.UUID]kitchen.Ticket
	CreateErr  error
	CreateFunc func(t *kitchen.Ticket) error
}

func NewMockTicketRepo() *MockTicketRepo {
	return &MockTicketRepo{tickets: make(map[uuid.UUID]kitchen.Ticket)}
}

// CreateAll stores the batch whole or not at all. CreateFunc can fail
// individual tickets.
func (m *MockTicketRepo) CreateAll(ctx context.Context, tickets []*kitchen.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	for _, t := range tickets {
		if m.CreateFunc != nil {
			if err := m.CreateFunc(t); err != nil {
				return err
			}
		}
		for _, existing := range m.tickets {
			if existing.OrderID == t.OrderID && existing.Station == t.Station {
				return kitchen.ErrTicketExists
			}
		}
	}
	for _, t := range tickets {
		m.tickets[t.ID] = *t
	}
	return nil
}

func (m *MockTicketRepo) Update(ctx context.Context, t *kitchen.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tickets[t.ID]
	if !ok {
		return pkg.ErrNotFound
	}
	if stored.Version != t.Version {
		return pkg.ErrVersionConflict
	}
	t.Version++
	m.tickets[t.ID] = *t
	return nil
}

func (m *MockTicketRepo) FindByID(ctx context.Context, id kitchen.TicketID) (*kitchen.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return &t, nil
}

func (m *MockTicketRepo) ListByOrder(ctx context.Context, orderID kitchen.OrderID) ([]kitchen.Ticket, error) {
	return m.List(ctx, kitchen.TicketFilter{OrderID: &orderID})
}

func (m *MockTicketRepo) List(ctx context.Context, filter kitchen.TicketFilter) ([]kitchen.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []kitchen.Ticket
	for _, t := range m.tickets {
		if filter.OrderID != nil && t.OrderID != *filter.OrderID {
			continue
		}
		if filter.Station != "" && t.Station != filter.Station {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

type MockMenuCategoryRepo struct {
	categories map[uuid.UUID]kitchen.MenuCategory
}

func NewMockMenuCategoryRepo(categories ...kitchen.MenuCategory) *MockMenuCategoryRepo {
	m := &MockMenuCategoryRepo{categories: make(map[uuid.UUID]kitchen.MenuCategory)}
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return m
}

func (m *MockMenuCategoryRepo) Create(ctx context.Context, c *kitchen.MenuCategory) error {
	m.categories[c.ID] = *c
	return nil
}

func (m *MockMenuCategoryRepo) Get(ctx context.Context, id uuid.UUID) (*kitchen.MenuCategory, error) {
	c, ok := m.categories[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return &c, nil
}

const testTenant = "tenant-1"

var (
	catDrinks = kitchen.MenuCategory{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000b1"), Name: "Drinks"}
	catMains  = kitchen.MenuCategory{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000b2"), Name: "Main Courses"}
)

type fixture struct {
	orders     *MockOrderRepo
	items      *MockOrderItemRepo
	tickets    *MockTicketRepo
	dispatcher *kitchen.Dispatcher
}

func newFixture(mode kitchen.StationMode, pub events.Publisher) *fixture {
	f := &fixture{
		orders:  NewMockOrderRepo(),
		items:   &MockOrderItemRepo{},
		tickets: NewMockTicketRepo(),
	}
	f.orders.tickets = f.tickets
	f.dispatcher = kitchen.NewDispatcher(kitchen.DispatcherDeps{
		Tickets:    f.tickets,
		Items:      f.items,
		Categories: NewMockMenuCategoryRepo(catDrinks, catMains),
		Publisher:  pub,
		Mode:       mode,
	}, nil)
	return f
}

// placeOrder stores an order in status with one item per category.
func (f *fixture) placeOrder(status string, categories ...kitchen.MenuCategory) *order.Order {
	o := order.NewOrder(testTenant, "main")
	o.Status = status
	_ = f.orders.Create(context.Background(), o)
	var items []*order.OrderItem
	for i, c := range categories {
		item := order.NewOrderItem(o.ID)
		item.Name = c.Name + " item"
		item.CategoryID = c.ID
		item.Position = i
		items = append(items, item)
	}
	_ = f.items.CreateMany(context.Background(), items)
	return o
}

func (f *fixture) ticketsOf(o *order.Order) []kitchen.Ticket {
	tickets, _ := f.tickets.ListByOrder(context.Background(), o.ID)
	return tickets
}
