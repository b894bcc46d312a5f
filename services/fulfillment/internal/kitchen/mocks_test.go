package kitchen

import (
	"context"
	"sort"
	"sync"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/services/fulfillment/internal/order"
	"github.com/appetiteclub/apt/events"
	"github.com/google/uuid"
)

type publishedMessage struct {
	Topic string
	Data  []byte
}

// MockPublisher is a mock implementation of events.Publisher for testing
type MockPublisher struct {
	mu          sync.Mutex
	Messages    []publishedMessage
	PublishFunc func(ctx context.Context, topic string, msg []byte) error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	m.Messages = append(m.Messages, publishedMessage{Topic: topic, Data: msg})
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, msg)
	}
	return nil
}

func (m *MockPublisher) Topic(topic string) []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []publishedMessage
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			result = append(result, msg)
		}
	}
	return result
}

type captureSubscriber struct {
	topic   string
	handler events.HandlerFunc
}

func (c *captureSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	c.topic = topic
	c.handler = handler
	return nil
}

// MockTicketRepository behaves like the Mongo store: one ticket per order and
// station, compare-and-set updates, copies in and out.
type MockTicketRepository struct {
	mu         sync.Mutex
	tickets    map[uuid.UUID]Ticket
	CreateFunc func(ctx context.Context, t *Ticket) error
	UpdateFunc func(ctx context.Context, t *Ticket) error
	ListErr    error
}

func NewMockTicketRepository() *MockTicketRepository {
	return &MockTicketRepository{tickets: make(map[uuid.UUID]Ticket)}
}

func (m *MockTicketRepository) CreateAll(ctx context.Context, tickets []*Ticket) error {
	if m.CreateFunc != nil {
		for _, t := range tickets {
			if err := m.CreateFunc(ctx, t); err != nil {
				return err
			}
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tickets {
		for _, existing := range m.tickets {
			if existing.OrderID == t.OrderID && existing.Station == t.Station {
				return ErrTicketExists
			}
		}
	}
	for _, t := range tickets {
		m.tickets[t.ID] = *t
	}
	return nil
}

func (m *MockTicketRepository) Update(ctx context.Context, t *Ticket) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, t)
	}
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

func (m *MockTicketRepository) FindByID(ctx context.Context, id TicketID) (*Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return &t, nil
}

func (m *MockTicketRepository) ListByOrder(ctx context.Context, orderID OrderID) ([]Ticket, error) {
	return m.List(ctx, TicketFilter{OrderID: &orderID})
}

func (m *MockTicketRepository) List(ctx context.Context, filter TicketFilter) ([]Ticket, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []Ticket
	for _, t := range m.tickets {
		if filter.TenantID != "" && t.TenantID != filter.TenantID {
			continue
		}
		if filter.Station != "" && t.Station != filter.Station {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.OrderID != nil && t.OrderID != *filter.OrderID {
			continue
		}
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Station < result[j].Station })
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MockTicketRepository) Put(t Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickets[t.ID] = t
}

func (m *MockTicketRepository) Stored(id uuid.UUID) Ticket {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tickets[id]
}

type MockMenuCategoryRepo struct {
	mu         sync.Mutex
	categories map[uuid.UUID]MenuCategory
	GetErr     error
	gets       int
}

func NewMockMenuCategoryRepo(categories ...MenuCategory) *MockMenuCategoryRepo {
	m := &MockMenuCategoryRepo{categories: make(map[uuid.UUID]MenuCategory)}
	for _, c := range categories {
		m.categories[c.ID] = c
	}
	return m
}

func (m *MockMenuCategoryRepo) Create(ctx context.Context, c *MenuCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.categories[c.ID] = *c
	return nil
}

func (m *MockMenuCategoryRepo) Get(ctx context.Context, id uuid.UUID) (*MenuCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	c, ok := m.categories[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	return &c, nil
}

type MockOrderItemRepo struct {
	items   []*order.OrderItem
	ListErr error
}

func (m *MockOrderItemRepo) CreateMany(ctx context.Context, items []*order.OrderItem) error {
	m.items = append(m.items, items...)
	return nil
}

func (m *MockOrderItemRepo) DeleteByOrder(ctx context.Context, orderID uuid.UUID) error {
	return nil
}

func (m *MockOrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*order.OrderItem, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var result []*order.OrderItem
	for _, item := range m.items {
		if item.OrderID == orderID {
			result = append(result, item)
		}
	}
	return result, nil
}

type MockRegistry struct {
	mu      sync.Mutex
	tenants map[string]string
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{tenants: make(map[string]string)}
}

func (m *MockRegistry) LookupTenant(ctx context.Context, brandKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tenants[brandKey]
	if !ok {
		return "", pkg.ErrNotFound
	}
	return id, nil
}

func (m *MockRegistry) RegisterTenant(ctx context.Context, brandKey, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[brandKey] = tenantID
	return nil
}

var (
	catDrinks = MenuCategory{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000a1"), Name: "Drinks"}
	catSalads = MenuCategory{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000a2"), Name: "Salads"}
	catMains  = MenuCategory{ID: uuid.MustParse("00000000-0000-0000-0000-0000000000a3"), Name: "Main Courses"}
)

const testTenant = "tenant-1"

func acceptedOrder() *order.Order {
	o := order.NewOrder(testTenant, "main")
	o.Status = "accepted"
	return o
}

func itemsFor(o *order.Order, categories ...MenuCategory) *MockOrderItemRepo {
	repo := &MockOrderItemRepo{}
	for i, c := range categories {
		item := order.NewOrderItem(o.ID)
		item.MenuItemID = uuid.New()
		item.Name = c.Name + " item"
		item.CategoryID = c.ID
		item.Position = i
		item.Options = []string{"no ice"}
		repo.items = append(repo.items, item)
	}
	return repo
}
