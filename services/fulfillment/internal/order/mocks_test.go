package order

import (
	"context"
	"sync"
	"time"

	"github.com/appetiteclub/appetite/pkg"
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

func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.Messages {
		if msg.Topic == topic {
			n++
		}
	}
	return n
}

// MockSubscriber is a mock implementation of events.Subscriber for testing
type MockSubscriber struct {
	Topic   string
	Handler events.HandlerFunc
}

func NewMockSubscriber() *MockSubscriber {
	return &MockSubscriber{}
}

func (m *MockSubscriber) Subscribe(ctx context.Context, topic string, handler events.HandlerFunc) error {
	m.Topic = topic
	m.Handler = handler
	return nil
}

// MockOrderRepo keeps copies of orders and enforces the version check on Save
// like the Mongo store does.
type MockOrderRepo struct {
	mu        sync.Mutex
	orders    map[uuid.UUID]Order
	saves     int
	CreateErr error
	GetFunc   func(ctx context.Context, id uuid.UUID) (*Order, error)
	SaveFunc  func(ctx context.Context, order *Order) error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{orders: make(map[uuid.UUID]Order)}
}

func (m *MockOrderRepo) Create(ctx context.Context, order *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

func (m *MockOrderRepo) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[id]
	if !ok {
		return nil, pkg.ErrNotFound
	}
	o := cloneOrder(&stored)
	return &o, nil
}

func (m *MockOrderRepo) ListByTenant(ctx context.Context, tenantID, status string) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Order
	for _, stored := range m.orders {
		if stored.TenantID != tenantID || (status != "" && stored.Status != status) {
			continue
		}
		o := cloneOrder(&stored)
		result = append(result, &o)
	}
	return result, nil
}

func (m *MockOrderRepo) ListStranded(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*Order
	for _, stored := range m.orders {
		if stored.Status != "accepted" || stored.UpdatedAt.After(cutoff) {
			continue
		}
		o := cloneOrder(&stored)
		result = append(result, &o)
	}
	return result, nil
}

func (m *MockOrderRepo) Save(ctx context.Context, order *Order) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[order.ID]
	if !ok {
		return pkg.ErrNotFound
	}
	if stored.Version != order.Version {
		return pkg.ErrVersionConflict
	}
	order.Version++
	m.orders[order.ID] = cloneOrder(order)
	m.saves++
	return nil
}

func (m *MockOrderRepo) Stored(id uuid.UUID) Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *MockOrderRepo) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type MockOrderItemRepo struct {
	mu        sync.Mutex
	items     []*OrderItem
	CreateErr error
}

func NewMockOrderItemRepo() *MockOrderItemRepo {
	return &MockOrderItemRepo{}
}

func (m *MockOrderItemRepo) CreateMany(ctx context.Context, items []*OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.items = append(m.items, items...)
	return nil
}

func (m *MockOrderItemRepo) DeleteByOrder(ctx context.Context, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.items[:0]
	for _, item := range m.items {
		if item.OrderID != orderID {
			kept = append(kept, item)
		}
	}
	m.items = kept
	return nil
}

func (m *MockOrderItemRepo) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *MockOrderItemRepo) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]*OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*OrderItem
	for _, item := range m.items {
		if item.OrderID == orderID {
			result = append(result, item)
		}
	}
	return result, nil
}

func cloneOrder(o *Order) Order {
	c := *o
	c.Timestamps = make(map[string]time.Time, len(o.Timestamps))
	for k, v := range o.Timestamps {
		c.Timestamps[k] = v
	}
	return c
}

func seedOrder(repo *MockOrderRepo, tenantID, status string) *Order {
	o := NewOrder(tenantID, "main")
	o.Status = status
	_ = repo.Create(context.Background(), o)
	return o
}
