package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/appetite/pkg/enums/kitchenstatus"
	"github.com/appetiteclub/appetite/pkg/event"
	"github.com/google/uuid"
)

func newTestTicketLifecycle(repo TicketRepository, pub *MockPublisher, mode StationMode) *TicketLifecycle {
	l := NewTicketLifecycle(repo, pub, mode, nil)
	fixed := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }
	return l
}

func seedTicket(repo *MockTicketRepository, orderID uuid.UUID, station, status string) *Ticket {
	t := NewTicket(testTenant, "main", orderID, station)
	t.Status = status
	repo.Put(*t)
	return t
}

func advanceTargets(pub *MockPublisher) []string {
	var targets []string
	for _, msg := range pub.Topic(event.OrderAdvanceTopic) {
		var evt event.KitchenOrderAdvanceEvent
		_ = json.Unmarshal(msg.Data, &evt)
		targets = append(targets, evt.TargetStatus)
	}
	return targets
}

func TestAdvanceTicketIsStrictlyLinear(t *testing.T) {
	for _, from := range kitchenstatus.All {
		for _, to := range kitchenstatus.All {
			from, to := from.Code(), to.Code()
			t.Run(from+"To"+to, func(t *testing.T) {
				repo := NewMockTicketRepository()
				ticket := seedTicket(repo, uuid.New(), "default", from)
				l := newTestTicketLifecycle(repo, NewMockPublisher(), StationModeSingle)

				err := l.AdvanceTicket(context.Background(), ticket, to)

				if kitchenstatus.CanAdvance(from, to) {
					if err != nil {
						t.Fatalf("AdvanceTicket() error = %v", err)
					}
					if got := repo.Stored(ticket.ID).Status; got != to {
						t.Errorf("stored status = %q, want %q", got, to)
					}
					return
				}
				if !errors.Is(err, ErrInvalidTicketTransition) {
					t.Fatalf("AdvanceTicket() error = %v, want ErrInvalidTicketTransition", err)
				}
				if ticket.Status != from {
					t.Errorf("rejected advance changed status to %q", ticket.Status)
				}
			})
		}
	}
}

func TestQueuedToReadyIsRejected(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "queued")
	pub := NewMockPublisher()
	l := newTestTicketLifecycle(repo, pub, StationModeSingle)

	if err := l.AdvanceTicket(context.Background(), ticket, "ready"); !errors.Is(err, ErrInvalidTicketTransition) {
		t.Fatalf("AdvanceTicket() error = %v, want ErrInvalidTicketTransition", err)
	}
	if len(pub.Messages) != 0 {
		t.Errorf("rejected advance published %d events", len(pub.Messages))
	}
}

func TestAdvanceTicketStampsTimes(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "queued")
	l := newTestTicketLifecycle(repo, NewMockPublisher(), StationModeSingle)
	ctx := context.Background()

	for _, status := range []string{"cooking", "ready", "bumped"} {
		if err := l.AdvanceTicket(ctx, ticket, status); err != nil {
			t.Fatalf("AdvanceTicket(%s) error = %v", status, err)
		}
	}

	if ticket.StartedAt == nil || ticket.ReadyAt == nil || ticket.BumpedAt == nil {
		t.Errorf("timestamps = %v %v %v, want all set", ticket.StartedAt, ticket.ReadyAt, ticket.BumpedAt)
	}
	if ticket.Version != 3 {
		t.Errorf("version = %d, want 3", ticket.Version)
	}
}

func TestAdvanceTicketRequestsOrderAdvance(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "queued")
	pub := NewMockPublisher()
	l := newTestTicketLifecycle(repo, pub, StationModeSingle)
	ctx := context.Background()

	for _, status := range []string{"cooking", "ready", "bumped"} {
		if err := l.AdvanceTicket(ctx, ticket, status); err != nil {
			t.Fatalf("AdvanceTicket(%s) error = %v", status, err)
		}
	}

	got := advanceTargets(pub)
	want := []string{"in_kitchen", "ready"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("advance requests = %v, want %v", got, want)
	}
	if n := len(pub.Topic(event.KitchenTicketsTopic)); n != 3 {
		t.Errorf("status events = %d, want 3", n)
	}
}

func TestPerStationReadyWaitsForSiblings(t *testing.T) {
	repo := NewMockTicketRepository()
	orderID := uuid.New()
	bar := seedTicket(repo, orderID, "bar", "cooking")
	hot := seedTicket(repo, orderID, "hot", "cooking")
	pub := NewMockPublisher()
	l := newTestTicketLifecycle(repo, pub, StationModePerStation)
	ctx := context.Background()

	if err := l.AdvanceTicket(ctx, bar, "ready"); err != nil {
		t.Fatalf("AdvanceTicket(bar) error = %v", err)
	}
	if got := advanceTargets(pub); len(got) != 0 {
		t.Fatalf("advance requests after first ticket = %v, want none", got)
	}

	if err := l.AdvanceTicket(ctx, bar, "bumped"); err != nil {
		t.Fatalf("bump bar error = %v", err)
	}
	if err := l.AdvanceTicket(ctx, hot, "ready"); err != nil {
		t.Fatalf("AdvanceTicket(hot) error = %v", err)
	}
	if got := advanceTargets(pub); len(got) != 1 || got[0] != "ready" {
		t.Errorf("advance requests = %v, want [ready]", got)
	}
}

func TestPerStationReadyWaitsForMissingStation(t *testing.T) {
	repo := NewMockTicketRepository()
	bar := NewTicket(testTenant, "main", uuid.New(), "bar")
	bar.OrderStations = []string{"bar", "hot"}
	repo.Put(*bar)
	pub := NewMockPublisher()
	l := newTestTicketLifecycle(repo, pub, StationModePerStation)
	ctx := context.Background()

	for _, status := range []string{"cooking", "ready"} {
		if err := l.AdvanceTicket(ctx, bar, status); err != nil {
			t.Fatalf("AdvanceTicket(%s) error = %v", status, err)
		}
	}

	if got := advanceTargets(pub); len(got) != 1 || got[0] != "in_kitchen" {
		t.Errorf("advance requests = %v, want [in_kitchen]", got)
	}
}

func TestPublishFailureKeepsTicketChange(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "cooking")
	pub := NewMockPublisher()
	pub.PublishFunc = func(ctx context.Context, topic string, msg []byte) error {
		return errors.New("broker down")
	}
	l := newTestTicketLifecycle(repo, pub, StationModeSingle)

	if err := l.AdvanceTicket(context.Background(), ticket, "ready"); err != nil {
		t.Fatalf("AdvanceTicket() error = %v, want nil", err)
	}
	if got := repo.Stored(ticket.ID).Status; got != "ready" {
		t.Errorf("stored status = %q, want ready", got)
	}
}

func TestUpdateFailureRestoresTicket(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "queued")
	repo.UpdateFunc = func(ctx context.Context, t *Ticket) error {
		return pkg.NewStoreError("tickets", "update", errors.New("timeout"))
	}
	pub := NewMockPublisher()
	l := newTestTicketLifecycle(repo, pub, StationModeSingle)

	err := l.AdvanceTicket(context.Background(), ticket, "cooking")
	if !pkg.IsStoreError(err) {
		t.Fatalf("AdvanceTicket() error = %v, want StoreError", err)
	}
	if ticket.Status != "queued" || ticket.StartedAt != nil {
		t.Errorf("ticket = %s startedAt %v, want restored", ticket.Status, ticket.StartedAt)
	}
	if len(pub.Messages) != 0 {
		t.Errorf("failed write published %d events", len(pub.Messages))
	}
}

func TestAdvanceScopesToTenant(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "queued")
	l := newTestTicketLifecycle(repo, NewMockPublisher(), StationModeSingle)

	if _, err := l.Advance(context.Background(), "tenant-2", ticket.ID, "cooking"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("Advance() error = %v, want ErrNotFound", err)
	}
	if _, err := l.Advance(context.Background(), testTenant, uuid.New(), "cooking"); !errors.Is(err, pkg.ErrNotFound) {
		t.Fatalf("Advance(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestConcurrentAdvanceOnlyOneWins(t *testing.T) {
	repo := NewMockTicketRepository()
	ticket := seedTicket(repo, uuid.New(), "default", "cooking")
	pub := NewMockPublisher()
	l := newTestTicketLifecycle(repo, pub, StationModeSingle)
	ctx := context.Background()

	first, _ := repo.FindByID(ctx, ticket.ID)
	second, _ := repo.FindByID(ctx, ticket.ID)

	if err := l.AdvanceTicket(ctx, first, "ready"); err != nil {
		t.Fatalf("first advance error = %v", err)
	}
	if err := l.AdvanceTicket(ctx, second, "ready"); !errors.Is(err, pkg.ErrVersionConflict) {
		t.Fatalf("second advance error = %v, want ErrVersionConflict", err)
	}

	// The retrying path sees ready already and rejects a repeat.
	if _, err := l.Advance(ctx, testTenant, ticket.ID, "ready"); !errors.Is(err, ErrInvalidTicketTransition) {
		t.Fatalf("Advance() error = %v, want ErrInvalidTicketTransition", err)
	}
	if got := advanceTargets(pub); len(got) != 1 {
		t.Errorf("advance requests = %v, want exactly one", got)
	}
}

func TestSetPriority(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		priority   bool
		wantErr    error
		wantEvents int
	}{
		{name: "queued", status: "queued", priority: true, wantEvents: 1},
		{name: "ready", status: "ready", priority: true, wantEvents: 1},
		{name: "unchanged", status: "queued", priority: false, wantEvents: 0},
		{name: "bumped", status: "bumped", priority: true, wantErr: ErrTicketClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockTicketRepository()
			ticket := seedTicket(repo, uuid.New(), "default", tt.status)
			pub := NewMockPublisher()
			l := newTestTicketLifecycle(repo, pub, StationModeSingle)

			got, err := l.SetPriority(context.Background(), testTenant, ticket.ID, tt.priority)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetPriority() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetPriority() error = %v", err)
			}
			if got.Priority != tt.priority || got.Status != tt.status {
				t.Errorf("ticket = priority %v status %s", got.Priority, got.Status)
			}
			if n := len(pub.Topic(event.KitchenTicketsTopic)); n != tt.wantEvents {
				t.Errorf("events = %d, want %d", n, tt.wantEvents)
			}
			if len(pub.Topic(event.OrderAdvanceTopic)) != 0 {
				t.Error("priority change must not touch the order")
			}
		})
	}
}
