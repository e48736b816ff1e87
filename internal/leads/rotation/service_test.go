package rotation

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"localpros_backend/internal/leads/audit"
	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"

	"github.com/google/uuid"
)

// UUIDs chosen so their text representations sort a < b < c.
var (
	providerA = uuid.MustParse("11111111-0000-0000-0000-000000000001")
	providerB = uuid.MustParse("22222222-0000-0000-0000-000000000002")
	providerC = uuid.MustParse("33333333-0000-0000-0000-000000000003")
	metroID   = uuid.MustParse("99999999-0000-0000-0000-000000000099")
)

type assignmentUpdate struct {
	leadID         uuid.UUID
	providerID     *uuid.UUID
	deliveryStatus string
	deliveryError  *string
}

type fakeStore struct {
	mu            sync.Mutex
	rotation      *repository.MetroRotation
	assignedPairs []uuid.UUID // provider ids in assignment order
	updates       []assignmentUpdate
	resets        int
	conflicts     int

	// readBarrier, when set, holds the first two pointer reads until both
	// have arrived, forcing two concurrent assignments to race on the same
	// pointer value. Retry reads pass through.
	readBarrier *sync.WaitGroup
	barrierHits int32
}

func (s *fakeStore) GetRotation(ctx context.Context, metroID uuid.UUID) (*repository.MetroRotation, error) {
	s.mu.Lock()
	var snapshot *repository.MetroRotation
	if s.rotation != nil {
		copied := *s.rotation
		snapshot = &copied
	}
	s.mu.Unlock()

	if s.readBarrier != nil && atomic.AddInt32(&s.barrierHits, 1) <= 2 {
		s.readBarrier.Done()
		s.readBarrier.Wait()
	}
	return snapshot, nil
}

func (s *fakeStore) AssignLeadAndAdvanceRotation(ctx context.Context, metroID, leadID, providerID uuid.UUID, prevProviderID *uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *uuid.UUID
	if s.rotation != nil {
		current = s.rotation.LastProviderID
	}
	if !uuidPtrEqual(current, prevProviderID) {
		s.conflicts++
		return repository.ErrRotationConflict
	}

	pid := providerID
	s.rotation = &repository.MetroRotation{MetroID: metroID, LastProviderID: &pid, LastAssignedAt: &at}
	s.assignedPairs = append(s.assignedPairs, providerID)
	return nil
}

func (s *fakeStore) ResetRotation(ctx context.Context, metroID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	if s.rotation != nil {
		s.rotation.LastProviderID = nil
	}
	return nil
}

func (s *fakeStore) UpdateAssignment(ctx context.Context, leadID uuid.UUID, providerID *uuid.UUID, deliveryStatus string, deliveryError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, assignmentUpdate{leadID, providerID, deliveryStatus, deliveryError})
	return nil
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type fakeDirectory struct {
	eligible []ports.ProviderInfo
}

func (d *fakeDirectory) GetProvider(ctx context.Context, id uuid.UUID) (ports.ProviderInfo, error) {
	for _, p := range d.eligible {
		if p.ID == id {
			return p, nil
		}
	}
	return ports.ProviderInfo{}, ports.ErrProviderNotFound
}

func (d *fakeDirectory) ListEligibleProviders(ctx context.Context, metroID uuid.UUID) ([]ports.ProviderInfo, error) {
	out := make([]ports.ProviderInfo, len(d.eligible))
	copy(out, d.eligible)
	return out, nil
}

func (d *fakeDirectory) FindProviderForUser(ctx context.Context, userID uuid.UUID) (ports.ProviderInfo, error) {
	return ports.ProviderInfo{}, ports.ErrProviderNotFound
}

type fakeDeliverer struct {
	mu        sync.Mutex
	delivered []uuid.UUID
}

func (f *fakeDeliverer) Deliver(ctx context.Context, leadID uuid.UUID) (delivery.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, leadID)
	return delivery.Result{OK: true, Message: "Lead delivered"}, nil
}

type fakeEventStore struct {
	mu     sync.Mutex
	events []repository.CreateLeadEventParams
}

func (s *fakeEventStore) CreateLeadEvent(ctx context.Context, params repository.CreateLeadEventParams) (repository.LeadEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, params)
	return repository.LeadEvent{ID: uuid.New(), LeadID: params.LeadID, EventType: params.EventType}, nil
}

func newTestAssigner(store *fakeStore, dir *fakeDirectory) (*Assigner, *fakeDeliverer, *fakeEventStore) {
	deliverer := &fakeDeliverer{}
	eventStore := &fakeEventStore{}
	assigner := New(store, dir, deliverer, audit.New(eventStore, nil), nil, nil)
	return assigner, deliverer, eventStore
}

func poolLead() repository.Lead {
	return repository.Lead{ID: uuid.New(), MetroID: metroID}
}

func threeProviders() *fakeDirectory {
	return &fakeDirectory{eligible: []ports.ProviderInfo{
		{ID: providerA, MetroID: metroID, BusinessName: "A Plumbing", LeadEligible: true},
		{ID: providerB, MetroID: metroID, BusinessName: "B Plumbing", LeadEligible: true},
		{ID: providerC, MetroID: metroID, BusinessName: "C Plumbing", LeadEligible: true},
	}}
}

func TestAssignRoundRobinFairness(t *testing.T) {
	store := &fakeStore{}
	assigner, _, _ := newTestAssigner(store, threeProviders())
	ctx := context.Background()

	// Four assignments across three providers must wrap around in sorted order.
	want := []uuid.UUID{providerA, providerB, providerC, providerA}
	for i := range want {
		result, err := assigner.Assign(ctx, poolLead(), nil, domain.SystemActor)
		if err != nil {
			t.Fatalf("assign %d: %v", i, err)
		}
		if !result.Assigned {
			t.Fatalf("assign %d: expected assignment", i)
		}
		if *result.ProviderID != want[i] {
			t.Fatalf("assign %d: expected %s, got %s", i, want[i], *result.ProviderID)
		}
	}
	if len(store.assignedPairs) != 4 {
		t.Fatalf("expected 4 rotation advances, got %d", len(store.assignedPairs))
	}
}

func TestAssignExcludesDecliningProvider(t *testing.T) {
	store := &fakeStore{}
	last := providerA
	store.rotation = &repository.MetroRotation{MetroID: metroID, LastProviderID: &last}
	assigner, _, _ := newTestAssigner(store, threeProviders())

	// Next in rotation would be B, but B declined this lead.
	result, err := assigner.Assign(context.Background(), poolLead(), []uuid.UUID{providerB}, domain.SystemActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if !result.Assigned || *result.ProviderID != providerC {
		t.Fatalf("expected C after excluding B, got %+v", result)
	}
}

func TestAssignEmptyPoolIsNotAnError(t *testing.T) {
	store := &fakeStore{}
	assigner, deliverer, eventStore := newTestAssigner(store, &fakeDirectory{})
	lead := poolLead()

	result, err := assigner.Assign(context.Background(), lead, nil, domain.SystemActor)
	if err != nil {
		t.Fatalf("empty pool must not error: %v", err)
	}
	if result.Assigned {
		t.Fatal("expected no assignment from empty pool")
	}
	if result.Message != MsgNoEligibleProviders {
		t.Fatalf("unexpected message %q", result.Message)
	}

	if len(store.updates) != 1 {
		t.Fatalf("expected one assignment update, got %d", len(store.updates))
	}
	update := store.updates[0]
	if update.providerID != nil || update.deliveryStatus != repository.DeliverySkipped {
		t.Fatalf("expected pool lead marked skipped, got %+v", update)
	}
	if update.deliveryError == nil || *update.deliveryError != MsgNoEligibleProviders {
		t.Fatalf("expected skip reason stored, got %v", update.deliveryError)
	}

	if len(deliverer.delivered) != 0 {
		t.Fatal("no delivery should be attempted for an unassigned lead")
	}
	if len(eventStore.events) != 1 || eventStore.events[0].EventType != repository.EventDeliverySkipped {
		t.Fatalf("expected one delivery_skipped event, got %+v", eventStore.events)
	}
}

func TestAssignExclusionCanEmptyThePool(t *testing.T) {
	store := &fakeStore{}
	dir := &fakeDirectory{eligible: []ports.ProviderInfo{
		{ID: providerA, MetroID: metroID, BusinessName: "A Plumbing", LeadEligible: true},
	}}
	assigner, _, _ := newTestAssigner(store, dir)

	result, err := assigner.Assign(context.Background(), poolLead(), []uuid.UUID{providerA}, domain.SystemActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if result.Assigned {
		t.Fatal("sole provider was excluded; expected no assignment")
	}
}

func TestResetRotationRestartsAtFirstProvider(t *testing.T) {
	store := &fakeStore{}
	last := providerB
	store.rotation = &repository.MetroRotation{MetroID: metroID, LastProviderID: &last}
	assigner, _, _ := newTestAssigner(store, threeProviders())
	ctx := context.Background()

	if err := assigner.ResetRotation(ctx, metroID); err != nil {
		t.Fatalf("reset: %v", err)
	}

	result, err := assigner.Assign(ctx, poolLead(), nil, domain.SystemActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if *result.ProviderID != providerA {
		t.Fatalf("expected rotation to restart at A after reset, got %s", *result.ProviderID)
	}
}

func TestAssignPointerToDepartedProviderRestartsAtHead(t *testing.T) {
	store := &fakeStore{}
	departed := uuid.MustParse("44444444-0000-0000-0000-000000000004")
	store.rotation = &repository.MetroRotation{MetroID: metroID, LastProviderID: &departed}
	assigner, _, _ := newTestAssigner(store, threeProviders())

	result, err := assigner.Assign(context.Background(), poolLead(), nil, domain.SystemActor)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if *result.ProviderID != providerA {
		t.Fatalf("expected restart at first sorted provider, got %s", *result.ProviderID)
	}
}

func TestAssignConcurrentAssignmentsGetDistinctProviders(t *testing.T) {
	store := &fakeStore{}
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	store.readBarrier = barrier
	assigner, _, _ := newTestAssigner(store, threeProviders())

	// Both goroutines read the same pointer before either commits; the
	// compare-and-swap must force the loser to re-read and pick the next
	// provider instead of doubling up on the same slot.
	type outcome struct {
		result AssignResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			result, err := assigner.Assign(context.Background(), poolLead(), nil, domain.SystemActor)
			outcomes <- outcome{result: result, err: err}
		}()
	}

	assigned := make(map[uuid.UUID]bool)
	for i := 0; i < 2; i++ {
		got := <-outcomes
		if got.err != nil {
			t.Fatalf("assign %d: %v", i, got.err)
		}
		if !got.result.Assigned {
			t.Fatalf("assign %d: expected assignment", i)
		}
		assigned[*got.result.ProviderID] = true
	}

	if len(assigned) != 2 {
		t.Fatalf("concurrent assignments double-claimed a rotation slot: %v", assigned)
	}
	store.mu.Lock()
	conflicts := store.conflicts
	store.mu.Unlock()
	if conflicts == 0 {
		t.Fatal("expected the racing assignment to hit a pointer conflict and retry")
	}
}

func TestAssignTriggersDeliveryAndRecordsEvent(t *testing.T) {
	store := &fakeStore{}
	assigner, deliverer, eventStore := newTestAssigner(store, threeProviders())
	lead := poolLead()

	if _, err := assigner.Assign(context.Background(), lead, nil, domain.SystemActor); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if len(deliverer.delivered) != 1 || deliverer.delivered[0] != lead.ID {
		t.Fatalf("expected delivery triggered for %s, got %v", lead.ID, deliverer.delivered)
	}
	if len(eventStore.events) != 1 {
		t.Fatalf("expected one event, got %d", len(eventStore.events))
	}
	event := eventStore.events[0]
	if event.EventType != repository.EventAssignedToProvider {
		t.Fatalf("expected assigned_to_provider, got %s", event.EventType)
	}
	if event.ActorType != domain.ActorSystem {
		t.Fatalf("expected system actor, got %s", event.ActorType)
	}
}
