package lifecycle

import (
	"context"
	"testing"
	"time"

	"localpros_backend/internal/leads/audit"
	"localpros_backend/internal/leads/delivery"
	"localpros_backend/internal/leads/domain"
	"localpros_backend/internal/leads/ports"
	"localpros_backend/internal/leads/repository"
	"localpros_backend/internal/leads/rotation"
	"localpros_backend/platform/apperr"

	"github.com/google/uuid"
)

type fakeStore struct {
	leads map[uuid.UUID]*repository.Lead
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (repository.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *lead, nil
}

func (s *fakeStore) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]repository.Lead, error) {
	out := make([]repository.Lead, 0)
	for _, lead := range s.leads {
		if lead.ProviderID != nil && *lead.ProviderID == providerID {
			out = append(out, *lead)
		}
	}
	return out, nil
}

func (s *fakeStore) SetViewed(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	lead := s.leads[leadID]
	if lead.ViewedAt == nil {
		lead.ViewedAt = &at
	}
	return nil
}

func (s *fakeStore) SetContacted(ctx context.Context, leadID uuid.UUID, at time.Time) error {
	s.leads[leadID].LastContactedAt = &at
	return nil
}

func (s *fakeStore) SetResolved(ctx context.Context, leadID uuid.UUID, at time.Time, resolutionStatus string) error {
	lead := s.leads[leadID]
	lead.ResolvedAt = &at
	lead.ResolutionStatus = &resolutionStatus
	return nil
}

func (s *fakeStore) SetEscalated(ctx context.Context, leadID uuid.UUID, at time.Time, reason string) error {
	lead := s.leads[leadID]
	lead.EscalatedAt = &at
	lead.EscalationReason = &reason
	return nil
}

func (s *fakeStore) SetDeclined(ctx context.Context, params repository.DeclineParams) error {
	lead := s.leads[params.LeadID]
	lead.ProviderID = nil
	lead.DeclinedAt = &params.DeclinedAt
	lead.DeclineReason = &params.DeclineReason
	decliner := params.DeclinedByProviderID
	lead.DeclinedByProviderID = &decliner
	lead.DeliveryStatus = repository.DeliveryPending
	reason := repository.DeclineDeliveryError
	lead.DeliveryError = &reason
	return nil
}

func (s *fakeStore) SetBoardFields(ctx context.Context, leadID uuid.UUID, followUpAt *time.Time, nextAction *string) error {
	lead := s.leads[leadID]
	lead.FollowUpAt = followUpAt
	lead.NextAction = nextAction
	return nil
}

func (s *fakeStore) UpdateAssignment(ctx context.Context, leadID uuid.UUID, providerID *uuid.UUID, deliveryStatus string, deliveryError *string) error {
	lead := s.leads[leadID]
	lead.ProviderID = providerID
	lead.DeliveryStatus = deliveryStatus
	lead.DeliveryError = deliveryError
	return nil
}

func (s *fakeStore) ListLeadEvents(ctx context.Context, leadID uuid.UUID) ([]repository.LeadEvent, error) {
	return nil, nil
}

type fakeDirectory struct {
	byUser map[uuid.UUID]ports.ProviderInfo
	byID   map[uuid.UUID]ports.ProviderInfo
}

func (d *fakeDirectory) GetProvider(ctx context.Context, id uuid.UUID) (ports.ProviderInfo, error) {
	p, ok := d.byID[id]
	if !ok {
		return ports.ProviderInfo{}, ports.ErrProviderNotFound
	}
	return p, nil
}

func (d *fakeDirectory) ListEligibleProviders(ctx context.Context, metroID uuid.UUID) ([]ports.ProviderInfo, error) {
	return nil, nil
}

func (d *fakeDirectory) FindProviderForUser(ctx context.Context, userID uuid.UUID) (ports.ProviderInfo, error) {
	p, ok := d.byUser[userID]
	if !ok {
		return ports.ProviderInfo{}, ports.ErrProviderNotFound
	}
	return p, nil
}

type assignCall struct {
	leadID  uuid.UUID
	exclude []uuid.UUID
	actor   domain.Actor
}

type fakeAssigner struct {
	calls []assignCall
}

func (f *fakeAssigner) Assign(ctx context.Context, lead repository.Lead, exclude []uuid.UUID, actor domain.Actor) (rotation.AssignResult, error) {
	f.calls = append(f.calls, assignCall{leadID: lead.ID, exclude: exclude, actor: actor})
	next := uuid.New()
	return rotation.AssignResult{Assigned: true, ProviderID: &next, Message: "Lead assigned"}, nil
}

type fakeDeliverer struct {
	delivered []uuid.UUID
}

func (f *fakeDeliverer) Deliver(ctx context.Context, leadID uuid.UUID) (delivery.Result, error) {
	f.delivered = append(f.delivered, leadID)
	return delivery.Result{OK: true, Message: "Lead delivered"}, nil
}

type fakeEventStore struct {
	events []repository.CreateLeadEventParams
}

func (s *fakeEventStore) CreateLeadEvent(ctx context.Context, params repository.CreateLeadEventParams) (repository.LeadEvent, error) {
	s.events = append(s.events, params)
	return repository.LeadEvent{ID: uuid.New()}, nil
}

type fixture struct {
	controller *Controller
	store      *fakeStore
	assigner   *fakeAssigner
	deliverer  *fakeDeliverer
	eventStore *fakeEventStore

	lead            *repository.Lead
	providerID      uuid.UUID
	otherProviderID uuid.UUID
	providerActor   domain.Actor
	adminActor      domain.Actor
	strangerActor   domain.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	providerID := uuid.New()
	otherProviderID := uuid.New()
	providerUserID := uuid.New()
	strangerUserID := uuid.New()
	adminUserID := uuid.New()

	lead := &repository.Lead{
		ID:             uuid.New(),
		ProviderID:     &providerID,
		MetroID:        uuid.New(),
		CategoryID:     uuid.New(),
		RequesterEmail: "jane@example.com",
		DeliveryStatus: repository.DeliveryDelivered,
	}

	store := &fakeStore{leads: map[uuid.UUID]*repository.Lead{lead.ID: lead}}
	dir := &fakeDirectory{
		byUser: map[uuid.UUID]ports.ProviderInfo{
			providerUserID: {ID: providerID, MetroID: lead.MetroID, BusinessName: "Ace Plumbing"},
			strangerUserID: {ID: uuid.New(), MetroID: lead.MetroID, BusinessName: "Rival Plumbing"},
		},
		byID: map[uuid.UUID]ports.ProviderInfo{
			providerID:      {ID: providerID, MetroID: lead.MetroID, BusinessName: "Ace Plumbing"},
			otherProviderID: {ID: otherProviderID, MetroID: lead.MetroID, BusinessName: "Budget Plumbing"},
		},
	}
	assigner := &fakeAssigner{}
	deliverer := &fakeDeliverer{}
	eventStore := &fakeEventStore{}

	return &fixture{
		controller:      New(store, dir, assigner, deliverer, audit.New(eventStore, nil), nil, nil),
		store:           store,
		assigner:        assigner,
		deliverer:       deliverer,
		eventStore:      eventStore,
		lead:            lead,
		providerID:      providerID,
		otherProviderID: otherProviderID,
		providerActor:   domain.Actor{Type: domain.ActorProvider, UserID: &providerUserID},
		adminActor:      domain.Actor{Type: domain.ActorAdmin, UserID: &adminUserID},
		strangerActor:   domain.Actor{Type: domain.ActorProvider, UserID: &strangerUserID},
	}
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	if !apperr.Is(err, kind) {
		t.Fatalf("expected error kind %v, got %v (%v)", kind, apperr.GetKind(err), err)
	}
}

func TestProviderCannotActOnAnotherProvidersLead(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.MarkViewed(context.Background(), f.lead.ID, f.strangerActor)
	wantKind(t, err, apperr.KindForbidden)

	if f.lead.ViewedAt != nil {
		t.Fatal("unauthorized action must not mutate the lead")
	}
}

func TestMarkViewedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.controller.MarkViewed(ctx, f.lead.ID, f.providerActor)
	if err != nil {
		t.Fatalf("first view: %v", err)
	}
	if first.ViewedAt == nil {
		t.Fatal("expected viewed_at stamped")
	}
	stamped := *first.ViewedAt

	second, err := f.controller.MarkViewed(ctx, f.lead.ID, f.providerActor)
	if err != nil {
		t.Fatalf("second view: %v", err)
	}
	if second.ViewedAt == nil || !second.ViewedAt.Equal(stamped) {
		t.Fatal("repeat view must keep the original timestamp")
	}
	if len(f.eventStore.events) != 1 {
		t.Fatalf("repeat view must not record a second event, got %d", len(f.eventStore.events))
	}
}

func TestProviderCannotSkipLifecycleSteps(t *testing.T) {
	f := newFixture(t)

	// new -> resolved skips viewed and contacted.
	_, err := f.controller.Resolve(context.Background(), f.lead.ID, f.providerActor, domain.ResolutionWon)
	wantKind(t, err, apperr.KindValidation)

	if f.lead.ResolvedAt != nil {
		t.Fatal("rejected transition must not mutate the lead")
	}
}

func TestProviderCannotEscalate(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.Escalate(context.Background(), f.lead.ID, f.providerActor, "customer unhappy")
	wantKind(t, err, apperr.KindForbidden)
}

func TestProviderFullForwardPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.controller.MarkViewed(ctx, f.lead.ID, f.providerActor); err != nil {
		t.Fatalf("view: %v", err)
	}
	if _, err := f.controller.MarkContacted(ctx, f.lead.ID, f.providerActor); err != nil {
		t.Fatalf("contact: %v", err)
	}
	// Repeat contact refreshes the timestamp.
	if _, err := f.controller.MarkContacted(ctx, f.lead.ID, f.providerActor); err != nil {
		t.Fatalf("repeat contact: %v", err)
	}
	lead, err := f.controller.Resolve(ctx, f.lead.ID, f.providerActor, domain.ResolutionWon)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if lead.LifecycleState() != domain.StateResolved {
		t.Fatalf("expected resolved, got %s", lead.LifecycleState())
	}
	if lead.ResolutionStatus == nil || *lead.ResolutionStatus != domain.ResolutionWon {
		t.Fatalf("expected resolution won, got %v", lead.ResolutionStatus)
	}
}

func TestAdminCanResolveDirectlyWithDefaultStatus(t *testing.T) {
	f := newFixture(t)

	lead, err := f.controller.Resolve(context.Background(), f.lead.ID, f.adminActor, "")
	if err != nil {
		t.Fatalf("admin resolve: %v", err)
	}
	if lead.ResolutionStatus == nil || *lead.ResolutionStatus != domain.DefaultResolution {
		t.Fatalf("expected default resolution %q, got %v", domain.DefaultResolution, lead.ResolutionStatus)
	}
}

func TestResolveRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.Resolve(context.Background(), f.lead.ID, f.adminActor, "maybe")
	wantKind(t, err, apperr.KindValidation)
}

func TestResolvedLeadAcceptsNoFurtherTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.controller.Resolve(ctx, f.lead.ID, f.adminActor, domain.ResolutionClosed); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	_, err := f.controller.Escalate(ctx, f.lead.ID, f.adminActor, "reopen")
	wantKind(t, err, apperr.KindValidation)
}

func TestDeclineRequiresReason(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.Decline(context.Background(), f.lead.ID, f.providerActor, "", "")
	wantKind(t, err, apperr.KindValidation)

	if f.lead.ProviderID == nil {
		t.Fatal("rejected decline must not detach the lead")
	}
}

func TestDeclineProtocol(t *testing.T) {
	f := newFixture(t)

	result, err := f.controller.Decline(context.Background(), f.lead.ID, f.providerActor, "too_far", "outside service area")
	if err != nil {
		t.Fatalf("decline: %v", err)
	}

	if f.lead.DeclinedAt == nil {
		t.Fatal("expected declined_at stamped")
	}
	if f.lead.DeclinedByProviderID == nil || *f.lead.DeclinedByProviderID != f.providerID {
		t.Fatal("expected declining provider recorded")
	}
	if f.lead.DeclineReason == nil || *f.lead.DeclineReason != "too_far — outside service area" {
		t.Fatalf("unexpected decline reason %v", f.lead.DeclineReason)
	}
	if f.lead.DeliveryError == nil || *f.lead.DeliveryError != repository.DeclineDeliveryError {
		t.Fatalf("expected pool-return reason stamped on delivery_error, got %v", f.lead.DeliveryError)
	}

	// Event order: the decline by the provider, then the system pool return.
	if len(f.eventStore.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(f.eventStore.events))
	}
	declined := f.eventStore.events[0]
	if declined.EventType != repository.EventProviderDeclined {
		t.Fatalf("expected provider_declined first, got %s", declined.EventType)
	}
	if declined.ActorType != domain.ActorProvider {
		t.Fatalf("expected provider actor on decline event, got %s", declined.ActorType)
	}
	if declined.Data["reason"] != "too_far" || declined.Data["note"] != "outside service area" {
		t.Fatalf("expected reason and note carried separately, got %v", declined.Data)
	}
	returned := f.eventStore.events[1]
	if returned.EventType != repository.EventReturnedToPool {
		t.Fatalf("expected returned_to_pool second, got %s", returned.EventType)
	}
	if returned.ActorType != domain.ActorSystem {
		t.Fatalf("expected system actor on pool return, got %s", returned.ActorType)
	}
	if returned.Data["metroId"] != f.lead.MetroID.String() {
		t.Fatalf("expected metro on pool return event, got %v", returned.Data)
	}

	// Reassignment excludes the decliner and runs as the system.
	if len(f.assigner.calls) != 1 {
		t.Fatalf("expected one reassignment, got %d", len(f.assigner.calls))
	}
	call := f.assigner.calls[0]
	if len(call.exclude) != 1 || call.exclude[0] != f.providerID {
		t.Fatalf("expected decliner excluded, got %v", call.exclude)
	}
	if call.actor.Type != domain.ActorSystem {
		t.Fatalf("expected system actor, got %s", call.actor.Type)
	}
	if !result.Reassigned.Assigned {
		t.Fatal("expected reassignment result propagated")
	}
}

func TestResolvedLeadCannotBeDeclined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now()
	f.lead.ResolvedAt = &now

	_, err := f.controller.Decline(ctx, f.lead.ID, f.providerActor, "too_far", "")
	wantKind(t, err, apperr.KindValidation)
}

func TestAdminReassignMovesLeadToChosenProvider(t *testing.T) {
	f := newFixture(t)

	lead, err := f.controller.Reassign(context.Background(), f.lead.ID, f.otherProviderID, f.adminActor)
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}

	if lead.ProviderID == nil || *lead.ProviderID != f.otherProviderID {
		t.Fatalf("expected lead moved to chosen provider, got %v", lead.ProviderID)
	}
	if lead.DeliveryStatus != repository.DeliveryPending {
		t.Fatalf("expected delivery reset to pending, got %s", lead.DeliveryStatus)
	}

	// A directed move must not run the rotation or advance its pointer.
	if len(f.assigner.calls) != 0 {
		t.Fatalf("directed reassign must not touch the rotation, got %d calls", len(f.assigner.calls))
	}
	if len(f.deliverer.delivered) != 1 || f.deliverer.delivered[0] != f.lead.ID {
		t.Fatalf("expected delivery triggered for the reassigned lead, got %v", f.deliverer.delivered)
	}

	if len(f.eventStore.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.eventStore.events))
	}
	event := f.eventStore.events[0]
	if event.EventType != repository.EventAssignedToProvider {
		t.Fatalf("expected assigned_to_provider, got %s", event.EventType)
	}
	if event.ActorType != domain.ActorAdmin {
		t.Fatalf("expected admin actor, got %s", event.ActorType)
	}
	if event.Data["previousProviderId"] != f.providerID.String() {
		t.Fatalf("expected previous provider recorded, got %v", event.Data)
	}
}

func TestReassignIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.Reassign(context.Background(), f.lead.ID, f.otherProviderID, f.providerActor)
	wantKind(t, err, apperr.KindForbidden)
}

func TestReassignToCurrentProviderRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.Reassign(context.Background(), f.lead.ID, f.providerID, f.adminActor)
	wantKind(t, err, apperr.KindValidation)
}

func TestReassignToUnknownProviderRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.Reassign(context.Background(), f.lead.ID, uuid.New(), f.adminActor)
	wantKind(t, err, apperr.KindNotFound)

	if f.lead.ProviderID == nil || *f.lead.ProviderID != f.providerID {
		t.Fatal("rejected reassign must not move the lead")
	}
}

func TestReturnToPoolIsAdminOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.controller.ReturnToPool(context.Background(), f.lead.ID, f.providerActor)
	wantKind(t, err, apperr.KindForbidden)
}

func TestReturnToPoolDetachesAndReassigns(t *testing.T) {
	f := newFixture(t)

	if _, err := f.controller.ReturnToPool(context.Background(), f.lead.ID, f.adminActor); err != nil {
		t.Fatalf("return to pool: %v", err)
	}

	if len(f.assigner.calls) != 1 {
		t.Fatalf("expected reassignment, got %d calls", len(f.assigner.calls))
	}
	call := f.assigner.calls[0]
	if len(call.exclude) != 0 {
		t.Fatalf("pool return reassigns without exclusions, got %v", call.exclude)
	}
	if call.actor.Type != domain.ActorSystem {
		t.Fatalf("expected system actor, got %s", call.actor.Type)
	}
}
