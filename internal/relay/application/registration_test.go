package application

import (
	"context"
	"errors"
	"testing"

	relay "relaycloud/internal/relay/domain"
	"relaycloud/internal/relay/infrastructure/docstore"
	"relaycloud/internal/store/memory"
)

type recordingNotifier struct {
	notifications []Notification
}

func (n *recordingNotifier) Notify(_ context.Context, notification Notification) {
	n.notifications = append(n.notifications, notification)
}

func (n *recordingNotifier) last(t *testing.T) Notification {
	t.Helper()
	if len(n.notifications) == 0 {
		t.Fatal("expected a notification")
	}
	return n.notifications[len(n.notifications)-1]
}

func newRegistration(t *testing.T) (*Registration, relay.Repository, *recordingNotifier) {
	t.Helper()
	repo, err := docstore.New(memory.New(), "user-1")
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	notifier := &recordingNotifier{}
	workflow, err := NewRegistration(repo, notifier)
	if err != nil {
		t.Fatalf("new registration: %v", err)
	}
	return workflow, repo, notifier
}

func TestRegistration_ActivateEmptyCollection(t *testing.T) {
	workflow, _, _ := newRegistration(t)
	if err := workflow.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	view := workflow.View()
	if view.NextID != 1 {
		t.Fatalf("expected next id 1, got %d", view.NextID)
	}
	if len(view.Relays) != 0 {
		t.Fatalf("expected empty view, got %v", view.Relays)
	}
}

func TestRegistration_AddNormalizesAndBumps(t *testing.T) {
	workflow, repo, notifier := newRegistration(t)
	ctx := context.Background()
	if err := workflow.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}

	created, err := workflow.Add(ctx, "kitchen appliance")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.ID != 1 || created.Device != "KITCHEN APPLIANCE" || created.State {
		t.Fatalf("unexpected created relay: %+v", created)
	}

	stored, err := repo.Fetch(ctx, 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if stored.Device != "KITCHEN APPLIANCE" || stored.State {
		t.Fatalf("unexpected stored relay: %+v", stored)
	}

	view := workflow.View()
	if view.NextID != 2 {
		t.Fatalf("expected next id 2 after add, got %d", view.NextID)
	}
	if got := notifier.last(t); got.Level != NotificationSuccess || got.Device != "KITCHEN APPLIANCE" {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

func TestRegistration_AddRejectsEmptyName(t *testing.T) {
	workflow, _, _ := newRegistration(t)
	ctx := context.Background()
	if err := workflow.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := workflow.Add(ctx, "  "); !errors.Is(err, relay.ErrEmptyDeviceName) {
		t.Fatalf("expected ErrEmptyDeviceName, got %v", err)
	}
	if view := workflow.View(); len(view.Relays) != 0 || view.NextID != 1 {
		t.Fatalf("rejected add changed the view: %+v", view)
	}
}

func TestRegistration_AddBeforeActivate(t *testing.T) {
	workflow, _, _ := newRegistration(t)
	if _, err := workflow.Add(context.Background(), "BEDROOM FAN"); !errors.Is(err, relay.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID while still loading, got %v", err)
	}
}

func TestRegistration_ActivateComputesNextFromExisting(t *testing.T) {
	workflow, repo, _ := newRegistration(t)
	ctx := context.Background()
	if err := repo.Create(ctx, 4, "BEDROOM LIGHT"); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := workflow.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if view := workflow.View(); view.NextID != 5 {
		t.Fatalf("expected next id 5, got %d", view.NextID)
	}
}

func TestRegistration_DeleteRequiresConfirmation(t *testing.T) {
	workflow, repo, notifier := newRegistration(t)
	ctx := context.Background()
	if err := workflow.Activate(ctx); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if _, err := workflow.Add(ctx, "BEDROOM FAN"); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := workflow.Delete(ctx, 1, false); !errors.Is(err, relay.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
	if _, err := repo.Fetch(ctx, 1); err != nil {
		t.Fatalf("unconfirmed delete removed the record: %v", err)
	}

	if err := workflow.Delete(ctx, 1, true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Fetch(ctx, 1); !errors.Is(err, relay.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if view := workflow.View(); len(view.Relays) != 0 {
		t.Fatalf("deleted relay still in view: %+v", view)
	}
	if got := notifier.last(t); got.Level != NotificationSuccess {
		t.Fatalf("unexpected notification: %+v", got)
	}
}

type failingRepo struct {
	relay.Repository
	fetchAllErr error
}

func (r failingRepo) FetchAll(context.Context) (relay.Collection, error) {
	return nil, r.fetchAllErr
}

func TestRegistration_ActivateFailureDegradesToEmptyView(t *testing.T) {
	base, err := docstore.New(memory.New(), "user-1")
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	notifier := &recordingNotifier{}
	workflow, err := NewRegistration(failingRepo{Repository: base, fetchAllErr: errors.New("boom")}, notifier)
	if err != nil {
		t.Fatalf("new registration: %v", err)
	}

	if err := workflow.Activate(context.Background()); err == nil {
		t.Fatal("expected activate error")
	}
	view := workflow.View()
	if len(view.Relays) != 0 || view.NextID != 0 {
		t.Fatalf("expected degraded empty view, got %+v", view)
	}
	if got := notifier.last(t); got.Level != NotificationError {
		t.Fatalf("expected error notification, got %+v", got)
	}
}
