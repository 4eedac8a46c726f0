package application

import (
	"context"
	"errors"
	"fmt"

	relay "relaycloud/internal/relay/domain"
)

// Control is the device control workflow for one session: live display
// and toggling of relay state.
type Control struct {
	repo     relay.Repository
	notifier Notifier
}

// NewControl constructs the workflow for an authenticated session.
func NewControl(repo relay.Repository, notifier Notifier) (*Control, error) {
	if repo == nil {
		return nil, errors.New("control: nil repository")
	}
	return &Control{repo: repo, notifier: notifier}, nil
}

// Watch opens the live subscription feeding the control screen. The
// subscription, not any toggle result, moves the rendered switches.
func (c *Control) Watch(ctx context.Context, fn relay.SnapshotFunc) (relay.Unsubscribe, error) {
	return c.repo.Subscribe(ctx, fn)
}

// Toggle flips a relay. It reads the authoritative record first, never the
// cached snapshot, so a toggle issued against a stale row still lands on
// the true current state. An absent record reports an error without
// writing; an absent state field toggles from false.
func (c *Control) Toggle(ctx context.Context, id int) (relay.Relay, error) {
	current, err := c.repo.Fetch(ctx, id)
	if err != nil {
		if errors.Is(err, relay.ErrNotFound) {
			c.notify(ctx, errorNotification("", fmt.Sprintf("Device %d no longer exists.", id)))
		} else {
			c.notify(ctx, errorNotification("", "Error reading device state."))
		}
		return relay.Relay{}, err
	}

	next := !current.State
	if err := c.repo.SetState(ctx, id, next); err != nil {
		c.notify(ctx, errorNotification(current.Device, fmt.Sprintf("Error switching %s.", current.Device)))
		return relay.Relay{}, err
	}

	updated := relay.Relay{ID: id, Device: current.Device, State: next}
	c.notify(ctx, successNotification(current.Device, fmt.Sprintf("%s turned %s.", current.Device, stateWord(next))))
	return updated, nil
}

func (c *Control) notify(ctx context.Context, notification Notification) {
	if c.notifier != nil {
		c.notifier.Notify(ctx, notification)
	}
}

func stateWord(state bool) string {
	if state {
		return "ON"
	}
	return "OFF"
}
