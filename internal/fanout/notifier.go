package fanout

import (
	"context"

	"github.com/fvnks/konecte-chatbridge/internal/models"
)

// Notifier is the bridge-facing notify entry point. The local variant
// reaches sessions held by this process; the redis variant additionally
// crosses process boundaries.
type Notifier interface {
	Notify(ctx context.Context, userID string, msg *models.Message) error
}

// LocalNotifier delivers straight to the in-process hub. It never fails:
// an empty room is a drop, not an error.
type LocalNotifier struct {
	hub *Hub
}

// NewLocalNotifier creates a notifier over the given hub.
func NewLocalNotifier(hub *Hub) *LocalNotifier {
	return &LocalNotifier{hub: hub}
}

// Notify pushes to the user's local room.
func (n *LocalNotifier) Notify(_ context.Context, userID string, msg *models.Message) error {
	n.hub.Notify(userID, msg)
	return nil
}
