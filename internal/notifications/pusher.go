package notifications

import (
	"context"

	"skillswap/internal/models"
)

// UserPusher delivers stored notifications to the recipient's open sockets,
// through Redis when it is configured and straight to the local hub otherwise.
type UserPusher struct {
	notifier *Notifier
	hub      *Hub
}

func NewUserPusher(notifier *Notifier, hub *Hub) *UserPusher {
	return &UserPusher{notifier: notifier, hub: hub}
}

func (p *UserPusher) PushNotification(ctx context.Context, n *models.Notification) error {
	frame, err := models.NewFrame(models.EventNotification, n)
	if err != nil {
		return err
	}
	if p.notifier.Enabled() {
		return p.notifier.PublishUser(ctx, n.UserID, string(frame))
	}
	if p.hub != nil {
		p.hub.Broadcast(n.UserID, string(frame))
	}
	return nil
}
