package noop

import (
	"context"

	"go.uber.org/zap"

	"claimflow/internal/port"
)

type noopNotifier struct{}

// NewNoopNotifier creates a Notifier that only logs follow-ups.
func NewNoopNotifier() port.Notifier {
	return &noopNotifier{}
}

func (n *noopNotifier) SendFollowUp(_ context.Context, msg port.FollowUp) error {
	zap.L().Info("noop.SendFollowUp: follow-up not delivered",
		zap.String("tenant_id", msg.TenantID),
		zap.String("ticket_id", msg.TicketID),
		zap.String("recipient", msg.Recipient),
		zap.String("subject", msg.Subject))
	return nil
}
