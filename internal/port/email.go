package port

import "context"

// FollowUp is a delayed reminder about a ticket that is still waiting on input.
type FollowUp struct {
	TenantID  string
	TicketID  string
	Recipient string
	Subject   string
	Body      string
}

// Notifier delivers follow-up messages.
type Notifier interface {
	SendFollowUp(ctx context.Context, msg FollowUp) error
}
