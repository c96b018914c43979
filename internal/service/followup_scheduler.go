package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"claimflow/internal/config"
	"claimflow/internal/domain"
	"claimflow/internal/port"
)

// recipientVariable overrides the configured follow-up recipient per ticket.
const recipientVariable = "followUpRecipient"

// FollowUpScheduler sends a delayed reminder for a ticket unless a flag
// variable has been set on it by then. Timers are cancellable and drained on
// Shutdown; nothing runs detached from the scheduler.
type FollowUpScheduler struct {
	pipelines port.PipelineRepository
	notifier  port.Notifier
	cfg       config.FollowUpConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]context.CancelFunc
}

// NewFollowUpScheduler creates a scheduler. It does nothing when cfg.Enabled is false.
func NewFollowUpScheduler(pipelines port.PipelineRepository, notifier port.Notifier, cfg config.FollowUpConfig) *FollowUpScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &FollowUpScheduler{
		pipelines: pipelines,
		notifier:  notifier,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		pending:   make(map[string]context.CancelFunc),
	}
}

// Schedule arms a follow-up for the ticket. A ticket has at most one pending
// follow-up; scheduling again replaces it. It reports whether a timer was armed.
func (f *FollowUpScheduler) Schedule(pc domain.PipelineContext) bool {
	if !f.cfg.Enabled || f.ctx.Err() != nil {
		return false
	}
	key := pc.TenantID + "/" + pc.TicketID
	ctx, cancel := context.WithCancel(f.ctx)

	f.mu.Lock()
	if prev, ok := f.pending[key]; ok {
		prev()
	}
	f.pending[key] = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		defer f.release(ctx, key)

		timer := time.NewTimer(f.cfg.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if err := f.fire(ctx, pc); err != nil {
			zap.L().Warn("followUpScheduler: follow-up failed",
				zap.String("tenant_id", pc.TenantID), zap.String("ticket_id", pc.TicketID), zap.Error(err))
		}
	}()
	return true
}

// Cancel drops the pending follow-up of a ticket.
func (f *FollowUpScheduler) Cancel(tenantID, ticketID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	cancel, ok := f.pending[tenantID+"/"+ticketID]
	if ok {
		cancel()
		delete(f.pending, tenantID+"/"+ticketID)
	}
	return ok
}

// Pending returns the number of armed follow-ups.
func (f *FollowUpScheduler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Shutdown cancels every pending follow-up and waits for in-flight sends to
// return or for ctx to expire.
func (f *FollowUpScheduler) Shutdown(ctx context.Context) error {
	f.cancel()
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		zap.L().Info("followUpScheduler: shutdown complete")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release removes key only if it still belongs to this timer.
func (f *FollowUpScheduler) release(ctx context.Context, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cancel, ok := f.pending[key]; ok && ctx.Err() == nil {
		cancel()
		delete(f.pending, key)
	}
}

func (f *FollowUpScheduler) fire(ctx context.Context, pc domain.PipelineContext) error {
	inst, err := f.pipelines.GetByTicket(ctx, pc.TenantID, pc.TicketID)
	if err != nil {
		return fmt.Errorf("loading ticket: %w", err)
	}
	if truthy(inst.Variables[f.cfg.FlagVariable]) {
		zap.L().Debug("followUpScheduler: flag set, nothing to send",
			zap.String("ticket_id", pc.TicketID), zap.String("flag", f.cfg.FlagVariable))
		return nil
	}

	recipient := f.cfg.Recipient
	if r, ok := inst.Variables[recipientVariable].(string); ok && r != "" {
		recipient = r
	}
	if recipient == "" {
		return fmt.Errorf("%w: no follow-up recipient", domain.ErrInvalidInput)
	}

	return f.notifier.SendFollowUp(ctx, port.FollowUp{
		TenantID:  pc.TenantID,
		TicketID:  pc.TicketID,
		Recipient: recipient,
		Subject:   fmt.Sprintf("Claim %s is waiting for documents", pc.TicketID),
		Body: fmt.Sprintf("Claim %s has been waiting for %s. Please upload the outstanding documents.",
			pc.TicketID, f.cfg.Delay),
	})
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	case float64:
		return t != 0
	case int64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
