package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"claimflow/internal/port"
)

type ticketRepo struct {
	db *sqlx.DB
}

// NewTicketRepo creates a new PostgreSQL-backed TicketRepository.
func NewTicketRepo(db *sqlx.DB) port.TicketRepository {
	return &ticketRepo{db: db}
}

// NextTicketID atomically increments the tenant's counter for prefix and
// formats it as <prefix><6-digit number>.
func (r *ticketRepo) NextTicketID(ctx context.Context, tenantID, prefix string) (string, error) {
	query := `INSERT INTO ticket_counters (tenant_id, prefix, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, prefix)
		DO UPDATE SET last_value = ticket_counters.last_value + 1, updated_at = NOW()
		RETURNING last_value`

	var n int64
	if err := r.db.QueryRowxContext(ctx, query, tenantID, prefix).Scan(&n); err != nil {
		return "", fmt.Errorf("ticketRepo.NextTicketID: %w", err)
	}
	return FormatTicketID(prefix, n), nil
}

// FormatTicketID renders a ticket counter value.
func FormatTicketID(prefix string, n int64) string {
	return fmt.Sprintf("%s%06d", prefix, n)
}
