package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type pipelineRepo struct {
	db *sqlx.DB
}

// NewPipelineRepo creates a new PostgreSQL-backed PipelineRepository.
func NewPipelineRepo(db *sqlx.DB) port.PipelineRepository {
	return &pipelineRepo{db: db}
}

type pipelineRow struct {
	domain.PipelineContext
	Variables []byte    `db:"variables"`
	Documents []byte    `db:"documents"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row *pipelineRow) toDomain() (*domain.PipelineInstance, error) {
	inst := &domain.PipelineInstance{
		Context:   row.PipelineContext,
		Variables: map[string]any{},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Variables) > 0 {
		if err := json.Unmarshal(row.Variables, &inst.Variables); err != nil {
			return nil, fmt.Errorf("decoding variables: %w", err)
		}
	}
	if len(row.Documents) > 0 {
		if err := json.Unmarshal(row.Documents, &inst.Documents); err != nil {
			return nil, fmt.Errorf("decoding documents: %w", err)
		}
	}
	return inst, nil
}

func encodeState(inst *domain.PipelineInstance) (vars, docs []byte, err error) {
	variables := inst.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	if vars, err = json.Marshal(variables); err != nil {
		return nil, nil, fmt.Errorf("encoding variables: %w", err)
	}
	if docs, err = json.Marshal(inst.Documents); err != nil {
		return nil, nil, fmt.Errorf("encoding documents: %w", err)
	}
	return vars, docs, nil
}

func (r *pipelineRepo) Create(ctx context.Context, inst *domain.PipelineInstance) error {
	now := time.Now().UTC()
	inst.CreatedAt = now
	inst.UpdatedAt = now

	vars, docs, err := encodeState(inst)
	if err != nil {
		return fmt.Errorf("pipelineRepo.Create: %w", err)
	}

	query := `INSERT INTO pipeline_instances
		(tenant_id, ticket_id, workflow_key, stage_number, stage_name, variables, documents, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	c := inst.Context
	_, err = r.db.ExecContext(ctx, query,
		c.TenantID, c.TicketID, c.WorkflowKey, c.StageNumber, c.StageName, vars, docs, inst.CreatedAt, inst.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return fmt.Errorf("%w: ticket %s already exists", domain.ErrInvalidInput, c.TicketID)
		}
		return fmt.Errorf("pipelineRepo.Create: %w", err)
	}
	return nil
}

func (r *pipelineRepo) GetByTicket(ctx context.Context, tenantID, ticketID string) (*domain.PipelineInstance, error) {
	var row pipelineRow
	err := r.db.GetContext(ctx, &row,
		`SELECT tenant_id, ticket_id, workflow_key, stage_number, stage_name, variables, documents, created_at, updated_at
		FROM pipeline_instances WHERE tenant_id = $1 AND ticket_id = $2`, tenantID, ticketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("pipelineRepo.GetByTicket: %w", err)
	}
	inst, err := row.toDomain()
	if err != nil {
		return nil, fmt.Errorf("pipelineRepo.GetByTicket: %w", err)
	}
	return inst, nil
}

func (r *pipelineRepo) Update(ctx context.Context, inst *domain.PipelineInstance) error {
	inst.UpdatedAt = time.Now().UTC()

	vars, docs, err := encodeState(inst)
	if err != nil {
		return fmt.Errorf("pipelineRepo.Update: %w", err)
	}

	query := `UPDATE pipeline_instances
		SET stage_number = $3, stage_name = $4, variables = $5, documents = $6, updated_at = $7
		WHERE tenant_id = $1 AND ticket_id = $2`

	c := inst.Context
	result, err := r.db.ExecContext(ctx, query,
		c.TenantID, c.TicketID, c.StageNumber, c.StageName, vars, docs, inst.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pipelineRepo.Update: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("pipelineRepo.Update rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
