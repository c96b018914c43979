package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"claimflow/internal/domain"
	"claimflow/internal/port"
)

type workflowConfigRepo struct {
	db *sqlx.DB
}

// NewWorkflowConfigRepo creates a new PostgreSQL-backed WorkflowConfigRepository.
func NewWorkflowConfigRepo(db *sqlx.DB) port.WorkflowConfigRepository {
	return &workflowConfigRepo{db: db}
}

func (r *workflowConfigRepo) GetConfig(ctx context.Context, workflowKey, tenantID string) ([]byte, error) {
	var blob []byte
	err := r.db.GetContext(ctx, &blob,
		"SELECT config FROM workflow_configs WHERE workflow_key = $1 AND tenant_id = $2", workflowKey, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("workflowConfigRepo.GetConfig: %w", err)
	}
	return blob, nil
}

func (r *workflowConfigRepo) UpsertConfig(ctx context.Context, workflowKey, tenantID string, blob []byte) error {
	query := `INSERT INTO workflow_configs (workflow_key, tenant_id, config)
		VALUES ($1, $2, $3)
		ON CONFLICT (workflow_key, tenant_id)
		DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, workflowKey, tenantID, blob); err != nil {
		return fmt.Errorf("workflowConfigRepo.UpsertConfig: %w", err)
	}
	return nil
}
