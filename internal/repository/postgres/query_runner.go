package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"claimflow/internal/port"
)

var sqlTxReadOnly = sql.TxOptions{ReadOnly: true}

type queryRunner struct {
	db *sqlx.DB
}

// NewQueryRunner creates a QueryRunner for configured SqlQueryExecution steps.
// Queries run inside a read-only transaction.
func NewQueryRunner(db *sqlx.DB) port.QueryRunner {
	return &queryRunner{db: db}
}

func (q *queryRunner) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	tx, err := q.db.BeginTxx(ctx, &sqlTxReadOnly)
	if err != nil {
		return nil, fmt.Errorf("queryRunner.Query begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queryRunner.Query: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("queryRunner.Query scan: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queryRunner.Query rows: %w", err)
	}
	return out, nil
}
