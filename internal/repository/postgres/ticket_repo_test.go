package postgres_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"claimflow/internal/repository/postgres"
)

func TestFormatTicketID(t *testing.T) {
	assert.Equal(t, "CLM000001", postgres.FormatTicketID("CLM", 1))
	assert.Equal(t, "HC123456", postgres.FormatTicketID("HC", 123456))
	assert.Equal(t, "X1234567", postgres.FormatTicketID("X", 1234567))
}
