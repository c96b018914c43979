package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"claimflow/internal/domain"
	"claimflow/internal/storage/memory"
)

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New("claims")

	ref, err := s.Put(ctx, "a/b.json", []byte(`{}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "memory://claims/a/b.json", ref)

	ok, err := s.Exists(ctx, "a/b.json")
	require.NoError(t, err)
	assert.True(t, ok)

	body, err := s.Get(ctx, "a/b.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{}`), body)
	assert.Equal(t, "application/json", s.ContentType("a/b.json"))
	assert.Equal(t, []string{"a/b.json"}, s.Keys("a/"))

	deleted, err := s.Delete(ctx, "a/b.json")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.Delete(ctx, "a/b.json")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = s.Get(ctx, "a/b.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStore_EmptyKey(t *testing.T) {
	_, err := memory.New("x").Put(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
