package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s := sampleSession("s1")
	require.NoError(t, repo.Upsert(ctx, s))
	assert.False(t, s.UpdatedAt.IsZero())

	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)

	got.Lines[0].Quantity = 50
	again, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Lines[0].Quantity, "stored sessions must not alias returned ones")

	require.NoError(t, repo.Delete(ctx, "s1"))
	_, err = repo.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
