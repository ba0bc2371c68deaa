package community

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guillecro/leyesabiertas-core/internal/config"
)

func TestDefaultFromConfig(t *testing.T) {
	c := Default(config.CommunityConfig{Name: "Test", DocumentCreationLimit: 3})
	require.Equal(t, "Test", c.Name)
	require.Equal(t, 3, c.Permissions.Accountable.DocumentCreationLimit)
	require.False(t, c.CreatedAt.IsZero())
}

func TestStaticRepository(t *testing.T) {
	c := Default(config.CommunityConfig{Name: "Static", DocumentCreationLimit: 1})
	repo := NewStaticRepository(c)
	got, err := repo.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, got.Permissions.Accountable.DocumentCreationLimit)
}
