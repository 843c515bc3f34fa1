package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/huertohogar/internal/utils"
)

func TestCatalogSeedAndBrowse(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.catalog.Seed(ctx, DefaultCatalog()))
	require.NoError(t, e.catalog.Seed(ctx, DefaultCatalog()))

	all, err := e.catalog.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "Huevos de Campo", all[0].Name)
	assert.Equal(t, "Miel de Quillay", all[3].Name)

	pantry, err := e.catalog.List(ctx, " Despensa ")
	require.NoError(t, err)
	assert.Len(t, pantry, 2)

	cats, err := e.catalog.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Despensa", "Fruta", "Verdura"}, cats)

	honey, err := e.catalog.Get(ctx, all[3].ID)
	require.NoError(t, err)
	assert.Equal(t, "$ 4.500", utils.FormatCLP(honey.Price))

	_, err = e.catalog.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
