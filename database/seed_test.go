package database

import (
	"context"
	"testing"

	"restaurant_order/config"
	"restaurant_order/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedDataIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, SeedData(ctx, store, zap.NewNop()))
	require.NoError(t, SeedData(ctx, store, zap.NewNop()))

	table, err := store.Tables().GetByCode(ctx, "A7F2")
	require.NoError(t, err)
	assert.Equal(t, DemoRestaurantId, table.RestaurantId)
	assert.Equal(t, 7, table.Number)
}

func TestDSN(t *testing.T) {
	dsn := DSN(config.Settings{DBHost: "db", DBPort: 5433, DBUser: "chef", DBPassword: "pw", DBName: "orders"})
	assert.Equal(t, "host=db port=5433 user=chef password=pw dbname=orders sslmode=disable", dsn)
}
