package menu

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/messaging"
	"restaurant-pos/internal/models"
)

func TestCatalogResolve(t *testing.T) {
	c, err := NewCatalog("", messaging.Discard{}, logger.Discard())
	require.NoError(t, err)
	c.Seed("main", []models.MenuItem{{ID: "a", Name: "Kebab", Price: decimal.NewFromInt(50), Category: models.MenuKitchen}})

	m, err := c.Resolve(context.Background(), "main", "a")
	require.NoError(t, err)
	assert.Equal(t, "Kebab", m.Name)

	_, err = c.Resolve(context.Background(), "other", "a")
	assert.True(t, errors.Is(err, models.ErrNotFound))
}

func TestCatalogUpsertDeletePersistsAndPublishes(t *testing.T) {
	dir := t.TempDir()
	hub := messaging.NewHub(8)
	events, cancel := hub.Subscribe("main")
	defer cancel()

	c, err := NewCatalog(dir, hub, logger.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	created, err := c.Upsert(ctx, "main", models.MenuItem{Name: "Ayran", Price: decimal.NewFromInt(15), Category: models.MenuBar})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "main", created.Branch)

	ev := <-events
	assert.Equal(t, models.EventMenuUpdated, ev.Type)
	assert.Len(t, ev.Menu, 1)

	created.Price = decimal.NewFromInt(20)
	_, err = c.Upsert(ctx, "main", created)
	require.NoError(t, err)
	<-events

	reloaded, err := NewCatalog(dir, messaging.Discard{}, logger.Discard())
	require.NoError(t, err)
	m, err := reloaded.Resolve(ctx, "main", created.ID)
	require.NoError(t, err)
	assert.True(t, m.Price.Equal(decimal.NewFromInt(20)))

	require.NoError(t, c.Delete(ctx, "main", created.ID))
	ev = <-events
	assert.Empty(t, ev.Menu)
	assert.True(t, errors.Is(c.Delete(ctx, "main", created.ID), models.ErrNotFound))
}

func TestCatalogUpsertValidation(t *testing.T) {
	c, err := NewCatalog("", messaging.Discard{}, logger.Discard())
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Upsert(ctx, "main", models.MenuItem{Name: "x", Price: decimal.NewFromInt(-1), Category: models.MenuKitchen})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = c.Upsert(ctx, "main", models.MenuItem{Name: "x", Price: decimal.NewFromInt(1), Category: "snack"})
	assert.True(t, errors.Is(err, models.ErrValidation))

	_, err = c.Upsert(ctx, "main", models.MenuItem{ID: "ghost", Name: "x", Price: decimal.NewFromInt(1), Category: models.MenuKitchen})
	assert.True(t, errors.Is(err, models.ErrNotFound))
}
