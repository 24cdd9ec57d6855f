package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/evermark/servicedesk-backend/pkg/db/models"
)

func setupInventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS inventory_items (
  id TEXT PRIMARY KEY,
  sku TEXT UNIQUE,
  title TEXT NOT NULL,
  brand TEXT,
  model TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func seedItem(t *testing.T, db *gorm.DB, sku string) *models.InventoryItem {
	t.Helper()
	item := &models.InventoryItem{
		ID:    uuid.New(),
		SKU:   &sku,
		Title: "Turntable TT-" + sku,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func TestRepositoryFindByID(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	item := seedItem(t, db, "SKU-INV-1")

	found, err := repo.FindByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, found.ID)
	require.NotNil(t, found.SKU)
	assert.Equal(t, "SKU-INV-1", *found.SKU)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindBySKU(t *testing.T) {
	db := setupInventoryTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	item := seedItem(t, db, "SKU-INV-2")

	found, err := repo.FindBySKU(ctx, " SKU-INV-2 ")
	require.NoError(t, err)
	assert.Equal(t, item.ID, found.ID)

	_, err = repo.FindBySKU(ctx, "SKU-ABSENT")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
