package database

import (
	"testing"

	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_IsIdempotentAndSeedsActivityTypes(t *testing.T) {
	db, err := Connect(":memory:")
	require.NoError(t, err)

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var types []models.ActivityType
	require.NoError(t, db.Order("code").Find(&types).Error)
	assert.Len(t, types, len(activityTypes))

	harvest := 0
	for _, at := range types {
		if at.Harvest {
			harvest++
			assert.Equal(t, "cosecha", at.Code)
		}
	}
	assert.Equal(t, 1, harvest)
}

func TestConnect_MemoryDatabasesAreIsolated(t *testing.T) {
	a, err := Connect(":memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(a))
	require.NoError(t, a.Create(&models.Plot{Code: "L01", Name: "Lote 1"}).Error)

	b, err := Connect("sqlite::memory:")
	require.NoError(t, err)
	require.NoError(t, Migrate(b))

	var count int64
	require.NoError(t, b.Model(&models.Plot{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestOpen_SqliteFile(t *testing.T) {
	path := t.TempDir() + "/fieldops.db"
	db, err := Open(Options{URL: "sqlite:" + path, MaxOpen: 4, MaxIdle: 2})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	require.NoError(t, db.Create(&models.Plot{Code: "L02", Name: "Lote 2", AreaHa: 1.25}).Error)

	reopened, err := Open(Options{URL: "sqlite:" + path})
	require.NoError(t, err)
	var plot models.Plot
	require.NoError(t, reopened.Where("code = ?", "L02").First(&plot).Error)
	assert.InDelta(t, 1.25, plot.AreaHa, 1e-9)
}
