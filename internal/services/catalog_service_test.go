package services

import (
	"context"
	"testing"

	"github.com/h4ks-com/fieldops/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUser(t *testing.T) {
	env := setupTestEnv(t)

	user, err := env.catalog.EnsureUser("rosa", "Rosa Pérez", "", true)
	require.NoError(t, err)
	assert.Equal(t, models.RoleWorker, user.Role)

	again, err := env.catalog.EnsureUser("rosa", "", models.RoleTechnician, false)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Rosa Pérez", again.FullName)
	assert.Equal(t, models.RoleTechnician, again.Role)
	assert.False(t, again.Active)

	_, err = env.catalog.EnsureUser("bad name", "", "", true)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = env.catalog.EnsureUser("x", "", "owner", true)
	assert.ErrorIs(t, err, ErrValidation)

	found, err := env.catalog.FindUserByUsername("rosa")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	_, err = env.catalog.FindUserByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.catalog.GetUser(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnsurePlotIsIdempotent(t *testing.T) {
	env := setupTestEnv(t)

	again, err := env.catalog.EnsurePlot("L01", "ignored", 9)
	require.NoError(t, err)
	assert.Equal(t, env.plot.ID, again.ID)
	assert.Equal(t, "Lote 1", again.Name)

	_, err = env.catalog.EnsurePlot(" ", "", 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateCampaign(t *testing.T) {
	env := setupTestEnv(t)
	end := date(2025, 1, 1)

	_, _, err := env.catalog.CreateCampaign("bad", date(2025, 6, 1), &end, true, nil)
	assert.ErrorIs(t, err, ErrValidation)
	_, _, err = env.catalog.CreateCampaign("", date(2025, 6, 1), nil, true, nil)
	assert.ErrorIs(t, err, ErrValidation)

	campaign, periods, err := env.catalog.CreateCampaign("2025-B", date(2025, 6, 1), nil, true, []string{"S23", "S24"})
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, campaign.ID, periods[1].CampaignID)
}

func TestListActivityTypesIsSeeded(t *testing.T) {
	env := setupTestEnv(t)
	types, err := env.catalog.ListActivityTypes()
	require.NoError(t, err)

	harvest := map[string]bool{}
	for _, at := range types {
		harvest[at.Code] = at.Harvest
	}
	assert.Len(t, harvest, 6)
	assert.True(t, harvest["cosecha"])
	assert.False(t, harvest["poda"])
}
