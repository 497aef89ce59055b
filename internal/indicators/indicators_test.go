package indicators

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_PruningValid(t *testing.T) {
	r := NewRegistry()

	ind, err := r.Validate(Pruning, json.RawMessage(`{"tipo":"formacion","plantasIntervenidas":25}`))
	require.NoError(t, err)

	summary, err := r.Summarize(Pruning, ind)
	require.NoError(t, err)
	assert.Equal(t, Summary{"plantas": 25, "tipo": "formacion"}, summary)

	key, ok := r.SummaryKey(Pruning)
	assert.True(t, ok)
	assert.Equal(t, "resumenPoda", key)
}

func TestRegistry_PruningInvalid(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Pruning, json.RawMessage(`{"tipo":"radical","plantasIntervenidas":0}`))
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, Pruning, verr.ActivityType)

	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Rule
	}
	assert.Equal(t, "oneof", fields["tipo"])
	assert.Equal(t, "required", fields["plantasIntervenidas"])
}

func TestRegistry_WeedingPercentageRange(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Weeding, json.RawMessage(`{"fecha":"2025-03-01","metodo":"manual","coberturaPct":120}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "coberturaPct", verr.Fields[0].Field)
	assert.Equal(t, "lte", verr.Fields[0].Rule)

	ind, err := r.Validate(Weeding, json.RawMessage(`{"fecha":"2025-03-01","metodo":"manual","coberturaPct":0}`))
	require.NoError(t, err)
	summary, err := r.Summarize(Weeding, ind)
	require.NoError(t, err)
	assert.Equal(t, Summary{"fecha": "2025-03-01", "metodo": "manual", "cobertura": 0.0}, summary)
}

func TestRegistry_WeedingMissingPercentage(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Weeding, json.RawMessage(`{"fecha":"2025-03-01","metodo":"quimico"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coberturaPct", verr.Fields[0].Field)
	assert.Equal(t, "required", verr.Fields[0].Rule)
}

func TestRegistry_InvalidISODate(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Nutrition, json.RawMessage(`{"fechaAplicacion":"01/03/2025","metodo":"foliar","plantasTratadas":10}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "fechaAplicacion", verr.Fields[0].Field)
	assert.Equal(t, "datetime", verr.Fields[0].Rule)
}

func TestRegistry_TypeMismatch(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Bagging, json.RawMessage(`{"fecha":"2025-03-01","colorCinta":"rojo","racimosEnfundados":"muchos"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "racimosEnfundados", verr.Fields[0].Field)
	assert.Equal(t, "type", verr.Fields[0].Rule)
}

func TestRegistry_UnknownField(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Pruning, json.RawMessage(`{"tipo":"formacion","plantasIntervenidas":3,"plantas":3}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "plantas", verr.Fields[0].Field)
	assert.Equal(t, "unknown", verr.Fields[0].Rule)
}

func TestRegistry_MalformedJSON(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(Phytosanitary, json.RawMessage(`{"fecha":`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "json", verr.Fields[0].Rule)
}

func TestRegistry_HarvestHasNoSchema(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.Has(Harvest))
	_, err := r.Validate(Harvest, json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrNoSchema)
	_, ok := r.SummaryKey(Harvest)
	assert.False(t, ok)
}

func TestRegistry_SummarizeRejectsForeignVariant(t *testing.T) {
	r := NewRegistry()

	_, err := r.Summarize(Weeding, &PruningIndicators{Tipo: "formacion", PlantasIntervenidas: 1})
	assert.Error(t, err)
}

func TestRegistry_Substitutable(t *testing.T) {
	r := NewRegistryWith(map[string]Schema{Pruning: pruningSchema{}})

	assert.Equal(t, []string{Pruning}, r.Codes())
	assert.False(t, r.Has(Weeding))
}

func TestRegistry_PhytosanitarySummary(t *testing.T) {
	r := NewRegistry()

	ind, err := r.Validate(Phytosanitary, json.RawMessage(`{"fecha":"2025-04-10","objetivo":"sigatoka negra","metodo":"aspersion","severidadPct":12.5,"periodoCarenciaDias":0}`))
	require.NoError(t, err)

	summary, err := r.Summarize(Phytosanitary, ind)
	require.NoError(t, err)
	assert.Equal(t, "sigatoka negra", summary["objetivo"])
	assert.Equal(t, 12.5, summary["severidad"])
}
