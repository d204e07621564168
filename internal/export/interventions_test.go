package export

import (
	"bytes"
	"testing"
	"time"

	"pestops-bknd/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestInterventions_Workbook(t *testing.T) {
	notes := "droppings near pallet"
	local := time.Date(2026, 5, 2, 9, 15, 0, 0, time.FixedZone("GMT+1", 3600))
	rows := []models.InterventionExportRow{
		{
			ID: "i1", SiteName: "Cold Store", StationIdentifier: "A-01", AgentName: "Ama",
			ConsumptionLevel: models.ConsumptionHigh, IncidentType: models.IncidentNone,
			BaitReplaced: true, Notes: &notes, LocalCreatedAt: &local,
			CreatedAt: time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ID: "i2", SiteName: "Cold Store", StationIdentifier: "A-02", AgentName: "Kofi",
			ConsumptionLevel: models.ConsumptionNone, IncidentType: models.IncidentStationDamaged,
			CreatedAt: time.Date(2026, 5, 2, 11, 0, 0, 0, time.UTC),
		},
	}

	data, err := Interventions(rows)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{InterventionsSheet}, f.GetSheetList())

	got, err := f.GetRows(InterventionsSheet)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, InterventionsHeader, got[0])
	assert.Equal(t, []string{"i1", "Cold Store", "A-01", "Ama", "high", "none", "Yes", "No", notes, "2026-05-02 08:15:00", "2026-05-02 10:00:00"}, got[1])
	assert.Equal(t, "station_damaged", got[2][5])
	assert.Equal(t, "", got[2][8])
}

func TestInterventions_EmptyHasHeaderOnly(t *testing.T) {
	data, err := Interventions(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(InterventionsSheet)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
