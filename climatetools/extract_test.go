package climatetools

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBaseColumns = []string{ColID, ColGlacierID, ColLat, ColLon, ColElevation, ColYear, ColBalance}

// testClimate builds a 2x2 grid over the 2020 hydrological year where each
// variable holds base+month at every cell, so enrichment results are exact.
func testClimate(bases map[string]float64, varNames ...string) *ClimateDataset {
	lats := []float64{46, 47}
	lons := []float64{7, 8}
	times := HydrologicalRange(2020)

	ds := &ClimateDataset{
		Lats:     lats,
		Lons:     lons,
		Times:    times,
		VarNames: varNames,
		vars:     make(map[string]*gridVar),
	}
	for _, name := range varNames {
		values := make([]float64, len(times)*len(lats)*len(lons))
		for ti := range times {
			for i := range lats {
				for j := range lons {
					values[(ti*len(lats)+i)*len(lons)+j] = bases[name] + float64(ti)
				}
			}
		}
		ds.vars[name] = &gridVar{expver: 1, values: values}
	}
	return ds
}

func testTerrain(z float64) *TerrainGrid {
	return &TerrainGrid{
		Lats:   []float64{46, 47},
		Lons:   []float64{7, 8},
		Values: [][]float64{{z, z}, {z, z}},
	}
}

func testRecord(id string, year int) StakeRecord {
	return StakeRecord{
		ID:        id,
		GlacierID: "RGI60-11.00001",
		Lat:       46,
		Lon:       7,
		Elevation: 2500,
		Year:      year,
		Balance:   -1.2,
	}
}

func TestEnrichEndToEnd(t *testing.T) {
	climate := testClimate(map[string]float64{"t2m": 100, "tp": 200}, "t2m", "tp")
	terrain := testTerrain(standardGravity * 1000)

	table := enrich([]StakeRecord{testRecord("m1", 2020)}, testBaseColumns, climate, terrain, Options{})
	require.Len(t, table.Rows, 1)

	wantCols := make([]string, 0, 26)
	for _, v := range []string{"t2m", "tp"} {
		for _, m := range hydroMonths {
			wantCols = append(wantCols, fmt.Sprintf("%s_%s", v, m))
		}
	}
	wantCols = append(wantCols, ColAltitudeClimate, ColElevationDifference)
	assert.Equal(t, wantCols, table.FeatureColumns)

	row := table.Rows[0]
	for m := 0; m < 12; m++ {
		assert.Equal(t, 100+float64(m), row.Features[m], "t2m month %d", m)
		assert.Equal(t, 200+float64(m), row.Features[12+m], "tp month %d", m)
	}
	wantAlt := grib1EarthRadius * 1000 / (grib1EarthRadius - 1000)
	assert.InDelta(t, wantAlt, row.Features[24], 1e-9)
	assert.InDelta(t, wantAlt-2500, row.Features[25], 1e-9)

	// Identity fields survive enrichment untouched.
	assert.Equal(t, "m1", row.Record.ID)
	assert.Equal(t, 2020, row.Record.Year)
}

func TestEnrichConvertUnits(t *testing.T) {
	climate := testClimate(map[string]float64{"t2m": 273.15}, "t2m")
	// Constant per month, not per-month increments.
	for i := range climate.vars["t2m"].values {
		climate.vars["t2m"].values[i] = 273.15
	}

	table := enrich([]StakeRecord{testRecord("m1", 2020)}, testBaseColumns, climate, testTerrain(0), Options{ConvertUnits: true})
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 0.0, table.Rows[0].Features[0])
}

func TestEnrichExcludesYearlessRecords(t *testing.T) {
	climate := testClimate(map[string]float64{"t2m": 1}, "t2m")

	table := enrich([]StakeRecord{
		testRecord("m1", 2020),
		testRecord("m2", 0),
	}, testBaseColumns, climate, testTerrain(0), Options{})

	require.Len(t, table.Rows, 1)
	assert.Equal(t, "m1", table.Rows[0].Record.ID)
}

func TestEnrichDropsRecordsWithoutAltitude(t *testing.T) {
	climate := testClimate(map[string]float64{"t2m": 1}, "t2m")
	terrain := testTerrain(0)
	for i := range terrain.Values {
		for j := range terrain.Values[i] {
			terrain.Values[i][j] = math.NaN()
		}
	}

	table := enrich([]StakeRecord{testRecord("m1", 2020)}, testBaseColumns, climate, terrain, Options{})
	assert.Empty(t, table.Rows)
}

func TestExtractMissingDatasets(t *testing.T) {
	_, err := Extract(nil, nil, "/does/not/exist.nc", "/also/missing.nc", Options{}, nil)
	require.Error(t, err)

	var notFound *DatasetNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "/does/not/exist.nc", notFound.Path)
}
