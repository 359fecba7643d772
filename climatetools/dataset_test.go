package climatetools

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTimes(t *testing.T) {
	t.Run("hours since 1900", func(t *testing.T) {
		// The ERA5 convention.
		times, err := decodeTimes([]float64{0, 24}, "hours since 1900-01-01 00:00:00.0")
		require.NoError(t, err)
		assert.Equal(t, time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), times[0])
		assert.Equal(t, time.Date(1900, 1, 2, 0, 0, 0, 0, time.UTC), times[1])
	})

	t.Run("days since epoch", func(t *testing.T) {
		times, err := decodeTimes([]float64{365}, "days since 2000-01-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2000, 12, 31, 0, 0, 0, 0, time.UTC), times[0])
	})

	t.Run("unsupported unit", func(t *testing.T) {
		_, err := decodeTimes([]float64{1}, "fortnights since 2000-01-01")
		assert.Error(t, err)
	})

	t.Run("missing since", func(t *testing.T) {
		_, err := decodeTimes([]float64{1}, "hours")
		assert.Error(t, err)
	})
}

func TestShapeClimateVar(t *testing.T) {
	flat := make([]float64, 2*3*4)

	gv, err := shapeClimateVar(flat, []int{2, 3, 4}, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 1, gv.expver)

	gv, err = shapeClimateVar(make([]float64, 2*2*3*4), []int{2, 2, 3, 4}, 2, 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, gv.expver)

	_, err = shapeClimateVar(flat, []int{4, 3, 2}, 2, 3, 4)
	assert.Error(t, err)
}

func TestCollapseExpver(t *testing.T) {
	nan := math.NaN()
	// One time step, 1x2 grid, two experiment versions with complementary
	// coverage.
	ds := &ClimateDataset{
		Lats:     []float64{0},
		Lons:     []float64{0, 1},
		Times:    []time.Time{time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC)},
		VarNames: []string{"t2m"},
		vars: map[string]*gridVar{
			"t2m": {expver: 2, values: []float64{
				5, nan, // version 1
				nan, 7, // version 5
			}},
		},
	}
	ds.CollapseExpver()

	v := ds.vars["t2m"]
	assert.Equal(t, 1, v.expver)
	assert.Equal(t, []float64{5, 7}, v.values)
	assert.Equal(t, 5.0, ds.At("t2m", 0, 0, 0))
	assert.Equal(t, 7.0, ds.At("t2m", 0, 0, 1))
}

func TestNearestTime(t *testing.T) {
	times := []time.Time{
		time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	ds := &ClimateDataset{Times: times}

	q := time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, ds.NearestTime(q))
	assert.Equal(t, 2, ds.NearestTime(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestShift(t *testing.T) {
	nan := math.NaN()
	ds := &ClimateDataset{
		VarNames: []string{"t2m"},
		vars:     map[string]*gridVar{"t2m": {expver: 1, values: []float64{273.15, nan}}},
	}
	ds.Shift("t2m", -273.15)

	assert.Equal(t, 0.0, ds.vars["t2m"].values[0])
	assert.True(t, math.IsNaN(ds.vars["t2m"].values[1]), "missing values stay missing")

	// Unknown variables are ignored.
	ds.Shift("tp", 1)
}
