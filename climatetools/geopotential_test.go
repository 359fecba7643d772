package climatetools

import (
	"math"
	"reflect"
	"testing"
)

func TestNormalizeLongitudes(t *testing.T) {
	grid := &TerrainGrid{
		Lats: []float64{10, 20},
		Lons: []float64{0, 90, 180, 270},
		Values: [][]float64{
			{1, 2, 3, 4},
			{5, 6, 7, 8},
		},
	}
	grid.NormalizeLongitudes()

	wantLons := []float64{-180, -90, 0, 90}
	if !reflect.DeepEqual(grid.Lons, wantLons) {
		t.Errorf("longitudes are %v, want %v", grid.Lons, wantLons)
	}
	wantValues := [][]float64{
		{3, 4, 1, 2},
		{7, 8, 5, 6},
	}
	if !reflect.DeepEqual(grid.Values, wantValues) {
		t.Errorf("values are %v, want %v", grid.Values, wantValues)
	}
}

func TestNormalizeLongitudesIdempotent(t *testing.T) {
	grid := &TerrainGrid{
		Lats:   []float64{0},
		Lons:   []float64{-170.5, -10, 0, 10, 170.5},
		Values: [][]float64{{1, 2, 3, 4, 5}},
	}
	grid.NormalizeLongitudes()
	lons := append([]float64(nil), grid.Lons...)
	values := append([]float64(nil), grid.Values[0]...)

	grid.NormalizeLongitudes()
	if !reflect.DeepEqual(grid.Lons, lons) {
		t.Errorf("second normalization changed longitudes: %v != %v", grid.Lons, lons)
	}
	if !reflect.DeepEqual(grid.Values[0], values) {
		t.Errorf("second normalization changed values: %v != %v", grid.Values[0], values)
	}
}

func TestGeopotentialHeight(t *testing.T) {
	grid := &TerrainGrid{
		Lats:   []float64{0},
		Lons:   []float64{0, 1},
		Values: [][]float64{{0, standardGravity * 1000}},
	}
	alt := grid.GeopotentialHeight()

	if got := alt.Values[0][0]; got != 0 {
		t.Errorf("altitude for z=0 is %v, want 0", got)
	}
	// h = 1000, altitude = R*h/(R-h)
	want := grib1EarthRadius * 1000 / (grib1EarthRadius - 1000)
	if got := alt.Values[0][1]; math.Abs(got-want) > 1e-9 {
		t.Errorf("altitude for h=1000 is %v, want %v", got, want)
	}
	if want <= 1000 {
		t.Errorf("spherical correction should push altitude above h, got %v", want)
	}
}

func TestCropTo(t *testing.T) {
	grid := &TerrainGrid{
		Lats: []float64{0, 1, 2},
		Lons: []float64{10, 11, 12},
		Values: [][]float64{
			{1, 2, 3},
			{4, 5, 6},
			{7, 8, 9},
		},
	}
	cropped := grid.CropTo([]float64{0.9, 2.2}, []float64{11.1})

	want := [][]float64{{5}, {8}}
	if !reflect.DeepEqual(cropped.Values, want) {
		t.Errorf("cropped values are %v, want %v", cropped.Values, want)
	}
}

func TestNearestIndexTies(t *testing.T) {
	coords := []float64{0, 1, 2}
	// Exactly between 0 and 1: the lower index wins.
	if got := nearestIndex(coords, 0.5); got != 0 {
		t.Errorf("nearestIndex(0.5) = %d, want 0", got)
	}
	if got := nearestIndex(coords, 1.6); got != 2 {
		t.Errorf("nearestIndex(1.6) = %d, want 2", got)
	}
}
