package climatetools

import (
	"math"
	"sort"
)

const (
	// Spherical earth radius of the grib1 convention, used when converting
	// geopotential to geometric height.
	grib1EarthRadius = 6367.47e4 // m
	standardGravity  = 9.80665   // m/s^2
)

// TerrainGrid is a 2D field on a latitude/longitude grid, Values indexed
// [lat][lon]. It holds raw geopotential as loaded, or derived altitude in
// meters after GeopotentialHeight.
type TerrainGrid struct {
	Lats   []float64
	Lons   []float64
	Values [][]float64
}

// NormalizeLongitudes maps the longitude axis into [-180, 180) and re-sorts
// the grid ascending by longitude. Normalizing an already-normalized grid
// is a fixed point.
func (g *TerrainGrid) NormalizeLongitudes() {
	type lonCol struct {
		lon float64
		idx int
	}
	cols := make([]lonCol, len(g.Lons))
	for i, lon := range g.Lons {
		cols[i] = lonCol{normalizeLon(lon), i}
	}
	sort.SliceStable(cols, func(a, b int) bool { return cols[a].lon < cols[b].lon })

	lons := make([]float64, len(cols))
	for i, c := range cols {
		lons[i] = c.lon
	}
	values := make([][]float64, len(g.Lats))
	for r := range g.Values {
		row := make([]float64, len(cols))
		for i, c := range cols {
			row[i] = g.Values[r][c.idx]
		}
		values[r] = row
	}
	g.Lons = lons
	g.Values = values
}

// normalizeLon wraps a longitude in degrees into [-180, 180).
func normalizeLon(lon float64) float64 {
	l := math.Mod(lon+180, 360)
	if l < 0 {
		l += 360
	}
	return l - 180
}

// CropTo restricts the grid to the given coordinate axes by nearest-neighbor
// selection, returning a new grid on exactly those axes.
func (g *TerrainGrid) CropTo(lats, lons []float64) *TerrainGrid {
	latIdx := make([]int, len(lats))
	for i, lat := range lats {
		latIdx[i] = nearestIndex(g.Lats, lat)
	}
	lonIdx := make([]int, len(lons))
	for j, lon := range lons {
		lonIdx[j] = nearestIndex(g.Lons, lon)
	}

	values := make([][]float64, len(lats))
	for i := range lats {
		row := make([]float64, len(lons))
		for j := range lons {
			row[j] = g.Values[latIdx[i]][lonIdx[j]]
		}
		values[i] = row
	}
	return &TerrainGrid{
		Lats:   append([]float64(nil), lats...),
		Lons:   append([]float64(nil), lons...),
		Values: values,
	}
}

// GeopotentialHeight derives geometric altitude in meters from raw
// geopotential z: h = z/g, altitude = R*h/(R-h). The R term corrects the
// standard formula for the spherical grib1 approximation.
func (g *TerrainGrid) GeopotentialHeight() *TerrainGrid {
	values := make([][]float64, len(g.Lats))
	for i, row := range g.Values {
		out := make([]float64, len(row))
		for j, z := range row {
			h := z / standardGravity
			out[j] = grib1EarthRadius * h / (grib1EarthRadius - h)
		}
		values[i] = out
	}
	return &TerrainGrid{Lats: g.Lats, Lons: g.Lons, Values: values}
}

// Sample returns the value at the grid cell nearest to (lat, lon).
func (g *TerrainGrid) Sample(lat, lon float64) float64 {
	return g.Values[nearestIndex(g.Lats, lat)][nearestIndex(g.Lons, lon)]
}

// nearestIndex returns the index of the coordinate closest to q. Ties break
// toward the lower index, so matching is deterministic given the grid.
func nearestIndex(coords []float64, q float64) int {
	best := 0
	bestDist := math.Abs(coords[0] - q)
	for i := 1; i < len(coords); i++ {
		d := math.Abs(coords[i] - q)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
