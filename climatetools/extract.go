package climatetools

import (
	"fmt"
	"math"

	"github.com/golang/geo/s2"
	"github.com/sirupsen/logrus"
)

const EarthRadius = 6371000

// Options control the extraction pipeline.
type Options struct {
	// ConvertUnits converts the temperature variable from Kelvin to
	// Celsius after loading.
	ConvertUnits bool
	// TemperatureVar is the climate variable the unit conversion applies
	// to. Defaults to "t2m".
	TemperatureVar string
	// Variables are the climate variables to extract, in feature-column
	// order. Defaults to DefaultVariables.
	Variables []string
}

// Sink persists the enriched table. Extract calls it once before
// returning, so a failed write fails the extraction.
type Sink func(*EnrichedTable) error

// Extract enriches stake measurement records with monthly climate features
// and grid terrain altitude from two gridded NetCDF datasets.
//
// For every record the climate dataset is sampled by nearest neighbor at
// (lat, lon) for each of the twelve month-end timestamps of the record's
// hydrological year, producing one <var>_<month> column per variable and
// month in hydrological order (sep..aug). The terrain geopotential is
// normalized to [-180,180) longitudes, cropped to the climate grid,
// converted to geometric altitude and sampled per record as
// ALTITUDE_CLIMATE; ELEVATION_DIFFERENCE is altitude minus the stake's
// surface elevation.
//
// Records without a year are excluded before sampling. Records whose
// terrain altitude resolves to a missing value are dropped. Both are
// filtering rules, not errors.
func Extract(records []StakeRecord, baseColumns []string, climatePath, terrainPath string, opts Options, sink Sink) (*EnrichedTable, error) {
	climate, err := OpenClimate(climatePath, opts.Variables)
	if err != nil {
		return nil, err
	}
	terrain, err := OpenTerrain(terrainPath)
	if err != nil {
		return nil, err
	}

	table := enrich(records, baseColumns, climate, terrain, opts)

	if sink != nil {
		if err := sink(table); err != nil {
			return nil, fmt.Errorf("failed to persist enriched table: %w", err)
		}
	}
	return table, nil
}

// enrich runs the pipeline over loaded datasets.
func enrich(records []StakeRecord, baseColumns []string, climate *ClimateDataset, terrain *TerrainGrid, opts Options) *EnrichedTable {
	if opts.ConvertUnits {
		tempVar := opts.TemperatureVar
		if tempVar == "" {
			tempVar = "t2m"
		}
		climate.Shift(tempVar, -273.15)
		convertPrecipitation(climate)
	}

	terrain.NormalizeLongitudes()
	altitude := terrain.CropTo(climate.Lats, climate.Lons).GeopotentialHeight()
	climate.CollapseExpver()

	table := &EnrichedTable{
		BaseColumns:    baseColumns,
		FeatureColumns: featureColumns(climate.VarNames),
	}

	noYear := 0
	noAltitude := 0
	warnDist := matchWarnDistance(climate.Lats, climate.Lons)
	for _, rec := range records {
		if !rec.HasYear() {
			noYear++
			continue
		}

		latIdx := nearestIndex(climate.Lats, rec.Lat)
		lonIdx := nearestIndex(climate.Lons, rec.Lon)
		if d := gridDistance(rec.Lat, rec.Lon, climate.Lats[latIdx], climate.Lons[lonIdx]); d > warnDist {
			logrus.Warnf("Stake %s is %.0f m from its nearest grid cell center", rec.ID, d)
		}

		features := make([]float64, 0, len(table.FeatureColumns))
		dates := HydrologicalRange(rec.Year)
		for _, name := range climate.VarNames {
			for _, date := range dates {
				features = append(features, climate.At(name, climate.NearestTime(date), latIdx, lonIdx))
			}
		}

		alt := altitude.Sample(rec.Lat, rec.Lon)
		if math.IsNaN(alt) {
			noAltitude++
			continue
		}
		features = append(features, alt, alt-rec.Elevation)

		table.Rows = append(table.Rows, EnrichedRow{Record: rec, Features: features})
	}

	if noYear > 0 {
		logrus.Infof("Excluded %d records without a hydrological year", noYear)
	}
	if noAltitude > 0 {
		logrus.Infof("Dropped %d records without a resolvable terrain altitude", noAltitude)
	}
	logrus.Infof("Enriched %d of %d records with %d feature columns",
		len(table.Rows), len(records), len(table.FeatureColumns))
	return table
}

// featureColumns builds the wide column names: for each variable twelve
// <var>_<month> columns in hydrological order, then the altitude columns.
func featureColumns(varNames []string) []string {
	cols := make([]string, 0, len(varNames)*12+2)
	for _, name := range varNames {
		for _, month := range hydroMonths {
			cols = append(cols, fmt.Sprintf("%s_%s", name, month))
		}
	}
	return append(cols, ColAltitudeClimate, ColElevationDifference)
}

// convertPrecipitation would convert total precipitation to meters of
// water equivalent. ERA5-Land monthly precipitation already comes in
// meters, so there is nothing to do; this stays a named no-op so the unit
// handling has one obvious home.
func convertPrecipitation(_ *ClimateDataset) {}

// gridDistance is the great-circle distance in meters between a stake and
// a grid cell center.
func gridDistance(aLat, aLon, bLat, bLon float64) float64 {
	a := s2.LatLngFromDegrees(aLat, aLon)
	b := s2.LatLngFromDegrees(bLat, bLon)
	return a.Distance(b).Radians() * EarthRadius
}

// matchWarnDistance is the stake-to-cell distance above which a match is
// suspicious: one and a half diagonal grid steps.
func matchWarnDistance(lats, lons []float64) float64 {
	step := math.Max(axisStep(lats), axisStep(lons))
	return 1.5 * math.Sqrt2 * step * (math.Pi / 180) * EarthRadius
}

func axisStep(coords []float64) float64 {
	if len(coords) < 2 {
		return 1
	}
	return math.Abs(coords[1] - coords[0])
}
