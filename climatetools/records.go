package climatetools

// Required column names of the stake measurement table. These identity
// fields are read once and never rewritten by enrichment, which only
// appends feature columns.
const (
	ColLat       = "POINT_LAT"
	ColLon       = "POINT_LON"
	ColElevation = "POINT_ELEVATION"
	ColYear      = "YEAR"
	ColID        = "ID"
	ColGlacierID = "RGIId"
	ColBalance   = "POINT_BALANCE"
)

// Names of the feature columns appended after the monthly climate columns.
const (
	ColAltitudeClimate     = "ALTITUDE_CLIMATE"
	ColElevationDifference = "ELEVATION_DIFFERENCE"
)

// StakeRecord is one stake mass-balance observation for one hydrological
// year. Extra holds passthrough columns from the source table that the
// pipeline does not interpret.
type StakeRecord struct {
	ID        string
	GlacierID string
	Lat       float64
	Lon       float64
	Elevation float64
	Year      int // 0 when the source row had no year
	Balance   float64
	Extra     map[string]string
}

// HasYear reports whether the record carries a hydrological year. Records
// without one cannot be matched to a climate date range and are excluded
// from enrichment.
func (r StakeRecord) HasYear() bool {
	return r.Year != 0
}

// EnrichedTable is the output of the extraction pipeline: the original
// records with per-month climate features and terrain altitude columns
// appended. Feature values of a row align with FeatureColumns.
type EnrichedTable struct {
	// BaseColumns preserves the column order of the source table.
	BaseColumns []string
	// FeatureColumns is <var>_<month> for every climate variable over the
	// hydrological year (sep..aug), then ALTITUDE_CLIMATE and
	// ELEVATION_DIFFERENCE, plus any terrain columns appended later.
	FeatureColumns []string
	Rows           []EnrichedRow
}

// EnrichedRow pairs a source record with its feature vector.
type EnrichedRow struct {
	Record   StakeRecord
	Features []float64
}

// Columns returns the full output column order, base columns first.
func (t *EnrichedTable) Columns() []string {
	cols := make([]string, 0, len(t.BaseColumns)+len(t.FeatureColumns))
	cols = append(cols, t.BaseColumns...)
	cols = append(cols, t.FeatureColumns...)
	return cols
}

// FeatureIndex returns the position of a feature column, or -1.
func (t *EnrichedTable) FeatureIndex(name string) int {
	for i, col := range t.FeatureColumns {
		if col == name {
			return i
		}
	}
	return -1
}

// AppendFeature adds a new feature column with one value per row. Values
// must align with t.Rows.
func (t *EnrichedTable) AppendFeature(name string, values []float64) {
	t.FeatureColumns = append(t.FeatureColumns, name)
	for i := range t.Rows {
		t.Rows[i].Features = append(t.Rows[i].Features, values[i])
	}
}
