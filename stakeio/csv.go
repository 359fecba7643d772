// Package stakeio reads stake measurement tables and persists enriched
// tables and split indices as flat files.
package stakeio

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"glacier-tools/climatetools"
)

var requiredColumns = []string{
	climatetools.ColID,
	climatetools.ColGlacierID,
	climatetools.ColLat,
	climatetools.ColLon,
	climatetools.ColElevation,
	climatetools.ColYear,
	climatetools.ColBalance,
}

// ReadStakeCSV reads a stake measurement table. The required identity and
// measurement columns must all be present; any other column passes through
// untouched. A blank YEAR is allowed and marks the record as yearless.
// Returns the records and the source column order.
func ReadStakeCSV(path string) ([]climatetools.StakeRecord, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[col] = i
	}
	for _, col := range requiredColumns {
		if _, ok := colIdx[col]; !ok {
			return nil, nil, fmt.Errorf("required column %s missing from %s", col, path)
		}
	}

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	records := make([]climatetools.StakeRecord, 0, len(rows))
	for n, row := range rows {
		rec, err := parseRecord(header, colIdx, row)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", n+2, err)
		}
		records = append(records, rec)
	}
	logrus.Infof("Read %d stake records from %s", len(records), path)
	return records, header, nil
}

func parseRecord(header []string, colIdx map[string]int, row []string) (climatetools.StakeRecord, error) {
	rec := climatetools.StakeRecord{
		ID:        row[colIdx[climatetools.ColID]],
		GlacierID: row[colIdx[climatetools.ColGlacierID]],
		Extra:     make(map[string]string),
	}
	var err error
	if rec.Lat, err = parseFloat(row[colIdx[climatetools.ColLat]]); err != nil {
		return rec, fmt.Errorf("bad %s: %w", climatetools.ColLat, err)
	}
	if rec.Lon, err = parseFloat(row[colIdx[climatetools.ColLon]]); err != nil {
		return rec, fmt.Errorf("bad %s: %w", climatetools.ColLon, err)
	}
	if rec.Elevation, err = parseFloat(row[colIdx[climatetools.ColElevation]]); err != nil {
		return rec, fmt.Errorf("bad %s: %w", climatetools.ColElevation, err)
	}
	if rec.Balance, err = parseFloat(row[colIdx[climatetools.ColBalance]]); err != nil {
		return rec, fmt.Errorf("bad %s: %w", climatetools.ColBalance, err)
	}
	if rec.Year, err = parseYear(row[colIdx[climatetools.ColYear]]); err != nil {
		return rec, fmt.Errorf("bad %s: %w", climatetools.ColYear, err)
	}

	required := make(map[string]bool, len(requiredColumns))
	for _, col := range requiredColumns {
		required[col] = true
	}
	for i, col := range header {
		if !required[col] {
			rec.Extra[col] = row[i]
		}
	}
	return rec, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseYear accepts integer years, float-formatted years ("2020.0") and
// blanks, the latter meaning no year.
func parseYear(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) {
		return 0, nil
	}
	return int(f), nil
}

// WriteEnrichedCSV persists the enriched table as delimited text with a
// header row and one line per record.
func WriteEnrichedCSV(table *climatetools.EnrichedTable, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(table.Columns()); err != nil {
		return err
	}
	for i, row := range table.Rows {
		if i > 0 && i%10000 == 0 {
			logrus.Infof("Writing record %d", i)
		}
		if err := w.Write(rowValues(table, row)); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func rowValues(table *climatetools.EnrichedTable, row climatetools.EnrichedRow) []string {
	values := make([]string, 0, len(table.BaseColumns)+len(row.Features))
	for _, col := range table.BaseColumns {
		values = append(values, baseValue(row.Record, col))
	}
	for _, v := range row.Features {
		values = append(values, formatFloat(v))
	}
	return values
}

func baseValue(rec climatetools.StakeRecord, col string) string {
	switch col {
	case climatetools.ColID:
		return rec.ID
	case climatetools.ColGlacierID:
		return rec.GlacierID
	case climatetools.ColLat:
		return formatFloat(rec.Lat)
	case climatetools.ColLon:
		return formatFloat(rec.Lon)
	case climatetools.ColElevation:
		return formatFloat(rec.Elevation)
	case climatetools.ColBalance:
		return formatFloat(rec.Balance)
	case climatetools.ColYear:
		if !rec.HasYear() {
			return ""
		}
		return strconv.Itoa(rec.Year)
	default:
		return rec.Extra[col]
	}
}

// formatFloat renders NaN as an empty cell, matching how missing values
// come back in on read.
func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ReadEnrichedCSV reads a previously written enriched table back into
// memory. Non-required columns whose values all parse as numbers (or are
// blank) become feature columns; anything else is a passthrough column.
func ReadEnrichedCSV(path string) (*climatetools.EnrichedTable, error) {
	records, header, err := ReadStakeCSV(path)
	if err != nil {
		return nil, err
	}

	required := make(map[string]bool, len(requiredColumns))
	for _, col := range requiredColumns {
		required[col] = true
	}
	var baseCols, featureCols []string
	for _, col := range header {
		if required[col] {
			baseCols = append(baseCols, col)
			continue
		}
		if numericColumn(records, col) {
			featureCols = append(featureCols, col)
		} else {
			baseCols = append(baseCols, col)
		}
	}

	table := &climatetools.EnrichedTable{BaseColumns: baseCols, FeatureColumns: featureCols}
	for _, rec := range records {
		features := make([]float64, len(featureCols))
		for i, col := range featureCols {
			// numericColumn already vetted these values.
			features[i], _ = parseFloat(rec.Extra[col])
			delete(rec.Extra, col)
		}
		table.Rows = append(table.Rows, climatetools.EnrichedRow{Record: rec, Features: features})
	}
	return table, nil
}

func numericColumn(records []climatetools.StakeRecord, col string) bool {
	for _, rec := range records {
		if _, err := parseFloat(rec.Extra[col]); err != nil {
			return false
		}
	}
	return true
}

// WriteIndexCSV persists one index partition (train, test or a fold side)
// as a single-column file.
func WriteIndexCSV(indices []int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	if _, err := f.WriteString("index\n"); err != nil {
		return err
	}
	for _, idx := range indices {
		if _, err := f.WriteString(strconv.Itoa(idx) + "\n"); err != nil {
			return err
		}
	}
	return f.Sync()
}
