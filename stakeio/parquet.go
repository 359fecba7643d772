package stakeio

import (
	"math"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/sirupsen/logrus"

	"glacier-tools/climatetools"
)

// WriteEnrichedParquet persists the enriched table as a snappy-compressed
// parquet file. The schema is assembled at runtime because the feature
// columns depend on which climate variables were extracted.
func WriteEnrichedParquet(table *climatetools.EnrichedTable, path string) error {
	output, err := os.Create(path)
	if err != nil {
		return err
	}

	fields := parquet.Group{}
	for _, col := range table.BaseColumns {
		switch col {
		case climatetools.ColLat, climatetools.ColLon, climatetools.ColElevation, climatetools.ColBalance:
			fields[col] = parquet.Leaf(parquet.DoubleType)
		case climatetools.ColYear:
			fields[col] = parquet.Int(64)
		default:
			fields[col] = parquet.String()
		}
	}
	for _, col := range table.FeatureColumns {
		fields[col] = parquet.Optional(parquet.Leaf(parquet.DoubleType))
	}
	schema := parquet.NewSchema("enriched_stakes", fields)

	writer := parquet.NewGenericWriter[map[string]any](output, schema, parquet.Compression(&parquet.Snappy))
	defer func() {
		if err := writer.Close(); err != nil {
			logrus.Error(err)
		}
		if err := output.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	rows := make([]map[string]any, 0, len(table.Rows))
	for _, row := range table.Rows {
		out := make(map[string]any, len(table.BaseColumns)+len(row.Features))
		for _, col := range table.BaseColumns {
			switch col {
			case climatetools.ColLat:
				out[col] = row.Record.Lat
			case climatetools.ColLon:
				out[col] = row.Record.Lon
			case climatetools.ColElevation:
				out[col] = row.Record.Elevation
			case climatetools.ColBalance:
				out[col] = row.Record.Balance
			case climatetools.ColYear:
				out[col] = int64(row.Record.Year)
			case climatetools.ColID:
				out[col] = row.Record.ID
			case climatetools.ColGlacierID:
				out[col] = row.Record.GlacierID
			default:
				out[col] = row.Record.Extra[col]
			}
		}
		for i, col := range table.FeatureColumns {
			if math.IsNaN(row.Features[i]) {
				continue // optional column, left null
			}
			out[col] = row.Features[i]
		}
		rows = append(rows, out)
	}

	if _, err := writer.Write(rows); err != nil {
		return err
	}
	return nil
}
