package cmd

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"glacier-tools/climatetools"
	"glacier-tools/stakeio"
	"glacier-tools/topotools"
)

var climatePath string
var geopotentialPath string
var demPath string
var convertUnits bool

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [stakes_csv] [output_path]",
	Short: "Enrich stake measurements with climate and terrain features",
	Long: `Enrich a stake measurement table with monthly climate features and
	grid terrain altitude.

	Each stake is matched by nearest neighbor against a gridded monthly
	climate dataset over its hydrological year (September through August)
	and against a geopotential dataset converted to altitude in meters.
	Stakes without a resolvable terrain altitude are dropped. With --dem,
	elevation, slope and aspect are additionally sampled from a DEM raster.

	Options:
		--climate:       Path to the monthly climate NetCDF dataset (required).
		--geopotential:  Path to the geopotential NetCDF dataset (required).
		--dem:           Optional DEM GeoTIFF for slope/aspect features.
		--convert-units: Convert temperature from Kelvin to Celsius.
		--vars:          Comma-separated climate variables to extract.
		--format:        Output format, csv or parquet.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevels()

		records, columns, err := stakeio.ReadStakeCSV(args[0])
		if err != nil {
			logrus.Fatal(err)
		}

		opts := climatetools.Options{
			ConvertUnits: convertUnits,
			Variables:    splitVars(viper.GetString("vars")),
		}

		format := viper.GetString("format")
		sink := func(table *climatetools.EnrichedTable) error {
			if demPath != "" {
				if err := topotools.AttachFeatures(table, demPath); err != nil {
					return err
				}
			}
			if format == "parquet" {
				return stakeio.WriteEnrichedParquet(table, args[1])
			}
			return stakeio.WriteEnrichedCSV(table, args[1])
		}

		if _, err := climatetools.Extract(records, columns, climatePath, geopotentialPath, opts, sink); err != nil {
			logrus.Fatal(err)
		}
	},
}

func splitVars(flag string) []string {
	if flag == "" {
		return nil
	}
	vars := strings.Split(flag, ",")
	for i := range vars {
		vars[i] = strings.TrimSpace(vars[i])
	}
	return vars
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVarP(&climatePath, "climate", "c", "", "Path to the monthly climate NetCDF dataset")
	if err := extractCmd.MarkFlagRequired("climate"); err != nil {
		logrus.Exit(1)
	}
	extractCmd.Flags().StringVarP(&geopotentialPath, "geopotential", "g", "", "Path to the geopotential NetCDF dataset")
	if err := extractCmd.MarkFlagRequired("geopotential"); err != nil {
		logrus.Exit(1)
	}
	extractCmd.Flags().StringVar(&demPath, "dem", "", "Optional DEM raster for slope/aspect features")
	extractCmd.Flags().BoolVarP(&convertUnits, "convert-units", "u", false, "Convert temperature from Kelvin to Celsius")

	extractCmd.Flags().String("vars", "", "Comma-separated climate variables to extract (default t2m,tp)")
	if err := viper.BindPFlag("vars", extractCmd.Flags().Lookup("vars")); err != nil {
		logrus.Exit(1)
	}
	extractCmd.Flags().StringP("format", "f", "csv", "Output format: csv or parquet")
	if err := viper.BindPFlag("format", extractCmd.Flags().Lookup("format")); err != nil {
		logrus.Exit(1)
	}
}
