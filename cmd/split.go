package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"glacier-tools/splittools"
	"glacier-tools/stakeio"
)

var testSize float64
var noShuffle bool
var nFolds int
var seed int64

// splitCmd represents the split command
var splitCmd = &cobra.Command{
	Use:   "split [enriched_csv] [output_dir]",
	Short: "Partition an enriched table into train/test and CV folds",
	Long: `Partition an enriched stake table into a grouped train/test split
	and k-fold cross-validation folds of the training subset.

	Rows sharing a measurement ID always land on the same side of the
	train/test split. Fold grouping is selectable:

		random         plain seeded shuffled k-fold
		group-rgi      no glacier on both sides of a fold
		group-meas-id  no measurement history on both sides of a fold

	Writes train.csv, test.csv and fold_<k>_{train,val}.csv index files
	into the output directory.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevels()

		table, err := stakeio.ReadEnrichedCSV(args[0])
		if err != nil {
			logrus.Fatal(err)
		}
		outDir := args[1]
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			logrus.Fatal(err)
		}

		loader := splittools.New(table)
		train, test, err := loader.SplitTrainTest(testSize, !noShuffle, seed)
		if err != nil {
			logrus.Fatal(err)
		}
		if err := stakeio.WriteIndexCSV(train, filepath.Join(outDir, "train.csv")); err != nil {
			logrus.Fatal(err)
		}
		if err := stakeio.WriteIndexCSV(test, filepath.Join(outDir, "test.csv")); err != nil {
			logrus.Fatal(err)
		}

		foldType := splittools.FoldType(viper.GetString("foldType"))
		folds, err := loader.CVSplits(nFolds, foldType, seed)
		if err != nil {
			logrus.Fatal(err)
		}
		// Fold indices address the training subset; the written files use
		// table row indices like train.csv and test.csv do.
		for k, fold := range folds {
			trainPath := filepath.Join(outDir, fmt.Sprintf("fold_%d_train.csv", k))
			if err := stakeio.WriteIndexCSV(tableIndices(fold.Train, train), trainPath); err != nil {
				logrus.Fatal(err)
			}
			valPath := filepath.Join(outDir, fmt.Sprintf("fold_%d_val.csv", k))
			if err := stakeio.WriteIndexCSV(tableIndices(fold.Val, train), valPath); err != nil {
				logrus.Fatal(err)
			}
		}
		logrus.Infof("Wrote train/test and %d folds to %s", len(folds), outDir)
	},
}

func tableIndices(positions, train []int) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = train[p]
	}
	return out
}

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().Float64VarP(&testSize, "test-size", "t", 0.3, "Fraction of measurement groups in the test set")
	splitCmd.Flags().BoolVar(&noShuffle, "no-shuffle", false, "Split groups in order of appearance instead of shuffling")
	splitCmd.Flags().IntVarP(&nFolds, "folds", "k", 5, "Number of cross-validation folds")
	splitCmd.Flags().Int64VarP(&seed, "seed", "s", 42, "Seed for the split and fold shuffles")

	splitCmd.Flags().String("fold-type", "random", "Fold grouping: random, group-rgi or group-meas-id")
	if err := viper.BindPFlag("foldType", splitCmd.Flags().Lookup("fold-type")); err != nil {
		logrus.Exit(1)
	}
}
