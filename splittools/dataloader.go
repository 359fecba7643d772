// Package splittools partitions an enriched stake measurement table into
// train/test and cross-validation folds without leaking a measurement
// history, or optionally a whole glacier, across partition boundaries.
package splittools

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"

	"glacier-tools/climatetools"
)

// FoldType selects the cross-validation grouping strategy.
type FoldType string

const (
	// FoldRandom is a plain seeded shuffled k-fold with no grouping
	// guarantee. Any unrecognized fold type falls back to it.
	FoldRandom FoldType = "random"
	// FoldGroupRGI groups folds by glacier ID: no glacier appears on both
	// sides of a fold.
	FoldGroupRGI FoldType = "group-rgi"
	// FoldGroupMeasID groups folds by measurement ID, the same guarantee
	// at the per-measurement-history level.
	FoldGroupMeasID FoldType = "group-meas-id"
)

// ErrNotSplit is returned when cross-validation folds are requested before
// a train/test split exists.
var ErrNotSplit = errors.New("train/test split has not been made yet")

// ErrGroupOverlap reports a measurement ID present on both sides of a
// split. It indicates a grouping bug, never valid data.
var ErrGroupOverlap = errors.New("measurement groups overlap between train and test")

// Fold is one cross-validation split. Indices are positions within the
// training subset, not within the full table.
type Fold struct {
	Train []int
	Val   []int
}

// DataLoader owns one enriched table by value and produces index
// partitions over it. It never mutates the table. The loader starts
// unsplit; SplitTrainTest transitions it, and only then can folds be made.
type DataLoader struct {
	table    *climatetools.EnrichedTable
	split    bool
	trainIdx []int
	testIdx  []int
}

// New wraps an enriched table for splitting.
func New(table *climatetools.EnrichedTable) *DataLoader {
	return &DataLoader{table: table}
}

// Features returns the feature matrix X and target y for downstream model
// training. X is stake position and elevation plus every enriched feature
// column; the year, target, glacier ID and measurement ID stay out of it.
func (dl *DataLoader) Features() ([][]float64, []float64) {
	x := make([][]float64, len(dl.table.Rows))
	y := make([]float64, len(dl.table.Rows))
	for i, row := range dl.table.Rows {
		vec := make([]float64, 0, 3+len(row.Features))
		vec = append(vec, row.Record.Lat, row.Record.Lon, row.Record.Elevation)
		vec = append(vec, row.Features...)
		x[i] = vec
		y[i] = row.Record.Balance
	}
	return x, y
}

// SplitTrainTest makes one grouped random train/test split keyed by
// measurement ID: unique IDs are partitioned according to testSize and
// every row follows its ID, so a stake's measurement history is never
// divided. The split is reproducible given the seed. The returned indices
// are positions in the table and are also stored for CVSplits.
func (dl *DataLoader) SplitTrainTest(testSize float64, shuffle bool, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	groups := make([]string, 0)
	seen := make(map[string]bool)
	for _, row := range dl.table.Rows {
		if !seen[row.Record.ID] {
			seen[row.Record.ID] = true
			groups = append(groups, row.Record.ID)
		}
	}
	if len(groups) < 2 {
		return nil, nil, fmt.Errorf("need at least 2 measurement groups to split, got %d", len(groups))
	}

	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(len(groups), func(i, j int) {
			groups[i], groups[j] = groups[j], groups[i]
		})
	}
	nTest := int(math.Ceil(testSize * float64(len(groups))))
	if nTest >= len(groups) {
		nTest = len(groups) - 1
	}
	testGroups := make(map[string]bool, nTest)
	for _, g := range groups[:nTest] {
		testGroups[g] = true
	}

	train = make([]int, 0, len(dl.table.Rows))
	test = make([]int, 0, len(dl.table.Rows))
	for i, row := range dl.table.Rows {
		if testGroups[row.Record.ID] {
			test = append(test, i)
		} else {
			train = append(train, i)
		}
	}

	if err := dl.checkDisjoint(train, test); err != nil {
		return nil, nil, err
	}

	dl.trainIdx = train
	dl.testIdx = test
	dl.split = true
	logrus.Debugf("Split %d rows into %d train and %d test across %d groups",
		len(dl.table.Rows), len(train), len(test), len(groups))
	return train, test, nil
}

// TrainTestIndices returns the stored split, or ErrNotSplit.
func (dl *DataLoader) TrainTestIndices() ([]int, []int, error) {
	if !dl.split {
		return nil, nil, ErrNotSplit
	}
	return dl.trainIdx, dl.testIdx, nil
}

// checkDisjoint asserts that no measurement ID landed on both sides.
func (dl *DataLoader) checkDisjoint(train, test []int) error {
	trainIDs := make(map[string]bool, len(train))
	for _, i := range train {
		trainIDs[dl.table.Rows[i].Record.ID] = true
	}
	for _, i := range test {
		if id := dl.table.Rows[i].Record.ID; trainIDs[id] {
			return fmt.Errorf("measurement %s: %w", id, ErrGroupOverlap)
		}
	}
	return nil
}

// CVSplits produces nFolds cross-validation folds over the previously
// selected training subset. Fold indices are positions within that subset;
// every training row lands in exactly one fold's validation side. Requires
// a prior SplitTrainTest, otherwise ErrNotSplit.
func (dl *DataLoader) CVSplits(nFolds int, foldType FoldType, seed int64) ([]Fold, error) {
	if !dl.split {
		return nil, ErrNotSplit
	}
	if nFolds < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", nFolds)
	}

	switch foldType {
	case FoldGroupRGI:
		return GroupKFold(nFolds, dl.trainGroups(func(r climatetools.StakeRecord) string { return r.GlacierID }))
	case FoldGroupMeasID:
		return GroupKFold(nFolds, dl.trainGroups(func(r climatetools.StakeRecord) string { return r.ID }))
	default:
		if foldType != FoldRandom {
			logrus.Warnf("Fold type %q not recognized, using random k-fold", foldType)
		}
		return KFold(nFolds, len(dl.trainIdx), seed)
	}
}

// trainGroups extracts a group key per training-subset row.
func (dl *DataLoader) trainGroups(key func(climatetools.StakeRecord) string) []string {
	groups := make([]string, len(dl.trainIdx))
	for i, idx := range dl.trainIdx {
		groups[i] = key(dl.table.Rows[idx].Record)
	}
	return groups
}
