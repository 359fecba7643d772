package splittools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKFold(t *testing.T) {
	folds, err := KFold(3, 10, 42)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assertFoldCoverage(t, folds, 10)

	// 10 rows over 3 folds: the first fold gets the extra row.
	assert.Len(t, folds[0].Val, 4)
	assert.Len(t, folds[1].Val, 3)
	assert.Len(t, folds[2].Val, 3)
}

func TestKFoldReproducible(t *testing.T) {
	folds1, err := KFold(4, 20, 7)
	require.NoError(t, err)
	folds2, err := KFold(4, 20, 7)
	require.NoError(t, err)
	assert.Equal(t, folds1, folds2)
}

func TestKFoldTooFewRows(t *testing.T) {
	_, err := KFold(5, 3, 1)
	assert.Error(t, err)
}

func TestGroupKFold(t *testing.T) {
	groups := []string{"a", "a", "a", "b", "b", "c", "c", "d"}
	folds, err := GroupKFold(2, groups)
	require.NoError(t, err)
	require.Len(t, folds, 2)
	assertFoldCoverage(t, folds, len(groups))

	for k, fold := range folds {
		valGroups := make(map[string]bool)
		for _, i := range fold.Val {
			valGroups[groups[i]] = true
		}
		for _, i := range fold.Train {
			assert.False(t, valGroups[groups[i]], "fold %d: group %s on both sides", k, groups[i])
		}
	}
}

func TestGroupKFoldBalances(t *testing.T) {
	// Largest-first assignment keeps fold sizes even: 4+1 vs 3+2.
	groups := []string{"a", "a", "a", "a", "b", "b", "b", "c", "c", "d"}
	folds, err := GroupKFold(2, groups)
	require.NoError(t, err)
	assert.Len(t, folds[0].Val, 5)
	assert.Len(t, folds[1].Val, 5)
}

func TestGroupKFoldTooFewGroups(t *testing.T) {
	_, err := GroupKFold(3, []string{"a", "a", "b"})
	assert.Error(t, err)
}
