package splittools

import (
	"fmt"
	"math/rand"
	"sort"
)

// KFold splits n row positions into k folds after a seeded shuffle. The
// first n%k folds get one extra validation row, so every row validates
// exactly once across the folds.
func KFold(k, n int, seed int64) ([]Fold, error) {
	if n < k {
		return nil, fmt.Errorf("cannot make %d folds from %d rows", k, n)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	folds := make([]Fold, 0, k)
	start := 0
	for i := 0; i < k; i++ {
		size := n / k
		if i < n%k {
			size++
		}
		inVal := make(map[int]bool, size)
		for _, idx := range perm[start : start+size] {
			inVal[idx] = true
		}
		folds = append(folds, buildFold(n, func(idx int) bool { return inVal[idx] }))
		start += size
	}
	return folds, nil
}

// GroupKFold assigns whole groups to k folds so that no group key appears
// on both sides of any fold. Assignment is deterministic: groups ordered
// by row count descending (first appearance breaking ties) each go to the
// currently smallest fold.
func GroupKFold(k int, groups []string) ([]Fold, error) {
	order := make([]string, 0)
	counts := make(map[string]int)
	for _, g := range groups {
		if counts[g] == 0 {
			order = append(order, g)
		}
		counts[g]++
	}
	if len(order) < k {
		return nil, fmt.Errorf("cannot make %d folds from %d groups", k, len(order))
	}

	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })

	load := make([]int, k)
	foldOf := make(map[string]int, len(order))
	for _, g := range order {
		smallest := 0
		for i := 1; i < k; i++ {
			if load[i] < load[smallest] {
				smallest = i
			}
		}
		foldOf[g] = smallest
		load[smallest] += counts[g]
	}

	folds := make([]Fold, 0, k)
	for i := 0; i < k; i++ {
		folds = append(folds, buildFold(len(groups), func(idx int) bool { return foldOf[groups[idx]] == i }))
	}
	return folds, nil
}

// buildFold partitions positions [0, n) by the validation predicate,
// keeping both sides in ascending order.
func buildFold(n int, inVal func(int) bool) Fold {
	fold := Fold{}
	for idx := 0; idx < n; idx++ {
		if inVal(idx) {
			fold.Val = append(fold.Val, idx)
		} else {
			fold.Train = append(fold.Train, idx)
		}
	}
	return fold
}
