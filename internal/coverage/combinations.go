package coverage

// Combinations enumerates every k-element subset of items in lexicographic
// order over the input ordering. Task indices derived from this order are
// stable across runs, which keeps artifact names and diagnostics
// reproducible.
func Combinations(items []string, k int) [][]string {
	n := len(items)
	if k <= 0 || k > n {
		return nil
	}

	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}

	out := make([][]string, 0, binomial(n, k))
	for {
		subset := make([]string, k)
		for i, j := range idx {
			subset[i] = items[j]
		}
		out = append(out, subset)

		// Advance to the next subset: find the rightmost index that can
		// move, bump it, and reset everything after it.
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// binomial returns C(n, k).
func binomial(n, k int) int {
	if k < 0 || k > n {
		return 0
	}
	if k > n-k {
		k = n - k
	}
	result := 1
	for i := 1; i <= k; i++ {
		result = result * (n - k + i) / i
	}
	return result
}
