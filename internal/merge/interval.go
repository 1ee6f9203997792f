package merge

// estimateInterval returns the most frequent difference between consecutive
// epochs among the first min(len(epochs), k) values. When several differences
// share the highest count, the one that reached it first wins.
func estimateInterval(name string, epochs []int64, k int) (int64, error) {
	if len(epochs) < 2 {
		return 0, newError(ErrSeriesLength, name, -1, "need at least 2 records, got %d", len(epochs))
	}
	limit := min(len(epochs), k)

	freq := make(map[int64]int, limit)
	var mode int64
	best := 0
	for i := 1; i < limit; i++ {
		d := epochs[i] - epochs[i-1]
		freq[d]++
		if freq[d] > best {
			best = freq[d]
			mode = d
		}
	}
	if mode < 1 {
		return 0, newError(ErrIntervalInference, name, -1, "no positive spacing in the first %d records", limit)
	}
	return mode, nil
}

// selectBase returns the index of the sequence with the smallest interval.
// Ties keep the earliest sequence.
func selectBase(intervals []int64) int {
	base := 0
	for i := 1; i < len(intervals); i++ {
		if intervals[i] < intervals[base] {
			base = i
		}
	}
	return base
}
