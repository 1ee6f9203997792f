package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEstimateInterval(t *testing.T) {
	tests := []struct {
		name   string
		epochs []int64
		k      int
		want   int64
	}{
		{"two records", []int64{0, 60}, 10, 60},
		{"modal", []int64{0, 10, 20, 25, 35, 45}, 10, 10},
		{"tie keeps first to reach count", []int64{0, 5, 15, 20, 30}, 10, 5},
		{"sample limit", []int64{0, 7, 14, 15, 16, 17, 18}, 3, 7},
		{"k larger than length", []int64{0, 3, 6}, 100, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := estimateInterval("s", tt.epochs, tt.k)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestEstimateInterval_NoPositiveSpacing(t *testing.T) {
	_, err := estimateInterval("s", []int64{10, 10, 10}, 10)
	require.ErrorIs(t, err, ErrIntervalInference)

	_, err = estimateInterval("s", []int64{10}, 10)
	require.ErrorIs(t, err, ErrSeriesLength)
}

func TestSelectBase(t *testing.T) {
	require.Equal(t, 1, selectBase([]int64{60, 10, 30}))
	require.Equal(t, 0, selectBase([]int64{10, 10, 30}))
	require.Equal(t, 2, selectBase([]int64{10, 10, 5, 5}))
	require.Equal(t, 0, selectBase([]int64{42}))
}
