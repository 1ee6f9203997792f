package merge

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testStream(size int, interval int64, epochs ...int64) stream {
	recs := make([]Record, len(epochs))
	for i, e := range epochs {
		recs[i] = Record{"date": e}
	}
	return stream{name: "s", data: newChunked(recs, epochs, size), interval: interval}
}

func TestChunked_Segments(t *testing.T) {
	s := testStream(2, 1, 1, 2, 3, 4, 5)
	require.Len(t, s.data.segments, 3)
	require.Equal(t, 5, s.data.len())

	var got []int64
	cur := Cursor{}
	for p, ok := s.data.at(cur); ok; p, ok = s.data.at(cur) {
		got = append(got, p.epoch)
		cur = s.data.advance(cur)
	}
	require.Equal(t, []int64{1, 2, 3, 4, 5}, got)
	require.Equal(t, Cursor{Segment: 3}, cur)
	require.Equal(t, cur, s.data.advance(cur))
}

func TestSeek_NeverRewinds(t *testing.T) {
	s := testStream(3, 10, 0, 10, 20, 30, 40)

	cur := seek(s, Cursor{}, 25)
	require.Equal(t, Cursor{Segment: 0, Offset: 2}, cur)

	// An earlier timestamp leaves the cursor where it is.
	require.Equal(t, cur, seek(s, cur, 5))

	cur = seek(s, cur, 41)
	require.Equal(t, Cursor{Segment: 1, Offset: 1}, cur)

	cur = seek(s, cur, 1000)
	_, ok := s.data.at(cur)
	require.False(t, ok)
}

func TestWindow_LeavesCursor(t *testing.T) {
	s := testStream(2, 10, 0, 10, 15, 30)

	cur := seek(s, Cursor{}, 17)
	hits := window(s, cur, 17)
	require.Len(t, hits, 2)
	require.Equal(t, int64(10), hits[0]["date"])
	require.Equal(t, int64(15), hits[1]["date"])
	require.Equal(t, Cursor{Segment: 0, Offset: 1}, cur)

	require.Empty(t, window(s, cur, 9))
}
