package merge

// point pairs a record with its normalized epoch.
type point struct {
	epoch int64
	rec   Record
}

// Cursor addresses a record inside a chunked sequence.
type Cursor struct {
	Segment int
	Offset  int
}

// chunked stores a normalized sequence as contiguous fixed-size segments.
type chunked struct {
	segments [][]point
}

func newChunked(records []Record, epochs []int64, size int) *chunked {
	n := len(records)
	count := (n + size - 1) / size
	c := &chunked{segments: make([][]point, count)}
	for s, off := 0, 0; s < count; s, off = s+1, off+size {
		end := min(off+size, n)
		seg := make([]point, end-off)
		for j := range seg {
			seg[j] = point{epoch: epochs[off+j], rec: records[off+j]}
		}
		c.segments[s] = seg
	}
	return c
}

// at returns the point under cur, or false once cur is past the end.
func (c *chunked) at(cur Cursor) (point, bool) {
	if cur.Segment >= len(c.segments) || cur.Offset >= len(c.segments[cur.Segment]) {
		return point{}, false
	}
	return c.segments[cur.Segment][cur.Offset], true
}

// advance returns the cursor following cur. A cursor past the end stays there.
func (c *chunked) advance(cur Cursor) Cursor {
	if cur.Segment >= len(c.segments) {
		return cur
	}
	cur.Offset++
	if cur.Offset >= len(c.segments[cur.Segment]) {
		cur.Segment++
		cur.Offset = 0
	}
	return cur
}

// len reports the number of records across all segments.
func (c *chunked) len() int {
	n := 0
	for _, seg := range c.segments {
		n += len(seg)
	}
	return n
}
