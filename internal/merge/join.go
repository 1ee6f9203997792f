package merge

// stream is a chunked sequence together with its name and inferred interval.
type stream struct {
	name     string
	data     *chunked
	interval int64
}

// windowEnd is the last epoch covered by a record starting at epoch.
func (s stream) windowEnd(epoch int64) int64 {
	return epoch + s.interval - 1
}

// seek moves cur past every record whose window closes before t. Base epochs
// only grow, so a record skipped here can never match again and the returned
// cursor never lies behind cur.
func seek(s stream, cur Cursor, t int64) Cursor {
	for {
		p, ok := s.data.at(cur)
		if !ok || s.windowEnd(p.epoch) >= t {
			return cur
		}
		cur = s.data.advance(cur)
	}
}

// window returns the records starting at or after cur whose window contains t.
// It scans a copy of cur and leaves the caller's position untouched.
func window(s stream, cur Cursor, t int64) []Record {
	var out []Record
	for p, ok := s.data.at(cur); ok && p.epoch <= t; p, ok = s.data.at(cur) {
		if t >= p.epoch && t <= s.windowEnd(p.epoch) {
			out = append(out, p.rec)
		}
		cur = s.data.advance(cur)
	}
	return out
}

// candidate accumulates the fields of one base record and its matches.
type candidate struct {
	fields  map[Key]any
	matched int
}

func newCandidate(prefix string, rec Record, hint int) *candidate {
	c := &candidate{fields: make(map[Key]any, hint)}
	c.add(prefix, rec)
	return c
}

func (c *candidate) add(prefix string, rec Record) {
	for f, v := range rec {
		c.fields[Key{Sequence: prefix, Field: f}] = v
	}
}

func (c *candidate) row() Row {
	r := make(Row, len(c.fields))
	for k, v := range c.fields {
		r[k.String()] = v
	}
	return r
}

// joiner drives the windowed join of one base stream against its secondaries.
type joiner struct {
	base        stream
	secondaries []stream
	basePrefix  string
	policy      Completeness
	expected    int
}

// run emits one row per base record that passes the completeness policy and
// reports how many base records were dropped. cursors holds the starting
// position of every secondary stream; the final positions are returned.
func (j *joiner) run(cursors []Cursor) ([]Row, int, []Cursor) {
	rows := make([]Row, 0, j.base.data.len())
	dropped := 0
	next := make([]Cursor, len(cursors))
	for _, seg := range j.base.data.segments {
		for _, p := range seg {
			row := j.step(p, cursors, next)
			cursors, next = next, cursors
			if row == nil {
				dropped++
				continue
			}
			rows = append(rows, row)
		}
	}
	return rows, dropped, cursors
}

// step joins a single base point. It writes the advanced position of every
// secondary stream into next and returns the row, or nil when the record
// fails the completeness policy.
func (j *joiner) step(p point, cursors, next []Cursor) Row {
	c := newCandidate(j.basePrefix, p.rec, j.expected)
	for i, sec := range j.secondaries {
		next[i] = seek(sec, cursors[i], p.epoch)
		hits := window(sec, next[i], p.epoch)
		for _, rec := range hits {
			c.add(sec.name, rec)
		}
		if len(hits) > 0 {
			c.matched++
		}
	}

	row := c.row()
	switch j.policy {
	case CompletenessAny:
		if c.matched == 0 && len(j.secondaries) > 0 {
			return nil
		}
	default:
		if len(row) != j.expected {
			return nil
		}
	}
	return row
}
