package loader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// Sequences is a JSON object of name -> array of records that keeps the
// object's key order when decoded.
type Sequences []merge.Sequence

// UnmarshalJSON decodes the object in document order. Numbers are kept as
// json.Number.
func (s *Sequences) UnmarshalJSON(data []byte) error {
	seqs, err := DecodeSequences(bytes.NewReader(data))
	if err != nil {
		return err
	}
	*s = seqs
	return nil
}

// MarshalJSON encodes the sequences as an object in slice order.
func (s Sequences) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, seq := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(seq.Name)
		if err != nil {
			return nil, err
		}
		recs, err := json.Marshal(seq.Records)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(recs)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeSequences reads a JSON object mapping sequence names to arrays of
// records and returns the sequences in the order they appear.
func DecodeSequences(r io.Reader) ([]merge.Sequence, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var seqs []merge.Sequence
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read sequence name: %w", err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected sequence name, got %v", tok)
		}
		var recs []merge.Record
		if err := dec.Decode(&recs); err != nil {
			return nil, fmt.Errorf("decode sequence %q: %w", name, err)
		}
		seqs = append(seqs, merge.Sequence{Name: name, Records: recs})
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return seqs, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read %q: %w", want, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func decodeArray(r io.Reader) ([]merge.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var recs []merge.Record
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return recs, nil
}

// decodeLines reads one JSON object per line. Blank lines are skipped.
func decodeLines(r io.Reader) ([]merge.Record, error) {
	var recs []merge.Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var rec merge.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if rec == nil {
			return nil, fmt.Errorf("line %d: %w", line, errNotObject)
		}
		recs = append(recs, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return recs, nil
}

var errNotObject = errors.New("not a JSON object")
