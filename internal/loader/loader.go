// Package loader reads input sequences from files and JSON payloads.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// LoadFile reads one sequence from path. The format follows the extension
// (.json, .jsonl/.ndjson, .csv). The sequence is named after the file when
// name is empty.
func LoadFile(name, path string) (merge.Sequence, error) {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return merge.Sequence{}, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	var recs []merge.Record
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		recs, err = decodeArray(f)
	case ".jsonl", ".ndjson":
		recs, err = decodeLines(f)
	case ".csv":
		recs, err = decodeCSV(f)
	default:
		return merge.Sequence{}, fmt.Errorf("unsupported file type %q: %s", ext, path)
	}
	if err != nil {
		return merge.Sequence{}, fmt.Errorf("read %s: %w", path, err)
	}
	return merge.Sequence{Name: name, Records: recs}, nil
}

// ParseArg splits a "name=path" command-line argument. A bare path yields an
// empty name.
func ParseArg(arg string) (name, path string) {
	if i := strings.Index(arg, "="); i > 0 {
		return arg[:i], arg[i+1:]
	}
	return "", arg
}

// LoadArgs loads one sequence per "name=path" argument, in argument order.
func LoadArgs(args []string) ([]merge.Sequence, error) {
	seqs := make([]merge.Sequence, 0, len(args))
	for _, arg := range args {
		name, path := ParseArg(arg)
		seq, err := LoadFile(name, path)
		if err != nil {
			return nil, err
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}
