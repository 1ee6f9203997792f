package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

// Decimals from CSV cells travel in request payloads, result rows and
// output files; as quoted strings a numeric epoch would no longer read back
// as a number.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// decodeCSV reads a header row followed by data rows. Numeric cells become
// decimal.Decimal so prices keep their exact value; everything else stays a
// string.
func decodeCSV(r io.Reader) ([]merge.Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var recs []merge.Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(recs)+1, err)
		}
		rec := make(merge.Record, len(header))
		for i, cell := range row {
			rec[header[i]] = cellValue(cell)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func cellValue(cell string) any {
	if cell == "" {
		return cell
	}
	if d, err := decimal.NewFromString(cell); err == nil {
		return d
	}
	return cell
}
