package loader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/timeweave/internal/merge"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeSequences_KeepsOrder(t *testing.T) {
	in := `{"zeta":[{"date":1,"v":1.5}],"alpha":[{"date":"2025-04-08"}],"mid":[]}`

	seqs, err := DecodeSequences(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, seqs, 3)
	require.Equal(t, "zeta", seqs[0].Name)
	require.Equal(t, "alpha", seqs[1].Name)
	require.Equal(t, "mid", seqs[2].Name)
	require.Equal(t, json.Number("1.5"), seqs[0].Records[0]["v"])
	require.Empty(t, seqs[2].Records)
}

func TestDecodeSequences_Invalid(t *testing.T) {
	for _, in := range []string{`[]`, `{"a":{}}`, `{"a":[1,2]}`, `{"a":[`} {
		_, err := DecodeSequences(strings.NewReader(in))
		require.Error(t, err, in)
	}
}

func TestSequences_RoundTrip(t *testing.T) {
	var req struct {
		Sequences Sequences `json:"sequences"`
	}
	in := `{"sequences":{"b":[{"date":2}],"a":[{"date":1}]}}`
	require.NoError(t, json.Unmarshal([]byte(in), &req))
	require.Equal(t, "b", req.Sequences[0].Name)

	out, err := json.Marshal(req.Sequences)
	require.NoError(t, err)
	require.JSONEq(t, `{"b":[{"date":2}],"a":[{"date":1}]}`, string(out))
	require.True(t, strings.HasPrefix(string(out), `{"b":`))
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeFile(t, "spy1d.json", `[{"date":"2025-04-07","close":199},{"date":"2025-04-08","close":200.25}]`)

	seq, err := LoadFile("", path)
	require.NoError(t, err)
	require.Equal(t, "spy1d", seq.Name)
	require.Len(t, seq.Records, 2)
	require.Equal(t, json.Number("200.25"), seq.Records[1]["close"])
}

func TestLoadFile_JSONL(t *testing.T) {
	path := writeFile(t, "bars.jsonl", "{\"date\":1744070400000,\"close\":1}\n\n{\"date\":1744074000000,\"close\":2}\n")

	seq, err := LoadFile("nvda", path)
	require.NoError(t, err)
	require.Equal(t, "nvda", seq.Name)
	require.Len(t, seq.Records, 2)

	bad := writeFile(t, "bad.jsonl", "{\"date\":1}\nnull\n")
	_, err = LoadFile("", bad)
	require.ErrorContains(t, err, "line 2")
}

func TestLoadFile_CSV(t *testing.T) {
	path := writeFile(t, "eth.csv", "date, close ,note\n2025-04-07,1520.10,open\n2025-04-08,1533.9,\n")

	seq, err := LoadFile("", path)
	require.NoError(t, err)
	require.Len(t, seq.Records, 2)
	require.Equal(t, "2025-04-07", seq.Records[0]["date"])
	require.True(t, decimal.RequireFromString("1520.1").Equal(seq.Records[0]["close"].(decimal.Decimal)))
	require.Equal(t, "open", seq.Records[0]["note"])
	require.Equal(t, "", seq.Records[1]["note"])
}

func TestLoadFile_Unsupported(t *testing.T) {
	path := writeFile(t, "bars.parquet", "")
	_, err := LoadFile("", path)
	require.ErrorContains(t, err, "unsupported file type")

	_, err = LoadFile("", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestLoadArgs_MergesEndToEnd(t *testing.T) {
	hourly := writeFile(t, "h.jsonl", strings.Join([]string{
		`{"date":"2025-04-08 08:00:00","close":20}`,
		`{"date":"2025-04-08 09:00:00","close":21}`,
	}, "\n"))
	daily := writeFile(t, "d.csv", "date,close\n2025-04-07,199\n2025-04-08,200\n")

	seqs, err := LoadArgs([]string{"nvda=" + hourly, "spy=" + daily})
	require.NoError(t, err)
	require.Equal(t, "nvda", seqs[0].Name)
	require.Equal(t, "spy", seqs[1].Name)

	rows, err := merge.Merge(seqs, merge.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "2025-04-08", rows[0]["spy_date"])
}

func TestSequences_CSVNumbersSurviveJSON(t *testing.T) {
	daily := writeFile(t, "a.csv", "date,close\n1743984000,1\n1744070400,2.5\n")
	hourly := writeFile(t, "b.csv", "date,v\n1744070400,10\n1744074000,11\n1744077600,12\n")

	seqs, err := LoadArgs([]string{"a=" + daily, "b=" + hourly})
	require.NoError(t, err)
	local, err := merge.Merge(seqs, merge.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, local, 3)

	wire, err := json.Marshal(Sequences(seqs))
	require.NoError(t, err)
	require.Contains(t, string(wire), `"date":1743984000`)
	require.Contains(t, string(wire), `"close":2.5`)

	var decoded Sequences
	require.NoError(t, json.Unmarshal(wire, &decoded))
	remote, err := merge.Merge(decoded, merge.DefaultOptions())
	require.NoError(t, err)

	localJSON, err := json.Marshal(local)
	require.NoError(t, err)
	remoteJSON, err := json.Marshal(remote)
	require.NoError(t, err)
	require.JSONEq(t, string(localJSON), string(remoteJSON))
	require.Contains(t, string(localJSON), `"a_close":2.5`)
}

func TestParseArg(t *testing.T) {
	name, path := ParseArg("spy=data/spy.csv")
	require.Equal(t, "spy", name)
	require.Equal(t, "data/spy.csv", path)

	name, path = ParseArg("data/a=b.csv")
	require.Equal(t, "data/a", name)
	require.Equal(t, "b.csv", path)

	name, path = ParseArg("=x.csv")
	require.Empty(t, name)
	require.Equal(t, "=x.csv", path)
}
