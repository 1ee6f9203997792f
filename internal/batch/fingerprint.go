package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/xxh3"
)

// fingerprint hashes everything that can change a job's output: input names,
// file contents and the effective options.
func (m *Manifest) fingerprint(j Job) (string, error) {
	h := xxh3.New()
	fmt.Fprintf(h, "job:%s\n", j.Name)
	for _, in := range j.Inputs {
		fmt.Fprintf(h, "input:%s\n", inputName(in))
		if err := hashFile(h, m.resolve(in.Path)); err != nil {
			return "", err
		}
	}
	opts, err := json.Marshal(m.options(j))
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}
	h.Write(opts)
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func hashFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return nil
}
