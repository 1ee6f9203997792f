package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/timeweave/internal/processor"
)

// Manifest lists the merge jobs of one batch run.
type Manifest struct {
	OutputDir string                    `yaml:"output_dir"`
	StateFile string                    `yaml:"state_file"`
	Defaults  *processor.RequestOptions `yaml:"defaults"`
	Jobs      []Job                     `yaml:"jobs"`

	dir string
}

// Job merges its inputs, in listed order, into one JSONL file.
type Job struct {
	Name    string                    `yaml:"name"`
	Inputs  []Input                   `yaml:"inputs"`
	Options *processor.RequestOptions `yaml:"options"`
	Output  string                    `yaml:"output"`
}

// Input is one sequence file. Name defaults to the file name without extension.
type Input struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// LoadManifest reads and validates a manifest. Relative paths inside it are
// resolved against the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	m.dir = filepath.Dir(path)
	if m.OutputDir == "" {
		m.OutputDir = "."
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Jobs) == 0 {
		return errors.New("no jobs")
	}
	seen := make(map[string]bool, len(m.Jobs))
	for i, j := range m.Jobs {
		if j.Name == "" {
			return fmt.Errorf("job %d has no name", i)
		}
		if seen[j.Name] {
			return fmt.Errorf("duplicate job %q", j.Name)
		}
		seen[j.Name] = true
		if len(j.Inputs) == 0 {
			return fmt.Errorf("job %q has no inputs", j.Name)
		}
		for k, in := range j.Inputs {
			if in.Path == "" {
				return fmt.Errorf("job %q input %d has no path", j.Name, k)
			}
		}
	}
	return nil
}

// resolve returns p relative to the manifest directory unless it is absolute.
func (m *Manifest) resolve(p string) string {
	p = expandHome(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.dir, p)
}

func (m *Manifest) outputPath(j Job) string {
	out := j.Output
	if out == "" {
		out = j.Name + ".jsonl"
	}
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(m.resolve(m.OutputDir), out)
}

// options layers the job's overrides on the manifest defaults.
func (m *Manifest) options(j Job) *processor.RequestOptions {
	if m.Defaults == nil {
		return j.Options
	}
	merged := *m.Defaults
	if o := j.Options; o != nil {
		if o.Target != "" {
			merged.Target = o.Target
		}
		if o.ChunkSize != 0 {
			merged.ChunkSize = o.ChunkSize
		}
		if o.MaxFrequencySampleSize != 0 {
			merged.MaxFrequencySampleSize = o.MaxFrequencySampleSize
		}
		if o.Completeness != "" {
			merged.Completeness = o.Completeness
		}
		if o.BareBaseKeys != nil {
			merged.BareBaseKeys = o.BareBaseKeys
		}
		if o.TimeZone != "" {
			merged.TimeZone = o.TimeZone
		}
	}
	return &merged
}
