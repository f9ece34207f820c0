// Package curriculum loads curriculum seed files and serves them as an
// in-memory, array-indexed graph.
package curriculum

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pavelanni/comunizika/internal/progress"
)

// File represents the YAML structure of a curriculum seed file.
type File struct {
	Name    string       `yaml:"name"`
	Modules []ModuleFile `yaml:"modules"`
}

// ModuleFile is a module entry of a curriculum file. Order in the file is
// curriculum order.
type ModuleFile struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Stages      []StageFile `yaml:"stages"`
}

// StageFile is a stage entry with its activity pool.
type StageFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Activities  []ActivityFile `yaml:"activities"`
}

// ActivityFile is an activity entry.
type ActivityFile struct {
	Name        string `yaml:"name"`
	Questions   int    `yaml:"questions"`
	Alternative bool   `yaml:"alternative"`
}

// Load reads and parses a curriculum file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a curriculum file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &f, nil
}

// Validate reports every structural problem of the file. sampleSize is the
// box size the server will run with: each stage must be able to fill a box of
// regular activities and a box of alternative ones.
func (f *File) Validate(sampleSize int) error {
	var errs []error
	if len(f.Modules) == 0 {
		errs = append(errs, errors.New("curriculum has no modules"))
	}
	for mi, m := range f.Modules {
		where := fmt.Sprintf("modules[%d]", mi)
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		}
		if len(m.Stages) == 0 {
			errs = append(errs, fmt.Errorf("%s (%s): module has no stages", where, m.Name))
		}
		for si, s := range m.Stages {
			where := fmt.Sprintf("%s.stages[%d]", where, si)
			if s.Name == "" {
				errs = append(errs, fmt.Errorf("%s: name is required", where))
			}
			var regular, alternative int
			for ai, a := range s.Activities {
				if a.Name == "" {
					errs = append(errs, fmt.Errorf("%s.activities[%d]: name is required", where, ai))
				}
				if a.Questions < 1 {
					errs = append(errs, fmt.Errorf("%s.activities[%d] (%s): questions must be positive, got %d", where, ai, a.Name, a.Questions))
				}
				if a.Alternative {
					alternative++
				} else {
					regular++
				}
			}
			if need, _ := progress.Split(sampleSize, 0); regular < need {
				errs = append(errs, fmt.Errorf("%s (%s): %d regular activities, box needs %d", where, s.Name, regular, need))
			}
			if _, need := progress.Split(sampleSize, 1); alternative < need {
				errs = append(errs, fmt.Errorf("%s (%s): %d alternative activities, box needs %d", where, s.Name, alternative, need))
			}
		}
	}
	return errors.Join(errs...)
}
