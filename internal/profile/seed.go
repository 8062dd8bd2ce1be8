package profile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML document loaded at startup to pre-create profiles.
//
// Example:
//
//	profiles:
//	  - id: demo
//	    onboarding:
//	      comprehension_break: forget_steps
//	      learning_preference: step_by_step
//	      struggle_note: "Lectures move too fast."
type SeedFile struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadSeedFile reads and parses a seed file from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("profile: open seed file %q: %w", path, err)
	}
	defer f.Close()

	sf, err := LoadSeedFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("profile: parse seed file %q: %w", path, err)
	}
	return sf, nil
}

// LoadSeedFromReader parses seed YAML from r. Unknown keys are rejected.
func LoadSeedFromReader(r io.Reader) (*SeedFile, error) {
	var sf SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil {
		if errors.Is(err, io.EOF) {
			return &sf, nil
		}
		return nil, fmt.Errorf("profile: decode seed yaml: %w", err)
	}
	return &sf, nil
}

// Import creates every profile of sf in store and returns how many were
// created. Profiles whose ID already exists are skipped, so a persistent
// store can be seeded on every start. Any other failure aborts the import.
func Import(ctx context.Context, store Store, sf *SeedFile) (int, error) {
	if sf == nil {
		return 0, fmt.Errorf("profile: seed file must not be nil")
	}
	n := 0
	for i, p := range sf.Profiles {
		if _, err := store.Create(ctx, p); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				continue
			}
			return n, fmt.Errorf("profile: import seed at index %d: %w", i, err)
		}
		n++
	}
	return n, nil
}
