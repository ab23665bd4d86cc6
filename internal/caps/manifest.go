// Package caps implements the capability registry: the declared, validated
// table of operation names eligible for interception per native type.
//
// Eligibility is declared up front in a manifest rather than discovered by
// probing the native type at runtime. The manifest is validated against a
// CUE schema before use, then resolved once per type against the
// collaborator's operation tables; the result is cached and immutable.
package caps

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed manifest.yaml
var defaultManifestYAML []byte

// Manifest declares interceptable operations and the fixed exclusion set.
type Manifest struct {
	// Types lists, per native type, the operation names offered for
	// interception.
	Types []TypeManifest `yaml:"types"`

	// Functions lists qualified module-level function names offered for
	// interception.
	Functions []string `yaml:"functions"`

	// Exclude names operations whose semantics must never be intercepted:
	// equality, ordering, lifecycle, and bookkeeping operations. Exclusion
	// wins over any declaration.
	Exclude []string `yaml:"exclude"`
}

// TypeManifest declares the interceptable operations of one native type.
type TypeManifest struct {
	Name       string   `yaml:"name"`
	Operations []string `yaml:"operations"`
}

// ManifestError reports a manifest that failed schema validation or parsing.
type ManifestError struct {
	Source  string
	Message string
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("capability manifest %s: %s", e.Source, e.Message)
}

// DefaultManifest parses and validates the embedded manifest.
func DefaultManifest() (Manifest, error) {
	return parseManifest(defaultManifestYAML, "(embedded)")
}

// LoadManifest reads, validates, and parses a manifest from disk.
func LoadManifest(path string) (Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("load capability manifest: %w", err)
	}
	return parseManifest(raw, path)
}

func parseManifest(raw []byte, source string) (Manifest, error) {
	if err := ValidateManifestYAML(raw, source); err != nil {
		return Manifest{}, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Manifest{}, &ManifestError{Source: source, Message: err.Error()}
	}
	return m, nil
}

// excluded reports whether name is on the exclusion list.
func (m Manifest) excluded(name string) bool {
	for _, e := range m.Exclude {
		if e == name {
			return true
		}
	}
	return false
}

// typeFor returns the declaration for a native type, if present.
func (m Manifest) typeFor(name string) (TypeManifest, bool) {
	for _, t := range m.Types {
		if t.Name == name {
			return t, true
		}
	}
	return TypeManifest{}, false
}
