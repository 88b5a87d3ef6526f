// Package model resolves model names to manifests and maintains the
// content-addressed on-disk artifact cache.
package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrManifestInvalid indicates a manifest that could not be parsed or that
// violates the schema.
var ErrManifestInvalid = errors.New("model: invalid manifest")

// Artifact is one downloadable file declared by a manifest.
type Artifact struct {
	File      string `json:"file"`
	URL       string `json:"url"`
	SHA256    string `json:"sha256"`
	SizeBytes uint64 `json:"size_bytes"`
}

// Manifest is the immutable declaration of a downloadable model. Unknown
// JSON fields are ignored.
type Manifest struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Backend      string     `json:"backend"`
	SampleRate   int        `json:"sample_rate"`
	Window       int        `json:"window"`
	Hop          int        `json:"hop"`
	Stems        []string   `json:"stems"`
	InputLayout  string     `json:"input_layout"`
	OutputLayout string     `json:"output_layout"`
	Artifacts    []Artifact `json:"artifacts"`
}

// Validate checks the schema invariants.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: missing name", ErrManifestInvalid)
	}
	if m.SampleRate <= 0 {
		return fmt.Errorf("%w: sample_rate %d", ErrManifestInvalid, m.SampleRate)
	}
	if m.Window <= 0 || m.Hop <= 0 || m.Hop > m.Window {
		return fmt.Errorf("%w: window %d / hop %d", ErrManifestInvalid, m.Window, m.Hop)
	}
	if len(m.Artifacts) == 0 {
		return fmt.Errorf("%w: no artifacts", ErrManifestInvalid)
	}
	for i := range m.Artifacts {
		if err := m.Artifacts[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

func (a *Artifact) validate() error {
	if len(a.SHA256) != 64 || !isHex(a.SHA256) {
		return fmt.Errorf("%w: artifact %q sha256 must be 64 hex chars", ErrManifestInvalid, a.File)
	}
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		return fmt.Errorf("%w: artifact %q url must be absolute http(s)", ErrManifestInvalid, a.File)
	}
	return nil
}

// PrimaryArtifact returns the model binary. Multi-artifact manifests are
// reserved for future use; today the primary is the sole entry.
func (m *Manifest) PrimaryArtifact() (Artifact, error) {
	if len(m.Artifacts) == 0 {
		return Artifact{}, fmt.Errorf("%w: no artifacts", ErrManifestInvalid)
	}
	return m.Artifacts[0], nil
}

// StemIndex maps the canonical stem name (lower case) to its position in
// Stems, falling back to the given position when the name is absent. The
// fallback is clamped to the available source count.
func (m *Manifest) StemIndex(name string, fallback, count int) int {
	for i, s := range m.Stems {
		if strings.Contains(strings.ToLower(s), name) {
			if i < count {
				return i
			}
			break
		}
	}
	if fallback >= count {
		fallback = count - 1
	}
	if fallback < 0 {
		fallback = 0
	}
	return fallback
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
