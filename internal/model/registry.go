package model

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrRegistryMiss indicates a model name absent from the bundled registry.
var ErrRegistryMiss = errors.New("model: not found in registry")

//go:embed registry.json
var registryJSON []byte

// RegistryEntry pairs a model name with its manifest URL.
type RegistryEntry struct {
	Name     string `json:"name"`
	Manifest string `json:"manifest"`
}

// Registry is the bundled static model table.
type Registry struct {
	Default string          `json:"default"`
	Models  []RegistryEntry `json:"models"`
}

// LoadRegistry parses the embedded registry table.
func LoadRegistry() (Registry, error) {
	var reg Registry
	if err := json.Unmarshal(registryJSON, &reg); err != nil {
		return Registry{}, fmt.Errorf("model: parse embedded registry: %w", err)
	}
	return reg, nil
}

// ResolveManifestURL looks up modelName in the registry. An empty name
// resolves to the registry default.
func ResolveManifestURL(modelName string) (string, error) {
	reg, err := LoadRegistry()
	if err != nil {
		return "", err
	}
	target := modelName
	if target == "" {
		target = reg.Default
	}
	for _, entry := range reg.Models {
		if entry.Name == target {
			return entry.Manifest, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrRegistryMiss, target)
}
