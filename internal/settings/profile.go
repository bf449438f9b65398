package settings

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// DefaultProfileName selects the built-in profile.
const DefaultProfileName = "performance"

//go:embed profiles/performance.yaml
var defaultProfile []byte

// Profile is a named set of settings.json changes.
type Profile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Overrides   map[string]any `yaml:"overrides"`
	Remove      []string       `yaml:"remove,omitempty"`
}

// ParseProfile validates data and decodes it. source names the document in
// error messages.
func ParseProfile(data []byte, source string) (*Profile, error) {
	issues, err := Validate(data)
	if err != nil {
		return nil, fmt.Errorf("validating profile %s: %w", source, err)
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Source: source, Issues: issues}
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing profile %s: %w", source, err)
	}
	overrides, err := toJSONValues(p.Overrides)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", source, err)
	}
	p.Overrides = overrides
	return &p, nil
}

// Default returns the built-in performance profile.
func Default() *Profile {
	p, err := ParseProfile(defaultProfile, "built-in "+DefaultProfileName)
	if err != nil {
		panic(err)
	}
	return p
}

// LoadProfile resolves a profile by name or file path. An empty ref or the
// built-in name returns Default.
func LoadProfile(ref string) (*Profile, error) {
	if ref == "" || ref == DefaultProfileName {
		return Default(), nil
	}
	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", ref, err)
	}
	return ParseProfile(data, ref)
}

// toJSONValues converts YAML-decoded values to what encoding/json produces
// for the same document, so they compare equal to values read from
// settings.json.
func toJSONValues(m map[string]any) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("converting overrides to JSON: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("converting overrides to JSON: %w", err)
	}
	return out, nil
}
