package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	ProfileRelative = "relative"
	ProfileLocal    = "local"
)

// Profile is a named endpoint/min-length preset for the form controller.
type Profile struct {
	Name      string `yaml:"-"`
	Endpoint  string `yaml:"endpoint"`
	MinLength int    `yaml:"min_length"`
}

// BuiltinProfiles returns the two deployment presets: the same-origin
// relative path with a 10 character minimum, and the fixed local port with
// no minimum.
func BuiltinProfiles() map[string]Profile {
	return map[string]Profile{
		ProfileRelative: {Name: ProfileRelative, Endpoint: "/predict", MinLength: 10},
		ProfileLocal:    {Name: ProfileLocal, Endpoint: "http://localhost:5000/predict", MinLength: 0},
	}
}

// LoadProfiles reads additional presets from a YAML file of the form
//
//	profiles:
//	  staging:
//	    endpoint: https://staging.example.com/predict
//	    min_length: 20
func LoadProfiles(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}
	return ParseProfiles(data)
}

func ParseProfiles(data []byte) (map[string]Profile, error) {
	var doc struct {
		Profiles map[string]Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}

	out := make(map[string]Profile, len(doc.Profiles))
	for name, p := range doc.Profiles {
		if p.Endpoint == "" {
			return nil, fmt.Errorf("profile %q has no endpoint", name)
		}
		if p.MinLength < 0 {
			return nil, fmt.Errorf("profile %q has negative min_length", name)
		}
		p.Name = name
		out[name] = p
	}
	return out, nil
}

// ProfileNames returns the preset names in a stable order.
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveEndpoint turns a relative endpoint path into an absolute URL
// against base. Absolute endpoints are returned unchanged.
func ResolveEndpoint(base, endpoint string) (string, error) {
	ep, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	if ep.IsAbs() {
		return ep.String(), nil
	}
	if base == "" {
		return "", fmt.Errorf("relative endpoint requires a base URL")
	}
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if !b.IsAbs() {
		return "", fmt.Errorf("base URL %q is not absolute", base)
	}
	return b.ResolveReference(ep).String(), nil
}
