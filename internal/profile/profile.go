// Package profile defines named processing presets and optional YAML
// overrides for them.
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile defines the processing parameters for a run. All width
// handling downstream works on the normalized form of Widths; the raw
// list here is user input.
type Profile struct {
	Name       string    `yaml:"-"`
	Widths     []int     `yaml:"widths"`
	Formats    []string  `yaml:"formats"`
	Quality    int       `yaml:"quality"`
	Blur       bool      `yaml:"blur"`
	BlurSigma  float64   `yaml:"blur_sigma"`
	Responsive bool      `yaml:"responsive"`
}

// Built-in profiles.
var builtins = map[string]Profile{
	"web-responsive": {
		Widths:     []int{320, 640, 960, 1280},
		Formats:    []string{"webp", "jpeg"},
		Quality:    82,
		Responsive: true,
	},
	"hero": {
		Widths:     []int{640, 1280, 1920},
		Formats:    []string{"avif", "webp", "jpeg"},
		Quality:    85,
		Responsive: true,
	},
	"placeholder": {
		Widths:    []int{32},
		Formats:   []string{"webp", "jpeg"},
		Quality:   60,
		Blur:      true,
		BlurSigma: 4,
	},
	"minimal": {
		Widths:  []int{640},
		Formats: []string{"webp", "jpeg"},
		Quality: 78,
	},
}

// DefaultName is the profile used when none is requested.
const DefaultName = "web-responsive"

// configFile is the shape of an imgkit.yaml profile file.
type configFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Load resolves a profile by name. A non-empty configPath points at a
// YAML file whose profiles are added to the built-ins; a file profile
// with a built-in's name replaces it wholesale (no field merging).
func Load(name, configPath string) (Profile, error) {
	available := builtins
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return Profile{}, fmt.Errorf("read config: %w", err)
		}
		var cf configFile
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return Profile{}, fmt.Errorf("parse config %s: %w", configPath, err)
		}
		available = make(map[string]Profile, len(builtins)+len(cf.Profiles))
		for n, p := range builtins {
			available[n] = p
		}
		for n, p := range cf.Profiles {
			available[n] = p
		}
	}

	p, ok := available[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	p.Name = name
	if p.Blur && p.BlurSigma <= 0 {
		p.BlurSigma = 4
	}
	return p, nil
}

// Names lists all built-in profile names (for help text).
func Names() []string {
	return []string{"web-responsive", "hero", "placeholder", "minimal"}
}
