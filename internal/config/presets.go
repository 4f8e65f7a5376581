package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"ringpong/internal/game"
)

// Presets are named game settings a host can pick from.
type Presets map[string]game.Settings

// LoadPresets decodes a YAML document of named settings. Fields a preset
// leaves out keep their default value.
//
//	fast:
//	  ballSpeed: 9
//	  pointsToWin: 5
func LoadPresets(r io.Reader) (Presets, error) {
	var raw map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return Presets{}, nil
		}
		return nil, fmt.Errorf("decode presets: %w", err)
	}

	presets := make(Presets, len(raw))
	for name, node := range raw {
		s := game.DefaultSettings()
		if err := node.Decode(&s); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		presets[name] = s
	}
	return presets, nil
}

// LoadPresetsFile reads presets from path.
func LoadPresetsFile(path string) (Presets, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open presets: %w", err)
	}
	defer f.Close()
	return LoadPresets(f)
}

// Get returns a preset by name
func (p Presets) Get(name string) (game.Settings, bool) {
	s, ok := p[name]
	return s, ok
}

// Names lists the presets alphabetically.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
