// Package playlist loads lighting shows and steps through them.
package playlist

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	u "lautenbacher.net/ble2led/util"
)

// Tag is the value of the type field every playlist must carry.
const Tag = "ble2led"

var (
	ErrInvalidPlaylistFormat = errors.New("invalid playlist format")
	ErrNoStepsLoaded         = errors.New("no lighting steps loaded")
)

// Record sets one logical device. ID is 1-based; ids that do not
// name a connected device are ignored when the step is applied.
type Record struct {
	ID     int `json:"id" yaml:"id"`
	R      int `json:"r" yaml:"r"`
	G      int `json:"g" yaml:"g"`
	B      int `json:"b" yaml:"b"`
	Dim    int `json:"d" yaml:"d"`
	Strobe int `json:"s" yaml:"s"`
}

// Step is the set of records applied on one beat.
type Step []Record

// Playlist is an immutable, validated list of steps.
type Playlist struct {
	Type  string `json:"type" yaml:"type"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Len returns the number of steps.
func (p *Playlist) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Steps)
}

// DeviceIDs returns the distinct device ids referenced, in order of
// first appearance.
func (p *Playlist) DeviceIDs() []int {
	seen := make(map[int]bool)
	var ret []int
	for _, step := range p.Steps {
		for _, r := range step {
			if !seen[r.ID] {
				seen[r.ID] = true
				ret = append(ret, r.ID)
			}
		}
	}
	return ret
}

// Validate checks the tag, that there is at least one step, and that
// every channel value is in [0,255].
func (p *Playlist) Validate() error {
	if p.Type != Tag {
		return fmt.Errorf("%w: type is %q, want %q", ErrInvalidPlaylistFormat, p.Type, Tag)
	}
	if len(p.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidPlaylistFormat)
	}
	for i, step := range p.Steps {
		for j, r := range step {
			for _, v := range []struct {
				name  string
				value int
			}{{"r", r.R}, {"g", r.G}, {"b", r.B}, {"d", r.Dim}, {"s", r.Strobe}} {
				if !u.InRange(v.value, 0, 255) {
					return fmt.Errorf("%w: step %d record %d: %s=%d not in [0,255]",
						ErrInvalidPlaylistFormat, i+1, j+1, v.name, v.value)
				}
			}
		}
	}
	return nil
}

// Load parses and validates a JSON playlist.
func Load(raw []byte) (*Playlist, error) {
	var p Playlist
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlaylistFormat, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadYAML parses and validates a YAML playlist with the same layout.
func LoadYAML(raw []byte) (*Playlist, error) {
	var p Playlist
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlaylistFormat, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadFile reads a playlist from disk. Files ending in .yml or .yaml
// are parsed as YAML, everything else as JSON.
func LoadFile(path string) (*Playlist, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading playlist %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return LoadYAML(raw)
	default:
		return Load(raw)
	}
}
