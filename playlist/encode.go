package playlist

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// encodeFor serialises p in the format LoadFile expects for file.
func encodeFor(file string, p *Playlist) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yml", ".yaml":
		return yaml.Marshal(p)
	default:
		return json.MarshalIndent(p, "", "  ")
	}
}
