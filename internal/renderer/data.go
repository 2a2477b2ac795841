package renderer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Data formats accepted by ParseData.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// FormatFromPath picks a data format from a file extension. Unknown
// extensions are treated as JSON.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// LoadData reads template data from a JSON, YAML or TOML file.
func LoadData(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file %s: %w", path, err)
	}
	data, err := ParseData(FormatFromPath(path), raw)
	if err != nil {
		return nil, fmt.Errorf("invalid data file %s: %w", path, err)
	}
	return data, nil
}

// ParseData decodes template data. Empty input yields an empty map.
func ParseData(format string, raw []byte) (map[string]interface{}, error) {
	data := make(map[string]interface{})
	if len(strings.TrimSpace(string(raw))) == 0 {
		return data, nil
	}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(raw, &data)
	case FormatYAML:
		err = yaml.Unmarshal(raw, &data)
	case FormatTOML:
		_, err = toml.Decode(string(raw), &data)
	default:
		return nil, fmt.Errorf("unsupported data format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = make(map[string]interface{})
	}
	return data, nil
}
