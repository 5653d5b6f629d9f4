package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Load reads an inventory file, picking the TOML decoder for a .toml
// extension and YAML otherwise, then applies defaults and validates it.
func Load(configPath string) (*Inventory, error) {
	if configPath == "" {
		return nil, errors.New("configuration file path cannot be empty")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file '%s'", configPath)
	}
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// Parse decodes a YAML inventory, applies defaults and validates it.
func Parse(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal yaml config")
	}
	return finish(&inv)
}

// ParseTOML decodes a TOML inventory, applies defaults and validates it.
func ParseTOML(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := toml.Unmarshal(data, &inv); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal toml config")
	}
	return finish(&inv)
}

func finish(inv *Inventory) (*Inventory, error) {
	SetDefaults(inv)
	if err := Validate(inv); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return inv, nil
}
