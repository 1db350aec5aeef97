package recipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk shape: either {recipes: [...]} or a bare list.
type catalogFile struct {
	Recipes []Recipe `json:"recipes" yaml:"recipes"`
}

// LoadCatalog reads an ordered recipe catalog from a YAML or JSON file.
func LoadCatalog(path string) ([]Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe catalog: %w", err)
	}
	return ParseCatalog(path, data)
}

// ParseCatalog decodes and validates catalog data. The format is chosen by
// the extension of name; anything other than .json is read as YAML.
func ParseCatalog(name string, data []byte) ([]Recipe, error) {
	var recipes []Recipe
	var err error
	if strings.EqualFold(filepath.Ext(name), ".json") {
		recipes, err = decodeJSON(data)
	} else {
		recipes, err = decodeYAML(data)
	}
	if err != nil {
		return nil, &CatalogError{Source: name, Cause: err}
	}

	if problems := Validate(recipes); len(problems) > 0 {
		return nil, &CatalogError{Source: name, Problems: problems}
	}
	if recipes == nil {
		recipes = []Recipe{}
	}
	return recipes, nil
}

func decodeJSON(data []byte) ([]Recipe, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var recipes []Recipe
		err := json.Unmarshal(trimmed, &recipes)
		return recipes, err
	}
	var f catalogFile
	err := json.Unmarshal(trimmed, &f)
	return f.Recipes, err
}

func decodeYAML(data []byte) ([]Recipe, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	if node.Content[0].Kind == yaml.SequenceNode {
		var recipes []Recipe
		err := node.Decode(&recipes)
		return recipes, err
	}
	var f catalogFile
	err := node.Decode(&f)
	return f.Recipes, err
}
