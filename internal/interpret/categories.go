package interpret

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultCategories is the catalog the prompt offers the model when no
// override file is configured. Matches the backend's built-in categories.
var defaultCategories = []string{
	"Alimentação",
	"Transporte",
	"Moradia",
	"Lazer",
	"Saúde",
	"Compras",
	"Contas Fixas",
	"Salário",
	"Outros",
}

type categoriesFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories reads a YAML category catalog ({categories: [...]}) from
// path. An empty path selects the built-in catalog.
func LoadCategories(path string) ([]string, error) {
	if path == "" {
		return defaultCategories, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}

	var f categoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse categories file %s: %w", path, err)
	}

	cats := make([]string, 0, len(f.Categories))
	for _, c := range f.Categories {
		if c = strings.TrimSpace(c); c != "" {
			cats = append(cats, c)
		}
	}
	if len(cats) == 0 {
		return nil, fmt.Errorf("categories file %s lists no categories", path)
	}
	return cats, nil
}
