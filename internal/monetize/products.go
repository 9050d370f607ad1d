package monetize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Product maps an article keyword to the search term used in its affiliate link.
type Product struct {
	Keyword    string `yaml:"keyword"`
	SearchTerm string `yaml:"search_term"`
}

type productFile struct {
	Products []Product `yaml:"products"`
}

// LoadProducts reads the affiliate product map. A missing path returns no
// products and no error.
func LoadProducts(path string) ([]Product, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read affiliate products: %w", err)
	}
	var file productFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse affiliate products %s: %w", path, err)
	}
	out := make([]Product, 0, len(file.Products))
	for _, p := range file.Products {
		p.Keyword = strings.TrimSpace(p.Keyword)
		p.SearchTerm = strings.TrimSpace(p.SearchTerm)
		if p.Keyword == "" {
			continue
		}
		if p.SearchTerm == "" {
			p.SearchTerm = p.Keyword
		}
		out = append(out, p)
	}
	return out, nil
}
