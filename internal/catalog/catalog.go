// Package catalog holds the life-area microapps shown on the dashboard.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed microapps.yaml
var defaultDocument []byte

type Microapp struct {
	Slug            string   `yaml:"slug" json:"slug"`
	Label           string   `yaml:"label" json:"label"`
	Description     string   `yaml:"description" json:"description"`
	Tagline         string   `yaml:"tagline" json:"tagline"`
	Microcategories []string `yaml:"microcategories" json:"microcategories"`
	SetupPrompts    []string `yaml:"setup_prompts" json:"setup_prompts"`
}

type document struct {
	Microapps []Microapp `yaml:"microapps"`
}

// Catalog is an ordered, read-only list of microapps. The first entry is the
// default.
type Catalog struct {
	apps   []Microapp
	bySlug map[string]int
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if len(doc.Microapps) == 0 {
		return nil, errors.New("catalog: no microapps defined")
	}

	c := &Catalog{bySlug: make(map[string]int, len(doc.Microapps))}
	for i, app := range doc.Microapps {
		if app.Slug == "" {
			return nil, fmt.Errorf("catalog: microapp %d has no slug", i)
		}
		if _, dup := c.bySlug[app.Slug]; dup {
			return nil, fmt.Errorf("catalog: duplicate slug %q", app.Slug)
		}
		if app.Microcategories == nil {
			app.Microcategories = []string{}
		}
		if app.SetupPrompts == nil {
			app.SetupPrompts = []string{}
		}
		c.bySlug[app.Slug] = i
		c.apps = append(c.apps, app)
	}
	return c, nil
}

// All returns a copy of every microapp in catalog order.
func (c *Catalog) All() []Microapp {
	out := make([]Microapp, len(c.apps))
	copy(out, c.apps)
	return out
}

// Lookup returns the microapp with the given slug, or the first one when the
// slug is empty or unknown.
func (c *Catalog) Lookup(slug string) Microapp {
	if i, ok := c.bySlug[slug]; ok {
		return c.apps[i]
	}
	return c.apps[0]
}
