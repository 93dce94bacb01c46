package seed

import (
	_ "embed"
	"fmt"

	"localpulse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gopkg.in/yaml.v3"
)

//go:embed geography.yaml
var geographyYAML []byte

// Catalog is the tree of administrative areas seed content is placed in.
type Catalog struct {
	States []State `yaml:"states"`
}

type State struct {
	Name      string     `yaml:"name"`
	Districts []District `yaml:"districts"`
}

type District struct {
	Name   string   `yaml:"name"`
	Blocks []string `yaml:"blocks"`
}

// LoadCatalog parses the embedded geography catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(geographyYAML)
}

// ParseCatalog parses a YAML catalog and rejects states without districts.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse geography catalog: %w", err)
	}
	if len(c.States) == 0 {
		return nil, fmt.Errorf("geography catalog has no states")
	}
	for _, s := range c.States {
		if s.Name == "" || len(s.Districts) == 0 {
			return nil, fmt.Errorf("geography catalog: state %q has no districts", s.Name)
		}
	}
	return &c, nil
}

// Pick returns a random geography. Depth varies so the feed sees
// state-only, district and block level items.
func (c *Catalog) Pick(f *gofakeit.Faker) models.Geography {
	state := c.States[f.Number(0, len(c.States)-1)]
	geo := models.Geography{State: state.Name}

	switch f.Number(0, 2) {
	case 0:
		return geo
	case 1:
		geo.District = state.Districts[f.Number(0, len(state.Districts)-1)].Name
		return geo
	default:
		d := state.Districts[f.Number(0, len(state.Districts)-1)]
		geo.District = d.Name
		if len(d.Blocks) > 0 {
			geo.Block = d.Blocks[f.Number(0, len(d.Blocks)-1)]
		}
		return geo
	}
}

// Contains reports whether g names an area present in the catalog.
func (c *Catalog) Contains(g models.Geography) bool {
	g = g.Normalize()
	for _, s := range c.States {
		if s.Name != g.State {
			continue
		}
		if g.District == "" {
			return true
		}
		for _, d := range s.Districts {
			if d.Name != g.District {
				continue
			}
			if g.Block == "" {
				return true
			}
			for _, b := range d.Blocks {
				if b == g.Block {
					return true
				}
			}
		}
	}
	return false
}
