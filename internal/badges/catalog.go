// Package badges holds the badge catalogue and decides which badges a learner has newly earned.
package badges

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"thinkfirst/internal/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is an ordered, read-only list of badge definitions
type Catalog struct {
	badges []models.Badge
	index  map[string]int
}

// ParseCatalog decodes a YAML list of badges. Ids must be unique and non-empty.
func ParseCatalog(data []byte) (*Catalog, error) {
	var defs []models.Badge
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse badge catalog: %w", err)
	}
	if len(defs) == 0 {
		return nil, errors.New("badge catalog is empty")
	}

	c := &Catalog{badges: defs, index: make(map[string]int, len(defs))}
	for i, b := range defs {
		id := strings.TrimSpace(b.ID)
		if id == "" {
			return nil, fmt.Errorf("badge at position %d has no id", i)
		}
		if _, dup := c.index[id]; dup {
			return nil, fmt.Errorf("duplicate badge id %q", id)
		}
		if b.Criteria.Type == "" {
			return nil, fmt.Errorf("badge %q has no criteria type", id)
		}
		c.index[id] = i
	}
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalogue embedded in the binary
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := ParseCatalog(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// All returns the badges in declaration order
func (c *Catalog) All() []models.Badge {
	out := make([]models.Badge, len(c.badges))
	copy(out, c.badges)
	return out
}

// Lookup finds a badge by id
func (c *Catalog) Lookup(id string) (models.Badge, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.Badge{}, false
	}
	return c.badges[i], true
}

// Len returns the number of badges
func (c *Catalog) Len() int {
	return len(c.badges)
}
