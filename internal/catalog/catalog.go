// Package catalog loads the facility roster from a YAML file and validates
// it before the fetch pipeline ever sees it.
package catalog

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/carelane/waitboard/internal/model"
)

// Catalog is an immutable, validated facility roster keyed by id.
type Catalog struct {
	facilities []model.Facility
	byID       map[string]int
}

type catalogFile struct {
	Facilities []model.Facility `yaml:"facilities"`
}

// Load reads and validates a facility catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	return Parse(data)
}

// Parse validates a YAML facility list from raw bytes.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "catalog: parse yaml")
	}
	if len(file.Facilities) == 0 {
		return nil, eris.New("catalog: no facilities defined")
	}

	byID := make(map[string]int, len(file.Facilities))
	for i, f := range file.Facilities {
		if err := validateFacility(f); err != nil {
			return nil, err
		}
		if _, dup := byID[f.ID]; dup {
			return nil, eris.Errorf("catalog: duplicate facility id %q", f.ID)
		}
		byID[f.ID] = i
	}

	return &Catalog{facilities: file.Facilities, byID: byID}, nil
}

func validateFacility(f model.Facility) error {
	if f.ID == "" {
		return eris.New("catalog: facility missing id")
	}
	if f.Name == "" {
		return eris.Errorf("catalog: facility %q missing name", f.ID)
	}
	if !f.Category.Valid() {
		return eris.Errorf("catalog: facility %q has invalid category %q", f.ID, f.Category)
	}
	if !f.SyntheticOnly && f.APIEndpoint == "" && f.Website == "" {
		return eris.Errorf("catalog: facility %q has no endpoint, website, or synthetic flag", f.ID)
	}
	if f.Hours != nil {
		if err := validateHours(*f.Hours); err != nil {
			return eris.Wrapf(err, "catalog: facility %q", f.ID)
		}
	}
	return nil
}

func validateHours(h model.Hours) error {
	for _, v := range []string{h.Open, h.Close} {
		if _, err := time.Parse("15:04", v); err != nil {
			return eris.Errorf("invalid hours value %q, want HH:MM", v)
		}
	}
	return nil
}

// Facilities returns the roster in file order.
func (c *Catalog) Facilities() []model.Facility {
	out := make([]model.Facility, len(c.facilities))
	copy(out, c.facilities)
	return out
}

// Get looks up one facility by id.
func (c *Catalog) Get(id string) (model.Facility, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.Facility{}, false
	}
	return c.facilities[i], true
}

// Len reports the roster size.
func (c *Catalog) Len() int {
	return len(c.facilities)
}
