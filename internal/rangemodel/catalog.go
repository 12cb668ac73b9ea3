package rangemodel

import (
	"hash/fnv"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/coverage-cli/internal/facility"
)

// Profile holds the range parameters and display style of one category.
type Profile struct {
	BaseKM float64 `yaml:"base_km" json:"base_km"`
	MinKM  float64 `yaml:"min_km" json:"min_km"`
	MaxKM  float64 `yaml:"max_km" json:"max_km"`
	Label  string  `yaml:"label" json:"label"`
	Color  string  `yaml:"color" json:"color"`
}

func (p Profile) valid() bool {
	return p.BaseKM > 0 && p.MinKM > 0 && p.MaxKM >= p.MinKM
}

// Fallback parameters for categories without a profile.
var fallbackProfile = Profile{BaseKM: 2.0, MinKM: 0.1, MaxKM: 25.0}

// fallbackPalette colours unknown categories. The entry is picked by hashing
// the category name so the same name always gets the same colour.
var fallbackPalette = []string{
	"#6c5ce7", "#00b894", "#fdcb6e", "#e17055", "#0984e3",
	"#d63031", "#e84393", "#2d3436", "#00cec9", "#a29bfe",
}

func defaultProfiles() map[string]Profile {
	return map[string]Profile{
		"hospital":     {BaseKM: 5.0, MinKM: 1.0, MaxKM: 15.0, Label: "Hospital", Color: "#e74c3c"},
		"school":       {BaseKM: 2.0, MinKM: 0.5, MaxKM: 6.0, Label: "School", Color: "#f39c12"},
		"atm":          {BaseKM: 1.0, MinKM: 0.2, MaxKM: 3.0, Label: "ATM", Color: "#27ae60"},
		"bank":         {BaseKM: 2.0, MinKM: 0.5, MaxKM: 5.0, Label: "Bank", Color: "#2980b9"},
		"petrol_pump":  {BaseKM: 3.0, MinKM: 0.5, MaxKM: 8.0, Label: "Petrol Pump", Color: "#8e44ad"},
		"police":       {BaseKM: 4.0, MinKM: 1.0, MaxKM: 10.0, Label: "Police", Color: "#34495e"},
		"fire_station": {BaseKM: 5.0, MinKM: 1.0, MaxKM: 12.0, Label: "Fire Station", Color: "#d35400"},
		"park":         {BaseKM: 1.5, MinKM: 0.3, MaxKM: 4.0, Label: "Park", Color: "#16a085"},
	}
}

// Catalog maps category names to profiles. It is immutable after construction.
type Catalog struct {
	profiles map[string]Profile
	fallback Profile
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{
		profiles: defaultProfiles(),
		fallback: fallbackProfile,
	}
}

type catalogFile struct {
	Fallback   *Profile           `yaml:"fallback"`
	Categories map[string]Profile `yaml:"categories"`
}

// LoadCatalog reads YAML overrides on top of the built-in catalog. Entries
// replace whole profiles; category keys are normalized like facility categories.
//
//	fallback: {base_km: 2, min_km: 0.1, max_km: 25}
//	categories:
//	  pharmacy: {base_km: 1.5, min_km: 0.3, max_km: 4, label: Pharmacy, color: "#00a8ff"}
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rangemodel: read catalog %s", path)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses YAML catalog overrides.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "rangemodel: parse catalog")
	}

	c := DefaultCatalog()
	if f.Fallback != nil {
		if !f.Fallback.valid() {
			return nil, eris.New("rangemodel: fallback profile needs base_km > 0 and 0 < min_km <= max_km")
		}
		c.fallback = *f.Fallback
	}
	for name, p := range f.Categories {
		cat, err := facility.ParseCategory(name)
		if err != nil {
			return nil, eris.Wrap(err, "rangemodel: catalog category")
		}
		if !p.valid() {
			return nil, eris.Errorf("rangemodel: profile %q needs base_km > 0 and 0 < min_km <= max_km", name)
		}
		c.profiles[cat.String()] = p
	}
	return c, nil
}

// Lookup returns the profile for c. Categories without an entry get the
// fallback range, a hashed palette colour and a title-cased label.
func (c *Catalog) Lookup(cat facility.Category) Profile {
	name := cat.String()
	p, ok := c.profiles[name]
	if !ok {
		p = c.fallback
	}
	if p.Label == "" {
		// Casers carry state, so each lookup gets its own.
		p.Label = cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
	}
	if p.Color == "" {
		p.Color = paletteColor(name)
	}
	return p
}

// Names returns the categories with an explicit profile, sorted.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the catalog has an explicit profile for cat.
func (c *Catalog) Has(cat facility.Category) bool {
	_, ok := c.profiles[cat.String()]
	return ok
}

func paletteColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return fallbackPalette[h.Sum32()%uint32(len(fallbackPalette))]
}
