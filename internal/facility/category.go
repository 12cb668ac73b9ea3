package facility

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind enumerates the categories the engine knows about. KindOther is the
// fallback arm for any other category name.
type Kind uint8

// Known category kinds.
const (
	KindOther Kind = iota
	KindHospital
	KindSchool
	KindATM
	KindBank
	KindPetrolPump
	KindPolice
	KindFireStation
	KindPark
)

var kindNames = map[Kind]string{
	KindHospital:    "hospital",
	KindSchool:      "school",
	KindATM:         "atm",
	KindBank:        "bank",
	KindPetrolPump:  "petrol_pump",
	KindPolice:      "police",
	KindFireStation: "fire_station",
	KindPark:        "park",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// BoundaryCategory is the reserved category name of the project boundary record.
const BoundaryCategory = "project_boundary"

// Category is a facility category: one of the known kinds, or KindOther
// carrying the normalized raw name. The zero value is invalid.
type Category struct {
	kind Kind
	name string
}

// Known category values.
var (
	Hospital    = Category{KindHospital, "hospital"}
	School      = Category{KindSchool, "school"}
	ATM         = Category{KindATM, "atm"}
	Bank        = Category{KindBank, "bank"}
	PetrolPump  = Category{KindPetrolPump, "petrol_pump"}
	Police      = Category{KindPolice, "police"}
	FireStation = Category{KindFireStation, "fire_station"}
	Park        = Category{KindPark, "park"}
)

// KnownCategories returns the closed core of categories in declaration order.
func KnownCategories() []Category {
	return []Category{Hospital, School, ATM, Bank, PetrolPump, Police, FireStation, Park}
}

// ParseCategory normalizes s (trimmed, lower-cased, spaces and dashes
// replaced by underscores) and maps it to a known kind when possible.
func ParseCategory(s string) (Category, error) {
	name := normalizeCategory(s)
	if name == "" {
		return Category{}, &ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if k, ok := kindByName[name]; ok {
		return Category{kind: k, name: name}, nil
	}
	return Category{kind: KindOther, name: name}, nil
}

// MustCategory is ParseCategory for literals; it panics on empty input.
func MustCategory(s string) Category {
	c, err := ParseCategory(s)
	if err != nil {
		panic(err)
	}
	return c
}

func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Join(strings.Fields(s), "_")
	return strings.ReplaceAll(s, "-", "_")
}

// Kind returns the category kind; unknown categories report KindOther.
func (c Category) Kind() Kind { return c.kind }

// Known reports whether the category belongs to the closed core.
func (c Category) Known() bool { return c.kind != KindOther }

// IsZero reports whether c is the invalid zero value.
func (c Category) IsZero() bool { return c.name == "" }

// String returns the normalized category name.
func (c Category) String() string { return c.name }

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if c.IsZero() {
		return nil, eris.New("facility: marshal empty category")
	}
	return []byte(c.name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
