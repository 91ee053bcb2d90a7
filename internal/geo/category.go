package geo

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Category identifies a class of reference points that make a nearby
// candidate more desirable.
type Category string

// Reference point categories.
const (
	CategoryFood        Category = "amenity-food"
	CategoryFuel        Category = "amenity-fuel"
	CategoryRetail      Category = "retail"
	CategoryResidential Category = "residential"
)

// AllCategories lists every category in a fixed order. Scoring iterates in
// this order so results never depend on map iteration.
var AllCategories = []Category{
	CategoryFood,
	CategoryFuel,
	CategoryRetail,
	CategoryResidential,
}

// DefaultWeights returns the default weight per category.
func DefaultWeights() map[Category]float64 {
	return map[Category]float64{
		CategoryFood:        1.5,
		CategoryFuel:        2.0,
		CategoryRetail:      1.2,
		CategoryResidential: 0.8,
	}
}

// ParseCategory converts a config or request key into a Category.
func ParseCategory(s string) (Category, error) {
	key := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, c := range AllCategories {
		if c == key {
			return c, nil
		}
	}
	return "", eris.Errorf("geo: unknown category %q", s)
}

// Valid reports whether c is one of AllCategories.
func (c Category) Valid() bool {
	_, err := ParseCategory(string(c))
	return err == nil
}
