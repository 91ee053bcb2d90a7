package geo

import "strings"

// Roles describes what a tagged map feature contributes to a siting run.
// A single feature may play several roles: a fuel station is both a fuel
// reference point and a candidate site.
type Roles struct {
	Categories []Category
	Existing   bool
	Candidate  bool
}

// Empty reports whether the feature plays no role at all.
func (r Roles) Empty() bool {
	return len(r.Categories) == 0 && !r.Existing && !r.Candidate
}

// Tag values recognised by Classify.
const (
	tagAmenity  = "amenity"
	tagShop     = "shop"
	tagBuilding = "building"
)

// Classify maps OpenStreetMap-style tags to siting roles.
// Rules:
//   - amenity-food: amenity is food_court or restaurant
//   - amenity-fuel: amenity is fuel
//   - retail: shop is mall or supermarket
//   - residential: building is apartments
//   - existing facility: amenity is charging_station
//   - candidate: amenity is fuel or parking, or shop is mall
func Classify(tags map[string]string) Roles {
	amenity := tagValue(tags, tagAmenity)
	shop := tagValue(tags, tagShop)
	building := tagValue(tags, tagBuilding)

	var r Roles
	switch amenity {
	case "food_court", "restaurant":
		r.Categories = append(r.Categories, CategoryFood)
	case "fuel":
		r.Categories = append(r.Categories, CategoryFuel)
	case "charging_station":
		r.Existing = true
	}
	switch shop {
	case "mall", "supermarket":
		r.Categories = append(r.Categories, CategoryRetail)
	}
	if building == "apartments" {
		r.Categories = append(r.Categories, CategoryResidential)
	}

	r.Candidate = amenity == "fuel" || amenity == "parking" || shop == "mall"
	return r
}

func tagValue(tags map[string]string, key string) string {
	return strings.ToLower(strings.TrimSpace(tags[key]))
}
