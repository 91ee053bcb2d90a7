package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		tags          map[string]string
		categories    []Category
		wantExisting  bool
		wantCandidate bool
	}{
		{
			name:       "restaurant is food",
			tags:       map[string]string{"amenity": "restaurant"},
			categories: []Category{CategoryFood},
		},
		{
			name:       "food court is food",
			tags:       map[string]string{"amenity": "food_court"},
			categories: []Category{CategoryFood},
		},
		{
			name:          "fuel is reference and candidate",
			tags:          map[string]string{"amenity": "fuel"},
			categories:    []Category{CategoryFuel},
			wantCandidate: true,
		},
		{
			name:          "parking is candidate only",
			tags:          map[string]string{"amenity": "parking"},
			wantCandidate: true,
		},
		{
			name:          "mall is retail and candidate",
			tags:          map[string]string{"shop": "mall"},
			categories:    []Category{CategoryRetail},
			wantCandidate: true,
		},
		{
			name:       "supermarket is retail",
			tags:       map[string]string{"shop": "supermarket"},
			categories: []Category{CategoryRetail},
		},
		{
			name:       "apartments are residential",
			tags:       map[string]string{"building": "apartments"},
			categories: []Category{CategoryResidential},
		},
		{
			name:         "charging station is existing",
			tags:         map[string]string{"amenity": "charging_station"},
			wantExisting: true,
		},
		{
			name:       "case and whitespace insensitive",
			tags:       map[string]string{"amenity": " Restaurant "},
			categories: []Category{CategoryFood},
		},
		{
			name: "unrelated tags",
			tags: map[string]string{"amenity": "bench", "shop": "bakery"},
		},
		{
			name: "nil tags",
			tags: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.tags)
			assert.Equal(t, tt.categories, got.Categories)
			assert.Equal(t, tt.wantExisting, got.Existing)
			assert.Equal(t, tt.wantCandidate, got.Candidate)
		})
	}
}

func TestRolesEmpty(t *testing.T) {
	assert.True(t, Classify(map[string]string{"amenity": "bench"}).Empty())
	assert.False(t, Classify(map[string]string{"amenity": "parking"}).Empty())
}
