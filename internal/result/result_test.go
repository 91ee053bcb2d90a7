package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siting-cli/internal/geo"
	"github.com/sells-group/siting-cli/internal/model"
)

func fixture() []model.Candidate {
	return []model.Candidate{
		{ID: "a", Point: geo.Point{Lat: 1, Lon: 1}, BenefitScore: 20, NeighbourScore: 2, PopulationCovariate: 0},
		{ID: "b", Point: geo.Point{Lat: 2, Lon: 2}, BenefitScore: 50, NeighbourScore: 3, PopulationCovariate: 40},
		{ID: "c", Point: geo.Point{Lat: 3, Lon: 3}, BenefitScore: 35, NeighbourScore: 1, PopulationCovariate: 50},
		{ID: "d", Point: geo.Point{Lat: 4, Lon: 4}, BenefitScore: 50, NeighbourScore: 5, PopulationCovariate: 0},
	}
}

func TestAssemble_AllFalse(t *testing.T) {
	cands := fixture()
	assignment := map[string]bool{"a": false, "b": false, "c": false, "d": false}
	assert.Empty(t, Assemble(cands, assignment))
	assert.Empty(t, Assemble(cands, nil))
}

func TestAssemble_AllTrue(t *testing.T) {
	cands := fixture()
	assignment := map[string]bool{"a": true, "b": true, "c": true, "d": true}

	sites := Assemble(cands, assignment)
	require.Len(t, sites, len(cands))
	for i, s := range sites {
		assert.Equal(t, cands[i].ID, s.ID)
		assert.Equal(t, cands[i].Point, s.Point)
		assert.Equal(t, cands[i].BenefitScore, s.BenefitScore)
		assert.Equal(t, cands[i].NeighbourScore, s.NeighbourScore)
		assert.Equal(t, cands[i].PopulationCovariate, s.PopulationCovariate)
	}
}

func TestAssemble_Subset(t *testing.T) {
	sites := Assemble(fixture(), map[string]bool{"c": true, "a": true, "zz": true})
	require.Len(t, sites, 2)
	assert.Equal(t, "a", sites[0].ID)
	assert.Equal(t, "c", sites[1].ID)
}

func TestAssemble_SortByBenefit(t *testing.T) {
	assignment := map[string]bool{"a": true, "b": true, "c": true, "d": true}
	sites := Assemble(fixture(), assignment, SortByBenefit())

	var ids []string
	for _, s := range sites {
		ids = append(ids, s.ID)
	}
	// b and d tie; input order is kept.
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids)
}

func TestTag(t *testing.T) {
	cands := fixture()
	tagged := Tag(cands, map[string]bool{"b": true})

	require.Len(t, tagged, len(cands))
	assert.False(t, tagged[0].Selected)
	assert.True(t, tagged[1].Selected)
	assert.False(t, tagged[2].Selected)
	for _, c := range cands {
		assert.False(t, c.Selected, "input must not be modified")
	}
}
