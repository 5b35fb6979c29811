package points

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEffectTable_DetectByKeyword(t *testing.T) {
	table := NewEffectTable()

	// Keyword containment beats the cost tiers regardless of cost.
	assert.Equal(t, "tada", table.Detect("Confetti Blast", "", 100))
	assert.Equal(t, "perturbation", table.Detect("🌀 Perturbation", "", 500))
	assert.Equal(t, "zoom", table.Detect("ZOOM ZOOM", "", 10))

	// The prompt participates in matching too.
	assert.Equal(t, "shake", table.Detect("Mystery Box", "gives the camera a good shake", 50))
}

func TestEffectTable_DetectByCostTier(t *testing.T) {
	table := NewEffectTable()

	// No keyword matches "Mystery Box"; the cost ladder decides.
	assert.Equal(t, "tada", table.Detect("Mystery Box", "", 1500))
	assert.Equal(t, "tada", table.Detect("Mystery Box", "", 1000))
	assert.Equal(t, "pulse", table.Detect("Mystery Box", "", 600))
	assert.Equal(t, "bounce", table.Detect("Mystery Box", "", 150))
	assert.Equal(t, "flash", table.Detect("Mystery Box", "", 10))
	assert.Equal(t, "flash", table.Detect("Mystery Box", "", 0))
}

func TestEffectTable_DetectIsDeterministic(t *testing.T) {
	table := NewEffectTable()
	for range 10 {
		assert.Equal(t, "tada", table.Detect("Confetti Blast", "", 100))
	}
}

func TestEffectTable_FirstMappingWins(t *testing.T) {
	table := NewEffectTable()
	table.Configure([]Mapping{
		{Keyword: "mega", Effect: "tada"},
		{Keyword: "mega blast", Effect: "flash"},
	})

	// "mega" appears first in the table, so it wins even though the longer
	// keyword also matches.
	assert.Equal(t, "tada", table.Detect("Mega Blast", "", 100))
}

func TestEffectTable_ConfigureNormalizes(t *testing.T) {
	table := NewEffectTable()
	table.Configure([]Mapping{
		{Keyword: "BOOM", Effect: "shake"},
		{Keyword: "", Effect: "flash"},
		{Keyword: "silent", Effect: ""},
	})

	assert.Equal(t, 1, table.Len())
	assert.Equal(t, "shake", table.Detect("boom time", "", 0))
	assert.Equal(t, "shake", table.EffectForKeyword("Boom"))
}

func TestEffectTable_ConfigureTiersSortsDescending(t *testing.T) {
	table := NewEffectTable()
	table.Configure(nil)
	table.ConfigureTiers([]CostTier{
		{MinCost: 50, Effect: "bounce"},
		{MinCost: 2000, Effect: "tada"},
		{MinCost: 300, Effect: "pulse"},
	}, "flash")

	assert.Equal(t, "tada", table.Detect("anything", "", 2500))
	assert.Equal(t, "pulse", table.Detect("anything", "", 300))
	assert.Equal(t, "bounce", table.Detect("anything", "", 60))
	assert.Equal(t, "flash", table.Detect("anything", "", 10))
}

func TestEffectTable_EffectForKeyword(t *testing.T) {
	table := NewEffectTable()

	assert.Equal(t, "tada", table.EffectForKeyword("confetti"))
	assert.Equal(t, "tada", table.EffectForKeyword("CONFETTI"))
	assert.Empty(t, table.EffectForKeyword("unknown"))

	// Exact keyword only; containment is for reward titles.
	assert.Empty(t, table.EffectForKeyword("confetti blast"))
}

func TestEffectTable_MappingsReturnsCopy(t *testing.T) {
	table := NewEffectTable()

	mappings := table.Mappings()
	assert.Equal(t, table.Len(), len(mappings))

	mappings[0] = Mapping{Keyword: "hijack", Effect: "flash"}
	assert.NotEqual(t, "hijack", table.Mappings()[0].Keyword)
}

func TestEffectTable_DefaultMappingCount(t *testing.T) {
	table := NewEffectTable()
	assert.Equal(t, 8, table.Len())

	for i, m := range table.Mappings() {
		assert.NotEmpty(t, m.Keyword, fmt.Sprintf("mapping %d", i))
		assert.NotEmpty(t, m.Effect, fmt.Sprintf("mapping %d", i))
	}
}
