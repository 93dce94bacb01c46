package seed

import (
	"testing"

	"localpulse/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)
	require.NotEmpty(t, c.States)

	assert.True(t, c.Contains(models.Geography{State: "Bihar"}))
	assert.True(t, c.Contains(models.Geography{State: "Bihar", District: "Patna", Block: "Danapur"}))
	assert.False(t, c.Contains(models.Geography{State: "Bihar", District: "Pune"}))
	assert.False(t, c.Contains(models.Geography{State: "Atlantis"}))
}

func TestParseCatalogRejectsEmpty(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no states", "states: []"},
		{"state without districts", "states:\n  - name: Goa\n"},
		{"invalid yaml", "states: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestCatalogPickStaysInCatalog(t *testing.T) {
	c, err := LoadCatalog()
	require.NoError(t, err)
	f := gofakeit.New(42)

	depths := map[int]bool{}
	for i := 0; i < 200; i++ {
		g := c.Pick(f)
		require.True(t, c.Contains(g), "picked %+v", g)
		switch {
		case g.Block != "":
			depths[3] = true
		case g.District != "":
			depths[2] = true
		default:
			depths[1] = true
		}
	}
	assert.Len(t, depths, 3, "every depth is produced")
}
