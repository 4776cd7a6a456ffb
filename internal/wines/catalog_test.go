package wines

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogCSV = `Wine Type,Company Name,Wine Price,Tasting Score,Region
Red,Wine Co.,120,92,Napa
White,Vineyard Delights,45.5,88,Sonoma
Sparkling,Global Wines Ltd.,300,95,Champagne
Rosé,Fine Wine Suppliers,,80,Provence
Red Blend,Vineyard Delights,60,n/a,Paso Robles
`

func loadCatalog(t *testing.T) *Catalog {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wine_restaurants.csv")
	require.NoError(t, os.WriteFile(path, []byte(catalogCSV), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	return c
}

func ptr(f float64) *float64 { return &f }

func names(ws []Wine) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Fields["Region"]
	}
	return out
}

func TestLoad_MissingFile(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.csv"))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.Empty(t, c.Filter(Filter{}))
}

func TestFilter(t *testing.T) {
	c := loadCatalog(t)
	require.Equal(t, 5, c.Len())
	assert.Equal(t, []string{"Wine Type", "Company Name", "Wine Price", "Tasting Score", "Region"}, c.Columns())

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"no filter", Filter{}, []string{"Napa", "Sonoma", "Champagne", "Provence", "Paso Robles"}},
		{"type substring case-insensitive", Filter{WineType: "red"}, []string{"Napa", "Paso Robles"}},
		{"type with accent", Filter{WineType: "ROSÉ"}, []string{"Provence"}},
		{"supplier substring", Filter{Supplier: "vineyard"}, []string{"Sonoma", "Paso Robles"}},
		{"min price inclusive", Filter{MinPrice: ptr(120)}, []string{"Napa", "Champagne"}},
		{"max price excludes missing", Filter{MaxPrice: ptr(100)}, []string{"Sonoma", "Paso Robles"}},
		{"score range", Filter{MinScore: ptr(88), MaxScore: ptr(92)}, []string{"Napa", "Sonoma"}},
		{"combined", Filter{WineType: "red", Supplier: "delights", MinPrice: ptr(50)}, []string{"Paso Robles"}},
		{"nothing matches", Filter{Supplier: "nobody"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(c.Filter(tt.filter)))
		})
	}
}

func TestLoad_ParsesNumbers(t *testing.T) {
	c := loadCatalog(t)
	all := c.Filter(Filter{})
	require.NotNil(t, all[1].Price)
	assert.Equal(t, 45.5, *all[1].Price)
	assert.Nil(t, all[3].Price)
	assert.Nil(t, all[4].Score)
}
