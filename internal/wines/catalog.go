// Package wines serves the static wine catalog and its filters.
package wines

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/store"
)

// Catalog column names.
const (
	ColWineType     = "Wine Type"
	ColCompanyName  = "Company Name"
	ColWinePrice    = "Wine Price"
	ColTastingScore = "Tasting Score"
)

// Wine is one catalog row. Fields holds every column as read; Price and Score are
// nil when their cell is blank or not a number.
type Wine struct {
	Fields map[string]string
	Price  *float64
	Score  *float64
}

// Filter narrows the catalog. Zero values do not filter.
type Filter struct {
	WineType string
	Supplier string
	MinPrice *float64
	MaxPrice *float64
	MinScore *float64
	MaxScore *float64
}

// Catalog is an immutable, in-memory copy of the catalog file.
type Catalog struct {
	columns []string
	wines   []Wine
}

// Load reads the catalog at path. A missing file gives an empty catalog.
func Load(path string) (*Catalog, error) {
	t, err := store.ReadTable(path)
	if err != nil {
		return nil, fmt.Errorf("load wine catalog: %w", err)
	}
	c := &Catalog{columns: t.Columns, wines: make([]Wine, 0, len(t.Rows))}
	for _, row := range t.Rows {
		c.wines = append(c.wines, Wine{
			Fields: row,
			Price:  parseNumber(row[ColWinePrice]),
			Score:  parseNumber(row[ColTastingScore]),
		})
	}
	return c, nil
}

func parseNumber(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

// Columns returns the catalog header.
func (c *Catalog) Columns() []string { return c.columns }

// Len returns the number of wines.
func (c *Catalog) Len() int { return len(c.wines) }

// Filter returns the wines matching f in catalog order. Text filters are
// case-insensitive substring matches; numeric bounds are inclusive and exclude
// wines whose value is missing.
func (c *Catalog) Filter(f Filter) []Wine {
	wineType := strings.ToLower(strings.TrimSpace(f.WineType))
	supplier := strings.ToLower(strings.TrimSpace(f.Supplier))

	out := make([]Wine, 0, len(c.wines))
	for _, w := range c.wines {
		if wineType != "" && !strings.Contains(strings.ToLower(w.Fields[ColWineType]), wineType) {
			continue
		}
		if supplier != "" && !strings.Contains(strings.ToLower(w.Fields[ColCompanyName]), supplier) {
			continue
		}
		if !within(w.Price, f.MinPrice, f.MaxPrice) || !within(w.Score, f.MinScore, f.MaxScore) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func within(v, lo, hi *float64) bool {
	if lo == nil && hi == nil {
		return true
	}
	if v == nil {
		return false
	}
	if lo != nil && *v < *lo {
		return false
	}
	if hi != nil && *v > *hi {
		return false
	}
	return true
}
