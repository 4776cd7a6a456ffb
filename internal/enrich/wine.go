// Package enrich attaches synthetic wine attributes to restaurant captures.
package enrich

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
)

var (
	WineTypes    = []string{"Red", "White", "Sparkling", "Rosé"}
	Suppliers    = []string{"Wine Co.", "Vineyard Delights", "Global Wines Ltd.", "Fine Wine Suppliers"}
	QualityTiers = []string{"Premium", "Mid-tier", "Entry-level"}
)

const (
	MinQuantity = 10
	MaxQuantity = 100
)

// Enricher produces wine attributes for one restaurant.
type Enricher interface {
	Generate() models.WineAttributes
}

// WineEnricher draws attributes uniformly from fixed lists. It is safe for concurrent use.
type WineEnricher struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWineEnricher seeds from the wall clock. Use NewSeededWineEnricher for reproducible draws.
func NewWineEnricher() *WineEnricher {
	seed := uint64(time.Now().UnixNano())
	return NewSeededWineEnricher(seed, seed>>1)
}

func NewSeededWineEnricher(seed1, seed2 uint64) *WineEnricher {
	return &WineEnricher{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Generate returns one independent draw. QuantityAvailable is in [MinQuantity, MaxQuantity].
func (e *WineEnricher) Generate() models.WineAttributes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return models.WineAttributes{
		WineType:          WineTypes[e.rng.IntN(len(WineTypes))],
		Supplier:          Suppliers[e.rng.IntN(len(Suppliers))],
		QualityTier:       QualityTiers[e.rng.IntN(len(QualityTiers))],
		QuantityAvailable: MinQuantity + e.rng.IntN(MaxQuantity-MinQuantity+1),
	}
}
