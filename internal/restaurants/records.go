package restaurants

import (
	"strconv"
	"strings"
	"time"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/models"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/store"
)

// TimestampLayout is the capture timestamp format, local time with optional microseconds.
const TimestampLayout = "2006-01-02 15:04:05.999999"

// Persisted column names.
const (
	ColCity         = "City"
	ColTimestamp    = "Timestamp"
	ColName         = "Restaurant Name"
	ColAddress      = "Address"
	ColLatitude     = "Latitude"
	ColLongitude    = "Longitude"
	ColOpeningHours = "Opening Hours"
	ColWineType     = "Wine Type"
	ColSupplier     = "Supplier"
	ColQualityTier  = "Quality Tier"
	ColQuantity     = "Quantity Available"
)

// Columns is the header order written for new files.
var Columns = []string{
	ColCity, ColTimestamp, ColName, ColAddress, ColLatitude, ColLongitude,
	ColOpeningHours, ColWineType, ColSupplier, ColQualityTier, ColQuantity,
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toRow(r models.RestaurantRecord) store.Row {
	return store.Row{
		ColCity:         r.City,
		ColTimestamp:    r.Timestamp.Format(TimestampLayout),
		ColName:         r.Name,
		ColAddress:      r.Address,
		ColLatitude:     formatFloat(r.Latitude),
		ColLongitude:    formatFloat(r.Longitude),
		ColOpeningHours: r.OpeningHours,
		ColWineType:     r.Wine.WineType,
		ColSupplier:     r.Wine.Supplier,
		ColQualityTier:  r.Wine.QualityTier,
		ColQuantity:     strconv.Itoa(r.Wine.QuantityAvailable),
	}
}

// parseTimestamp reads a stored capture time. ok is false for blank or malformed cells.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// fromRow decodes a stored row. Numeric cells that do not parse read as zero.
func fromRow(row store.Row) models.RestaurantRecord {
	ts, _ := parseTimestamp(row[ColTimestamp])
	lat, _ := strconv.ParseFloat(strings.TrimSpace(row[ColLatitude]), 64)
	lng, _ := strconv.ParseFloat(strings.TrimSpace(row[ColLongitude]), 64)
	qty, _ := strconv.Atoi(strings.TrimSpace(row[ColQuantity]))
	return models.RestaurantRecord{
		City:         row[ColCity],
		Timestamp:    ts,
		Name:         row[ColName],
		Address:      row[ColAddress],
		Latitude:     lat,
		Longitude:    lng,
		OpeningHours: row[ColOpeningHours],
		Wine: models.WineAttributes{
			WineType:          row[ColWineType],
			Supplier:          row[ColSupplier],
			QualityTier:       row[ColQualityTier],
			QuantityAvailable: qty,
		},
	}
}

// toTable builds the batch appended for one fetch.
func toTable(records []models.RestaurantRecord) *store.Table {
	t := store.NewTable(Columns...)
	for _, r := range records {
		t.Append(toRow(r))
	}
	return t
}
