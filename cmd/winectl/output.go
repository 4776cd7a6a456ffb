package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/logistics"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/restaurants"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/wines"
)

func printWarning(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "warning: "+format+"\n", args...)
}

func printRestaurants(w io.Writer, res restaurants.Result) {
	fmt.Fprintf(w, "%s: %d restaurants (%s)\n", res.City, len(res.Records), res.Source)
	if res.Degraded {
		printWarning(w, "places provider unavailable: %s", res.Reason)
	}
	if res.Source == restaurants.SourceMiss && len(res.Records) > 0 && !res.Persisted {
		printWarning(w, "batch was not saved")
	}
	if len(res.Records) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESS\tWINE\tSUPPLIER\tTIER\tQTY")
	for _, r := range res.Records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.Name, r.Address, r.Wine.WineType, r.Wine.Supplier, r.Wine.QualityTier, r.Wine.QuantityAvailable)
	}
	_ = tw.Flush()
}

func printLogistics(w io.Writer, res *logistics.Result) {
	b := res.Best
	fmt.Fprintf(w, "Best flight: %s %s, %s, %d stop(s), %s\n", b.Price, b.Currency, b.Airline, b.Stops, b.CabinClass)
	fmt.Fprintf(w, "  %s -> %s, departs %s, arrives %s (%s)\n",
		b.Origin, b.Destination, b.DepartureTime, logistics.FormatArrival(b.ArrivalTime), b.Duration)

	s := res.Weather.Sample
	if res.Weather.Placeholder {
		fmt.Fprintf(w, "Arrival weather: %s\n", s.Description)
	} else {
		fmt.Fprintf(w, "Arrival weather: %s, %.1f C (%.1f/%.1f), humidity %d%%, wind %.1f m/s\n",
			s.Description, s.Temperature, s.TempMin, s.TempMax, s.Humidity, s.WindSpeed)
	}

	if len(res.Traffic) == 0 {
		fmt.Fprintln(w, "Traffic: no route")
	}
	for _, sec := range res.Traffic {
		fmt.Fprintf(w, "Traffic: %d m in %d s (delay %d s), level %s\n",
			sec.LengthMeters, sec.TravelTimeSeconds, sec.TrafficDelaySeconds, sec.TrafficLevel)
	}

	providers := make([]string, 0, len(res.Degraded))
	for p := range res.Degraded {
		providers = append(providers, p)
	}
	sort.Strings(providers)
	for _, p := range providers {
		printWarning(w, "%s degraded: %s", p, res.Degraded[p])
	}
	if res.SnapshotPath != "" {
		if res.Persisted {
			fmt.Fprintf(w, "Snapshot written to %s\n", res.SnapshotPath)
		} else {
			printWarning(w, "snapshot not written to %s", res.SnapshotPath)
		}
	}
}

func printWines(w io.Writer, columns []string, matched []wines.Wine) {
	fmt.Fprintf(w, "%d wines\n", len(matched))
	if len(matched) == 0 || len(columns) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columns, "\t"))
	for _, wine := range matched {
		cells := make([]string, len(columns))
		for i, c := range columns {
			cells[i] = wine.Fields[c]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()
}
