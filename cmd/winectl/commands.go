package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/app"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/config"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/logistics"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/observability"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/restaurants"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/validation"
	"github.com/BDE-Project/BDE-Project-wine-trading-platform/internal/wines"
)

type restaurantLookup interface {
	GetOrFetch(ctx context.Context, city string, window time.Duration) (restaurants.Result, error)
}

type logisticsSnapshotter interface {
	Snapshot(ctx context.Context) (*logistics.Result, error)
	Invalidate(ctx context.Context) error
}

type wineCatalog interface {
	Columns() []string
	Filter(f wines.Filter) []wines.Wine
}

// deps are the services a command needs. close releases them.
type deps struct {
	restaurants restaurantLookup
	logistics   logisticsSnapshotter
	wines       wineCatalog
	window      time.Duration
	logger      *zap.Logger
	close       func() error
}

type depsLoader func() (*deps, error)

func loadDeps() (*deps, error) {
	logger, err := observability.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	a, err := app.Build(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &deps{
		restaurants: a.Restaurants,
		logistics:   a.Logistics,
		wines:       a.Wines,
		window:      cfg.FreshnessWindow,
		logger:      logger,
		close: func() error {
			_ = logger.Sync()
			return a.Close()
		},
	}, nil
}

func newRootCmd(load depsLoader) *cobra.Command {
	root := &cobra.Command{
		Use:           "winectl",
		Short:         "Restaurant, flight logistics and wine catalog lookups",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "print the full result as JSON")
	root.AddCommand(newRestaurantsCmd(load), newLogisticsCmd(load), newWinesCmd(load))
	return root
}

// runWith loads deps, tags the context with a run ID and calls fn.
func runWith(cmd *cobra.Command, load depsLoader, fn func(ctx context.Context, d *deps) error) error {
	d, err := load()
	if err != nil {
		return err
	}
	defer func() {
		if d.close != nil {
			_ = d.close()
		}
	}()
	logger := d.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.New().String()
	ctx := observability.WithCorrelationID(cmd.Context(), runID)
	ctx = observability.WithLogger(ctx, logger.With(zap.String("correlation_id", runID)))
	return fn(ctx, d)
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- restaurants ---

func newRestaurantsCmd(load depsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restaurants",
		Short: "List restaurants for a city, fetching only when the local table is stale",
		Long: `List restaurants for a city.

The local table is used when its newest capture for the city is within the
freshness window; otherwise the places provider is queried and the new batch
is appended.

Examples:
  winectl restaurants --city "San Francisco"
  winectl restaurants --city Boston --window 1h --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			city, _ := cmd.Flags().GetString("city")
			window, _ := cmd.Flags().GetDuration("window")
			city, err := validation.ValidateCity(city, 100)
			if err != nil {
				return fmt.Errorf("--city: %w", err)
			}
			return runWith(cmd, load, func(ctx context.Context, d *deps) error {
				if window <= 0 {
					window = d.window
				}
				res, err := d.restaurants.GetOrFetch(ctx, city, window)
				if err != nil {
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), res)
				}
				printRestaurants(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().String("city", "San Francisco", "city to look up")
	cmd.Flags().Duration("window", 0, "freshness window (default from config)")
	return cmd
}

// --- logistics ---

func newLogisticsCmd(load depsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logistics",
		Short: "Pick the cheapest configured flight and report arrival weather and traffic",
		Long: `Build one logistics snapshot and write it to the snapshot file.

The call waits on the flight rate gate before selecting, so it takes at least
the configured rate_gate_interval.

Examples:
  winectl logistics
  winectl logistics --refresh --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refresh, _ := cmd.Flags().GetBool("refresh")
			return runWith(cmd, load, func(ctx context.Context, d *deps) error {
				if refresh {
					if err := d.logistics.Invalidate(ctx); err != nil {
						printWarning(cmd.ErrOrStderr(), "invalidate: %v", err)
					}
				}
				res, err := d.logistics.Snapshot(ctx)
				if err != nil {
					var failure *logistics.Failure
					if errors.As(err, &failure) {
						return errors.New(failureMessage(failure))
					}
					return err
				}
				if wantJSON(cmd) {
					return printJSON(cmd.OutOrStdout(), res)
				}
				printLogistics(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().Bool("refresh", false, "drop memoized upstream results first")
	return cmd
}

func failureMessage(f *logistics.Failure) string {
	switch f.Reason {
	case logistics.ReasonNoOffers:
		return "No flight offers available."
	case logistics.ReasonSelectionError:
		return "No best flight found."
	default:
		return "Failed to fetch flight data."
	}
}

// --- wines ---

func newWinesCmd(load depsLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wines",
		Short: "Filter the wine catalog",
		Long: `Filter the wine catalog by type, supplier, price and tasting score.

Examples:
  winectl wines --type merlot
  winectl wines --supplier "Supplier A" --min-price 50 --max-score 95`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := wineFilterFromFlags(cmd)
			if err != nil {
				return err
			}
			return runWith(cmd, load, func(ctx context.Context, d *deps) error {
				matched := d.wines.Filter(filter)
				if wantJSON(cmd) {
					rows := make([]map[string]string, 0, len(matched))
					for _, w := range matched {
						rows = append(rows, w.Fields)
					}
					return printJSON(cmd.OutOrStdout(), rows)
				}
				printWines(cmd.OutOrStdout(), d.wines.Columns(), matched)
				return nil
			})
		},
	}
	cmd.Flags().String("type", "", "wine type (case-insensitive substring)")
	cmd.Flags().String("supplier", "", "supplier (case-insensitive substring)")
	for _, name := range []string{"min-price", "max-price", "min-score", "max-score"} {
		cmd.Flags().String(name, "", "inclusive bound")
	}
	return cmd
}

func wineFilterFromFlags(cmd *cobra.Command) (wines.Filter, error) {
	var f wines.Filter
	f.WineType, _ = cmd.Flags().GetString("type")
	f.Supplier, _ = cmd.Flags().GetString("supplier")
	bounds := map[string]**float64{
		"min-price": &f.MinPrice,
		"max-price": &f.MaxPrice,
		"min-score": &f.MinScore,
		"max-score": &f.MaxScore,
	}
	for name, dst := range bounds {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return wines.Filter{}, fmt.Errorf("--%s must be a number", name)
		}
		*dst = &v
	}
	return f, nil
}
