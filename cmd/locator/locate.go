package main

import (
	"context"
	"fmt"

	"github.com/couchcryptid/member-locator/internal/adapter/nominatim"
	"github.com/couchcryptid/member-locator/internal/config"
	"github.com/couchcryptid/member-locator/internal/domain"
	"github.com/couchcryptid/member-locator/internal/location"
	"github.com/couchcryptid/member-locator/internal/observability"
	"github.com/couchcryptid/member-locator/internal/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func newLocateCmd() *cobra.Command {
	var noCache bool
	cmd := &cobra.Command{
		Use:   "locate <location>...",
		Short: "Geocode locations the way a run would, through the cache.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return locate(cmd.Context(), configPath, noCache, args)
		},
	}
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "query the backend directly and leave the cache untouched")
	return cmd
}

func locate(ctx context.Context, configPath string, noCache bool, inputs []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := observability.NewLogger(cfg.Log.Level, cfg.Log.Format)
	metrics := observability.NewMetrics()

	client := nominatim.NewClient(nominatim.Options{
		BaseURL:         cfg.Nominatim.BaseURL,
		Email:           cfg.Nominatim.Email,
		UserAgent:       cfg.Nominatim.UserAgent,
		Timeout:         cfg.Nominatim.Timeout,
		Cooldown:        cfg.Nominatim.Cooldown,
		BreakerFailures: cfg.Nominatim.BreakerFailures,
		BreakerTimeout:  cfg.Nominatim.BreakerTimeout,
	}, clockwork.NewRealClock(), metrics, logger)

	var locator domain.Locator = domain.NewBackendLocator(client, logger)
	if !noCache {
		cache, err := store.Open(cfg.Cache.Dir, store.WithLogger(logger))
		if err != nil {
			return err
		}
		defer cache.Close()
		locator = nominatim.NewCachedLocator(locator, cache, metrics, logger)
	}

	tbl := location.DefaultTable()
	normalizer := location.NewNormalizer(tbl, location.DefaultRules())
	classifier := location.NewClassifier(tbl)
	resolver := domain.NewResolver(locator, logger)

	t := newTable()
	t.AppendHeader(table.Row{"Input", "Canonical", "Lat", "Lon", "Radius (m)", "Type", "Place"})
	for _, raw := range inputs {
		canonical := normalizer.Normalize(raw)
		if canonical == "" {
			t.AppendRow(table.Row{raw, "(unusable)"})
			continue
		}
		cl := classifier.Classify(raw, canonical)
		c, outcome := resolver.Resolve(ctx, canonical, cl.Country, cl.PostalCode)
		if outcome != domain.OutcomeResolved {
			t.AppendRow(table.Row{raw, canonical, "", "", "", "", fmt.Sprintf("(%s)", outcome)})
			continue
		}
		t.AppendRow(table.Row{
			raw, canonical, c.Lat, c.Lon,
			domain.RadiusFromBoundingBox(c.BoundingBox).String(),
			c.Type, c.DisplayName,
		})
	}
	t.Render()
	return nil
}
