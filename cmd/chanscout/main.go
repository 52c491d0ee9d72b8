// Command chanscout searches Telegram channels for keywords.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/custodia-labs/chanscout/internal/adapters/driven/config/file"
	"github.com/custodia-labs/chanscout/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/chanscout/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/chanscout/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/chanscout/internal/adapters/driven/telegram"
	"github.com/custodia-labs/chanscout/internal/adapters/driving/cli"
	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
	"github.com/custodia-labs/chanscout/internal/core/services"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}

// stores groups the persistence ports.
type stores struct {
	requests driven.RequestStore
	watches  driven.WatchStore
	marks    driven.WatermarkStore
	close    func() error
}

// bootstrap wires adapters into services once flags are known.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func() error, error) {
	configStore, err := openConfig(opts.ConfigFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore)
	settings := settingsService.Get()
	logger.Debug("config: %s", settingsService.Path())

	st, err := openStores(settings.DataDir, opts.Ephemeral)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{st.close}
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	out := &cli.Services{Settings: settingsService}
	if settings.Watch.File != "" {
		out.WatchFile = file.NewWatchFileLoader(settings.Watch.File)
	}

	var search driving.SearchService
	session, err := telegram.NewClient(ctx, settings.Session)
	switch {
	case errors.Is(err, domain.ErrSessionNotConfigured):
		logger.Debug("session not configured, search is unavailable")
		out.History = services.NewHistoryService(st.requests, nil)
	case err != nil:
		_ = closeAll()
		return nil, nil, fmt.Errorf("creating session client: %w", err)
	default:
		closers = append(closers, session.Close)
		searchService := newSearchService(session, settings, st.requests)
		search = searchService
		out.Search = searchService
		out.History = services.NewHistoryService(st.requests, searchService)
	}

	out.Watch = services.NewWatcher(settings.Watch, settings.Limits, st.watches, st.marks, search, cli.MatchSink())

	return out, closeAll, nil
}

func newSearchService(session driven.SessionClient, settings *domain.Settings, requests driven.RequestStore) *services.SearchService {
	logger.Section("Search")
	logger.Debug("match mode %s, cache ttl %s, scan limit %d", settings.MatchMode, settings.Cache.TTL, settings.Fetch.ScanLimit)

	fetcher := services.NewChannelFetcher(session, ratelimit.New(settings.Rate), settings.Fetch)
	return services.NewSearchService(
		fetcher,
		services.NewKeywordMatcher(settings.MatchMode),
		services.NewResultCache(settings.Cache),
		requests,
		settings.Fetch,
	)
}

func openConfig(path string) (*file.ConfigStore, error) {
	if path != "" {
		return file.OpenConfigFile(path)
	}
	return file.NewConfigStore("")
}

func openStores(dataDir string, ephemeral bool) (*stores, error) {
	if ephemeral {
		logger.Debug("using in-memory stores")
		watches := memory.NewWatchStore()
		return &stores{
			requests: memory.NewRequestStore(),
			watches:  watches,
			marks:    watches,
			close:    func() error { return nil },
		}, nil
	}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Debug("database: %s", store.Path())
	watches := store.WatchStore()
	return &stores{
		requests: store.RequestStore(),
		watches:  watches,
		marks:    watches,
		close:    store.Close,
	}, nil
}
