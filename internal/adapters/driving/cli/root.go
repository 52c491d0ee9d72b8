// Package cli implements the chanscout command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driving"
	"github.com/custodia-labs/chanscout/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// skipBootstrap marks commands that run without services.
const skipBootstrap = "skip-bootstrap"

var (
	verbose    bool
	configFile string
	ephemeral  bool
)

// Services wired into the commands.
var (
	searchService   driving.SearchService
	historyService  driving.HistoryService
	watchService    driving.WatchService
	settingsService driving.SettingsService
	watchFile       WatchFileSource
)

// WatchFileSource declares watches in a file and re-applies them on change.
type WatchFileSource interface {
	Path() string
	IDPrefix() string
	Run(ctx context.Context, apply func([]domain.Watch)) error
}

// Services holds the driving ports the commands use.
// Search, History and Watch are nil when no session is configured.
type Services struct {
	Search   driving.SearchService
	History  driving.HistoryService
	Watch    driving.WatchService
	Settings driving.SettingsService

	// WatchFile is optional.
	WatchFile WatchFileSource
}

// Options are the global flags passed to a Bootstrap.
type Options struct {
	ConfigFile string
	Ephemeral  bool
}

// Bootstrap builds services once flags are parsed. The returned close
// function releases stores and connections.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func() error, error)

var (
	bootstrap     Bootstrap
	closeServices func() error
)

var rootCmd = &cobra.Command{
	Use:   "chanscout",
	Short: "Keyword search over Telegram channels",
	Long: `chanscout pages through Telegram channel history, matches messages
against keywords and caches the results.

Searches respect the network's rate limits: throttled channels are retried
after their cooldown and unreachable channels mark the result partial
instead of failing it.`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logging")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ~/.chanscout/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&ephemeral, "ephemeral", false, "keep history and watches in memory only")
}

// SetServices sets the services used by the commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	searchService = s.Search
	historyService = s.History
	watchService = s.Watch
	settingsService = s.Settings
	watchFile = s.WatchFile
}

// SetBootstrap sets the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command and releases services afterwards.
func Execute(ctx context.Context) error {
	defer func() {
		if closeServices == nil {
			return
		}
		if err := closeServices(); err != nil {
			logger.Warn("closing services: %v", err)
		}
		closeServices = nil
	}()
	return rootCmd.ExecuteContext(ctx)
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd.Annotations[skipBootstrap] != "" {
		return nil
	}

	services, closer, err := bootstrap(cmd.Context(), Options{
		ConfigFile: configFile,
		Ephemeral:  ephemeral,
	})
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}
	SetServices(services)
	closeServices = closer
	return nil
}

// errSessionMissing explains how to configure the gateway session.
var errSessionMissing = fmt.Errorf(
	"%w: set session.endpoint and session.token with 'chanscout config set'",
	domain.ErrSessionNotConfigured,
)

// requireSearch returns the search service or explains why there is none.
func requireSearch() (driving.SearchService, error) {
	if searchService != nil {
		return searchService, nil
	}
	if settingsService != nil {
		return nil, errSessionMissing
	}
	return nil, errors.New("search service not configured")
}

// currentSettings returns stored settings, or defaults when none are wired.
func currentSettings() *domain.Settings {
	if settingsService == nil {
		d := domain.DefaultSettings()
		return &d
	}
	return settingsService.Get()
}
