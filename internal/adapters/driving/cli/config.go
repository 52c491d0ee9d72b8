package cli

import (
	"errors"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chanscout/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show the effective settings or change one of them.

Settings are stored in ~/.chanscout/config.toml unless --config names
another file. The session token may also be supplied through the
CHANSCOUT_SESSION_TOKEN environment variable.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective settings",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:     "set [key] [value]",
	Short:   "Change one setting",
	Example: `  chanscout config set session.endpoint https://gateway.example.com
  chanscout config set cache.ttl 30m
  chanscout config set match.mode fuzzy`,
	Args:    cobra.ExactArgs(2),
	RunE:    runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:         "keys",
	Short:       "List recognised setting keys",
	Annotations: map[string]string{skipBootstrap: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		for _, k := range services.Keys() {
			cmd.Println(k)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	s := settingsService.Get()
	p := newPainter(cmd.OutOrStdout())

	cmd.Println(p.title("Session"))
	cmd.Printf("  Endpoint: %s\n", orUnset(s.Session.Endpoint))
	cmd.Printf("  Token:    %s\n", maskToken(s.Session.Token))
	cmd.Println()

	cmd.Println(p.title("Search"))
	cmd.Printf("  Match mode:   %s\n", s.MatchMode.Description())
	cmd.Printf("  Max keywords: %d\n", s.Limits.MaxKeywords)
	cmd.Printf("  Max channels: %d\n", s.Limits.MaxChannels)
	cmd.Println()

	cmd.Println(p.title("Cache"))
	cmd.Printf("  TTL:          %s\n", s.Cache.TTL)
	cmd.Printf("  Max entries:  %d\n", s.Cache.MaxEntries)
	cmd.Printf("  Keep partial: %t\n", s.Cache.CachePartial)
	cmd.Println()

	cmd.Println(p.title("Fetch"))
	cmd.Printf("  Page size:         %d\n", s.Fetch.PageSize)
	cmd.Printf("  Scan limit:        %d messages per channel\n", s.Fetch.ScanLimit)
	cmd.Printf("  Parallel channels: %d\n", s.Fetch.MaxChannels)
	cmd.Printf("  Retries:           %d throttled, %d transient\n", s.Fetch.ThrottleRetries, s.Fetch.TransientRetries)
	cmd.Printf("  Backoff:           %s to %s\n", s.Fetch.BackoffBase, s.Fetch.BackoffMax)
	cmd.Printf("  Time budget:       %s\n", s.Fetch.TimeBudget)
	cmd.Println()

	cmd.Println(p.title("Rate limits"))
	cmd.Printf("  Connection: %g/s, burst %d\n", s.Rate.GlobalRPS, s.Rate.GlobalBurst)
	cmd.Printf("  Channel:    %g/s, burst %d\n", s.Rate.ChannelRPS, s.Rate.ChannelBurst)
	cmd.Printf("  In flight:  %d\n", s.Rate.MaxInFlight)
	cmd.Println()

	cmd.Println(p.title("Watch"))
	cmd.Printf("  Lookback: %s\n", s.Watch.Lookback)
	cmd.Printf("  Tick:     %s\n", s.Watch.Tick)
	cmd.Printf("  File:     %s\n", orUnset(s.Watch.File))
	cmd.Println()

	cmd.Printf("Config file: %s\n", settingsService.Path())
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, raw := args[0], args[1]
	if err := settingsService.Set(key, parseValue(raw)); err != nil {
		return err
	}

	if key == "session.token" {
		raw = maskToken(raw)
	}
	cmd.Printf("Set %s = %s\n", key, raw)
	return nil
}

// parseValue types a command line value the way TOML would.
func parseValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil && strings.ContainsAny(raw, "tTfF") {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// maskToken masks a token for display, showing only first and last 4 chars.
func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
