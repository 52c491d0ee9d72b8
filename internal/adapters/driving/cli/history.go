package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

var (
	historyRequester string
	historyLimit     int
	historyJSON      bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded searches",
	Long: `Every search is recorded together with the result it returned.
Use the subcommands to list, inspect or replay recorded searches.`,
	RunE: runHistoryList,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded searches, most recent first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [request-id]",
	Short: "Show a recorded search and its result",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise recorded searches and the result cache",
	RunE:  runHistoryStats,
}

var historyReplayCmd = &cobra.Command{
	Use:   "replay [request-id]",
	Short: "Run a recorded search again and compare the results",
	Long: `Run a recorded search again, bypassing the cache, and list the matches
that appeared or disappeared since it was recorded. Replays are not
recorded themselves.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryReplay,
}

func init() {
	for _, c := range []*cobra.Command{historyCmd, historyListCmd} {
		c.Flags().StringVar(&historyRequester, "requester", "", "only searches made by this requester")
		c.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of searches to list (0 = all)")
	}
	for _, c := range []*cobra.Command{historyCmd, historyListCmd, historyShowCmd, historyStatsCmd, historyReplayCmd} {
		c.Flags().BoolVar(&historyJSON, "json", false, "output as JSON")
	}

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyStatsCmd)
	historyCmd.AddCommand(historyReplayCmd)
	rootCmd.AddCommand(historyCmd)
}

func requireHistory() error {
	if historyService == nil {
		return errors.New("history service not configured")
	}
	return nil
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if err := requireHistory(); err != nil {
		return err
	}

	records, err := historyService.List(cmd.Context(), domain.HistoryFilter{
		Requester: historyRequester,
		Limit:     historyLimit,
	})
	if err != nil {
		return err
	}

	if historyJSON {
		return outputJSON(cmd, records)
	}

	if len(records) == 0 {
		cmd.Println("No recorded searches.")
		return nil
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Println("Recorded searches:")
	cmd.Println()
	for i := range records {
		rec := &records[i]
		matches := 0
		flags := ""
		if rec.Result != nil {
			matches = len(rec.Result.Matches)
			if rec.Result.Partial {
				flags += " [partial]"
			}
		}
		if rec.Cached {
			flags += " [cached]"
		}
		cmd.Printf("  %s  %s\n", rec.ID, p.meta(rec.RecordedAt.Local().Format(timeLayout)))
		cmd.Printf("      %s in %s: %d matches%s\n",
			p.keyword(strings.Join(rec.Request.Keywords, ", ")),
			joinChannels(rec.Request.Channels),
			matches,
			flags,
		)
		if rec.Request.Requester != "" {
			cmd.Printf("      Requester: %s\n", rec.Request.Requester)
		}
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if err := requireHistory(); err != nil {
		return err
	}

	rec, err := historyService.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if historyJSON {
		return outputJSON(cmd, rec)
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Printf("Request:     %s\n", rec.ID)
	cmd.Printf("Recorded:    %s\n", rec.RecordedAt.Local().Format(timeLayout))
	cmd.Printf("Keywords:    %s\n", strings.Join(rec.Request.Keywords, ", "))
	cmd.Printf("Channels:    %s\n", joinChannels(rec.Request.Channels))
	if !rec.Request.Window.IsZero() {
		cmd.Printf("Window:      %s\n", rec.Request.Window)
	}
	cmd.Printf("Max results: %d\n", rec.Request.MaxResults)
	cmd.Printf("Cached:      %t\n", rec.Cached)
	cmd.Println()

	if rec.Result == nil || len(rec.Result.Matches) == 0 {
		cmd.Println("No matches were returned.")
		return nil
	}
	for i := range rec.Result.Matches {
		printMatch(cmd, p, i+1, &rec.Result.Matches[i])
	}
	printChannelProblems(cmd, p, rec.Result)
	return nil
}

func runHistoryStats(cmd *cobra.Command, _ []string) error {
	if err := requireHistory(); err != nil {
		return err
	}

	stats, err := historyService.Stats(cmd.Context())
	if err != nil {
		return err
	}

	var cache *domain.CacheStats
	if searchService != nil {
		cs := searchService.CacheStats()
		cache = &cs
	}

	if historyJSON {
		return outputJSON(cmd, struct {
			History *domain.HistoryStats `json:"history"`
			Cache   *domain.CacheStats   `json:"cache,omitempty"`
		}{stats, cache})
	}

	cmd.Println("Search history:")
	cmd.Printf("  Searches:          %d\n", stats.TotalRequests)
	cmd.Printf("  Served from cache: %d\n", stats.CachedRequests)
	cmd.Printf("  Unique keywords:   %d\n", stats.UniqueKeywords)
	cmd.Printf("  Unique channels:   %d\n", stats.UniqueChannels)
	cmd.Printf("  Requesters:        %d\n", stats.UniqueRequesters)
	if !stats.LastRequest.IsZero() {
		cmd.Printf("  Last search:       %s\n", stats.LastRequest.Local().Format(timeLayout))
	}

	if cache != nil {
		cmd.Println()
		cmd.Println("Result cache (this process):")
		cmd.Printf("  Entries:   %d\n", cache.Entries)
		cmd.Printf("  Hits:      %d\n", cache.Hits)
		cmd.Printf("  Misses:    %d\n", cache.Misses)
		cmd.Printf("  Coalesced: %d\n", cache.Coalesced)
		cmd.Printf("  Evictions: %d\n", cache.Evictions)
	}
	return nil
}

func runHistoryReplay(cmd *cobra.Command, args []string) error {
	if err := requireHistory(); err != nil {
		return err
	}

	diff, err := historyService.Replay(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if historyJSON {
		return outputJSON(cmd, diff)
	}

	if diff.Unchanged() {
		cmd.Printf("No changes: %d matches, same as recorded.\n", len(diff.Current.Matches))
		return nil
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Printf("%d added, %d removed since %s\n",
		len(diff.Added), len(diff.Removed), diff.Record.RecordedAt.Local().Format(timeLayout))
	cmd.Println()
	for i := range diff.Added {
		m := &diff.Added[i]
		cmd.Printf("  + %s #%d %s\n", p.channel("@"+m.Channel), m.ID, m.Snippet)
	}
	for i := range diff.Removed {
		m := &diff.Removed[i]
		cmd.Printf("  - %s #%d %s\n", p.channel("@"+m.Channel), m.ID, m.Snippet)
	}
	if diff.Current.Partial {
		cmd.Println(p.warn("  ! the new run was partial; removals may be incomplete channels"))
	}
	return nil
}

func joinChannels(channels []string) string {
	out := make([]string, len(channels))
	for i, ch := range channels {
		out[i] = "@" + ch
	}
	return strings.Join(out, ", ")
}
