package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// Output formats.
const (
	formatText  = "text"
	formatTable = "table"
	formatJSON  = "json"
)

const timeLayout = "2006-01-02 15:04"

var (
	searchChannels  []string
	searchSince     string
	searchLimit     int
	searchRefresh   bool
	searchRequester string
	searchFormat    string
	searchPage      int
	searchPerPage   int
)

var searchCmd = &cobra.Command{
	Use:   "search [keyword...]",
	Short: "Search channels for keywords",
	Long: `Search the history of one or more Telegram channels for messages that
contain any of the keywords.

Keywords and channels may be given as separate arguments or as comma
separated lists. Channels are accepted as @name, name or t.me links.
Results are cached; repeating a search within the cache TTL is served
without touching the network unless --refresh is given.

Examples:
  chanscout search iphone "macbook pro" -c @deals -c t.me/market
  chanscout search iphone,ipad -c deals --since 24h --format table`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringSliceVarP(&searchChannels, "channel", "c", nil, "channel to search (repeatable)")
	searchCmd.Flags().StringVar(&searchSince, "since", "", "only messages newer than this span, e.g. 90m, 24h, 7d (start rounded down to the minute)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", domain.DefaultMaxResults, "maximum number of matches")
	searchCmd.Flags().BoolVar(&searchRefresh, "refresh", false, "ignore cached results")
	searchCmd.Flags().StringVar(&searchRequester, "requester", "", "label recorded in the request history")
	searchCmd.Flags().StringVarP(&searchFormat, "format", "f", formatText, "output format: text, table or json")
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "page of results to show")
	searchCmd.Flags().IntVar(&searchPerPage, "per-page", 10, "results per page")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validateFormat(searchFormat); err != nil {
		return err
	}
	if searchPage < 1 || searchPerPage < 1 {
		return errors.New("--page and --per-page must be at least 1")
	}

	search, err := requireSearch()
	if err != nil {
		return err
	}

	lookback, err := domain.ParseLookback(searchSince)
	if err != nil {
		return err
	}
	var window domain.TimeWindow
	if lookback > 0 {
		window = domain.LastWindow(time.Now(), lookback)
	}

	req, err := domain.NewSearchRequest(domain.RequestParams{
		Keywords:     splitArgs(args),
		Channels:     splitArgs(searchChannels),
		Window:       window,
		MaxResults:   searchLimit,
		ForceRefresh: searchRefresh,
		Requester:    searchRequester,
	}, currentSettings().Limits)
	if err != nil {
		return err
	}

	rs, err := search.Search(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch searchFormat {
	case formatJSON:
		return outputJSON(cmd, rs)
	case formatTable:
		outputResultTable(cmd, rs, searchPage, searchPerPage)
	default:
		outputResultText(cmd, rs, searchPage, searchPerPage)
	}
	return nil
}

// splitArgs expands comma separated values.
func splitArgs(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, domain.ParseList(v)...)
	}
	return out
}

func validateFormat(format string) error {
	switch format {
	case formatText, formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown format %q: use text, table or json", format)
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// resultHeader summarises a result set and the page being shown.
func resultHeader(rs *domain.ResultSet, page, perPage int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Results: %d matches", len(rs.Matches))
	if pages := rs.Pages(perPage); pages > 1 {
		fmt.Fprintf(&b, " (page %d/%d)", page, pages)
	}
	if rs.FromCache {
		b.WriteString(" [cached]")
	}
	if rs.Partial {
		b.WriteString(" [partial]")
	}
	return b.String()
}

func outputResultText(cmd *cobra.Command, rs *domain.ResultSet, page, perPage int) {
	p := newPainter(cmd.OutOrStdout())

	if len(rs.Matches) == 0 {
		cmd.Println("No matches found.")
		printChannelProblems(cmd, p, rs)
		return
	}

	cmd.Println(p.title(resultHeader(rs, page, perPage)))
	cmd.Println()

	matches := rs.Page(page, perPage)
	if len(matches) == 0 {
		cmd.Printf("Page %d is empty.\n", page)
	}
	offset := (page - 1) * perPage
	for i := range matches {
		printMatch(cmd, p, offset+i+1, &matches[i])
	}
	printChannelProblems(cmd, p, rs)
}

// printMatch writes one match in the text layout.
func printMatch(cmd *cobra.Command, p painter, n int, m *domain.MatchedMessage) {
	cmd.Printf("  [%d] %s %s %s\n",
		n,
		p.channel("@"+m.Channel),
		p.meta(m.PostedAt.Local().Format(timeLayout)),
		p.keyword(strings.Join(m.Keywords, ", ")),
	)
	if m.Snippet != "" {
		cmd.Printf("      %s\n", m.Snippet)
	}
	if m.Link != "" {
		cmd.Printf("      %s\n", p.link(m.Link))
	}
	cmd.Println()
}

func printChannelProblems(cmd *cobra.Command, p painter, rs *domain.ResultSet) {
	for _, ch := range rs.Channels {
		switch {
		case ch.Error != "":
			cmd.Println(p.warn(fmt.Sprintf("  ! @%s: %s", ch.Channel, ch.Error)))
		case ch.Truncated:
			cmd.Println(p.warn(fmt.Sprintf("  ! @%s: more matches than the limit", ch.Channel)))
		}
	}
}

func outputResultTable(cmd *cobra.Command, rs *domain.ResultSet, page, perPage int) {
	if len(rs.Matches) == 0 {
		cmd.Println("No matches found.")
		return
	}

	matches := rs.Page(page, perPage)
	offset := (page - 1) * perPage
	rows := make([][]string, len(matches))
	for i := range matches {
		m := &matches[i]
		rows[i] = []string{
			strconv.Itoa(offset + i + 1),
			"@" + m.Channel,
			m.PostedAt.Local().Format(timeLayout),
			strings.Join(m.Keywords, ", "),
			truncate(m.Snippet, 60),
			m.Link,
		}
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "CHANNEL", "POSTED", "KEYWORDS", "SNIPPET", "LINK").
		Rows(rows...)

	cmd.Println(resultHeader(rs, page, perPage))
	cmd.Println(t.String())
}

// truncate shortens s to maxLen runes, marking the cut with "...".
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
