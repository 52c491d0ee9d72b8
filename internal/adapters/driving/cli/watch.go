package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chanscout/internal/core/domain"
	"github.com/custodia-labs/chanscout/internal/core/ports/driven"
	"github.com/custodia-labs/chanscout/internal/logger"
)

var (
	watchChannels []string
	watchInterval time.Duration
	watchDisabled bool
	watchJSON     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage saved searches that poll for new messages",
	Long: `A watch is a saved search polled on an interval. Each poll only looks
at messages newer than the ones already seen, so every match is reported
once.

Watches can also be declared in the TOML file named by the watch.file
setting. 'watch run' reloads that file whenever it changes.`,
}

var watchAddCmd = &cobra.Command{
	Use:     "add [name] [keyword...]",
	Short:   "Save a new watch",
	Example: `  chanscout watch add phones iphone,ipad -c @deals --interval 10m`,
	Args:    cobra.MinimumNArgs(2),
	RunE:    runWatchAdd,
}

var watchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved watches",
	RunE:  runWatchList,
}

var watchRemoveCmd = &cobra.Command{
	Use:   "remove [watch-id]",
	Short: "Remove a watch and forget what it has seen",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchRemove,
}

var watchPollCmd = &cobra.Command{
	Use:   "poll [watch-id]",
	Short: "Poll one watch now",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatchPoll,
}

var watchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll due watches until interrupted",
	RunE:  runWatchRun,
}

func init() {
	watchAddCmd.Flags().StringSliceVarP(&watchChannels, "channel", "c", nil, "channel to watch (repeatable)")
	watchAddCmd.Flags().DurationVar(&watchInterval, "interval", domain.DefaultWatchInterval, "time between polls")
	watchAddCmd.Flags().BoolVar(&watchDisabled, "disabled", false, "save the watch without polling it")
	watchListCmd.Flags().BoolVar(&watchJSON, "json", false, "output as JSON")

	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchListCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchPollCmd)
	watchCmd.AddCommand(watchRunCmd)
	rootCmd.AddCommand(watchCmd)
}

func requireWatch() error {
	if watchService == nil {
		return errors.New("watch service not configured")
	}
	return nil
}

func runWatchAdd(cmd *cobra.Command, args []string) error {
	if err := requireWatch(); err != nil {
		return err
	}

	w := &domain.Watch{
		Name:     args[0],
		Keywords: splitArgs(args[1:]),
		Channels: splitArgs(watchChannels),
		Interval: watchInterval,
		Enabled:  !watchDisabled,
	}
	if err := watchService.Add(cmd.Context(), w); err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}

	cmd.Printf("Added watch: %s (%s)\n", w.Name, w.ID)
	return nil
}

func runWatchList(cmd *cobra.Command, _ []string) error {
	if err := requireWatch(); err != nil {
		return err
	}

	watches, err := watchService.List(cmd.Context())
	if err != nil {
		return err
	}

	if watchJSON {
		return outputJSON(cmd, watches)
	}

	if len(watches) == 0 {
		cmd.Println("No watches configured.")
		return nil
	}

	p := newPainter(cmd.OutOrStdout())
	cmd.Println("Watches:")
	for i := range watches {
		w := &watches[i]
		state := "every " + w.Interval.String()
		if !w.Enabled {
			state = "disabled"
		}
		cmd.Printf("  %s  %s (%s)\n", w.ID, p.title(w.Name), state)
		cmd.Printf("      %s in %s\n", p.keyword(strings.Join(w.Keywords, ", ")), strings.Join(w.Channels, ", "))
		if !w.LastRun.IsZero() {
			cmd.Printf("      %s\n", p.meta("last run "+w.LastRun.Local().Format(timeLayout)))
		}
		if w.LastError != "" {
			cmd.Printf("      %s\n", p.warn("error: "+w.LastError))
		}
	}
	return nil
}

func runWatchRemove(cmd *cobra.Command, args []string) error {
	if err := requireWatch(); err != nil {
		return err
	}

	if err := watchService.Remove(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to remove watch: %w", err)
	}

	cmd.Printf("Removed watch: %s\n", args[0])
	return nil
}

func runWatchPoll(cmd *cobra.Command, args []string) error {
	if err := requireWatch(); err != nil {
		return err
	}

	printer.setOutput(cmd.OutOrStdout())
	defer printer.setOutput(os.Stdout)

	// The printing sink reports the result; only the error is returned here.
	_, err := watchService.RunOnce(cmd.Context(), args[0])
	return err
}

func runWatchRun(cmd *cobra.Command, _ []string) error {
	if err := requireWatch(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer.setOutput(cmd.OutOrStdout())
	defer printer.setOutput(os.Stdout)

	var wg sync.WaitGroup
	if watchFile != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := watchFile.Run(ctx, func(declared []domain.Watch) {
				if err := watchService.Sync(ctx, watchFile.IDPrefix(), declared); err != nil {
					logger.Error("apply %s: %v", watchFile.Path(), err)
				}
			})
			if err != nil {
				logger.Error("watch file %s: %v", watchFile.Path(), err)
			}
		}()
	}

	cmd.Println("Watching for new messages. Press Ctrl+C to stop.")
	err := watchService.Start(ctx)
	stop()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printer prints watch poll results. Wire it into the watcher with MatchSink.
var printer = &matchPrinter{out: os.Stdout}

// MatchSink returns the sink that prints watch results for the watch commands.
func MatchSink() driven.MatchSink {
	return printer
}

type matchPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (m *matchPrinter) setOutput(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.out = w
}

// Deliver prints new matches of one poll. Empty polls print nothing.
func (m *matchPrinter) Deliver(_ context.Context, w *domain.Watch, result *domain.WatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := newPainter(m.out)
	if result.Error != "" {
		_, err := fmt.Fprintf(m.out, "%s %s\n", p.title(w.Name), p.warn("poll failed: "+result.Error))
		return err
	}
	if len(result.Matches) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", p.title(w.Name), p.meta(fmt.Sprintf("%d new at %s",
		len(result.Matches), result.EndedAt.Local().Format(timeLayout))))
	for i := range result.Matches {
		msg := &result.Matches[i]
		fmt.Fprintf(&b, "  %s %s %s\n", p.channel("@"+msg.Channel), p.keyword(strings.Join(msg.Keywords, ", ")), msg.Snippet)
		if msg.Link != "" {
			fmt.Fprintf(&b, "      %s\n", p.link(msg.Link))
		}
	}
	if result.Partial {
		b.WriteString(p.warn("  ! some channels could not be read completely") + "\n")
	}
	_, err := io.WriteString(m.out, b.String())
	return err
}
