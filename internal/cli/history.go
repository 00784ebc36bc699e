package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/recorder"
)

// HistorySummary aggregates recorded refreshes.
type HistorySummary struct {
	Total    int                    `json:"total"`
	Matched  int                    `json:"matched"`
	Failed   int                    `json:"failed"`
	First    time.Time              `json:"first,omitempty"`
	Last     time.Time              `json:"last,omitempty"`
	PerPage  map[string]PageHistory `json:"per_page"`
	Duration time.Duration          `json:"avg_duration"`
}

// PageHistory aggregates the refreshes of one page.
type PageHistory struct {
	Refreshes int           `json:"refreshes"`
	Failed    int           `json:"failed"`
	Bytes     int           `json:"bytes"`
	Duration  time.Duration `json:"avg_duration"`
}

func newHistoryCmd() *cobra.Command {
	var (
		file       string
		pages      []string
		after      string
		before     string
		failedOnly bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Summarize a recorded refresh history",
		Long: `Reads a refresh history exported by "autorefresh serve --record" and
prints the matching refreshes together with per-page totals.`,
		Example: `  autorefresh history --file history.json
  autorefresh history --file history.json --pages plugins,logics --failed
  autorefresh history --file history.json --after 2024-01-01T10:00:00Z --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}

			events, err := recorder.LoadFile(file)
			if err != nil {
				return err
			}

			filter := recorder.Filter{Pages: pages, FailedOnly: failedOnly}
			if filter.After, err = parseTimeFlag("after", after); err != nil {
				return err
			}
			if filter.Before, err = parseTimeFlag("before", before); err != nil {
				return err
			}

			matched, summary := summarizeHistory(events, filter)

			if outputJSON {
				out := map[string]interface{}{
					"events":  matched,
					"summary": summary,
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			printHistory(cmd.OutOrStdout(), matched, &summary)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to recorded history JSON file (required)")
	cmd.Flags().StringSliceVar(&pages, "pages", nil, "filter by pages (comma-separated)")
	cmd.Flags().StringVar(&after, "after", "", "only refreshes after this RFC 3339 time")
	cmd.Flags().StringVar(&before, "before", "", "only refreshes before this RFC 3339 time")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "only failed refreshes")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

func parseTimeFlag(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s value %q: %w", name, value, err)
	}
	return t, nil
}

func summarizeHistory(events []recorder.Event, f recorder.Filter) ([]recorder.Event, HistorySummary) {
	summary := HistorySummary{
		Total:   len(events),
		PerPage: make(map[string]PageHistory),
	}
	var matched []recorder.Event
	var total time.Duration
	perPage := make(map[string]time.Duration)

	for _, e := range events {
		if !f.Match(e) {
			continue
		}
		matched = append(matched, e)
		total += e.Duration
		perPage[e.Page] += e.Duration

		ph := summary.PerPage[e.Page]
		ph.Refreshes++
		ph.Bytes += e.Size
		if !e.OK() {
			ph.Failed++
			summary.Failed++
		}
		summary.PerPage[e.Page] = ph

		if summary.First.IsZero() || e.Time.Before(summary.First) {
			summary.First = e.Time
		}
		if e.Time.After(summary.Last) {
			summary.Last = e.Time
		}
	}

	summary.Matched = len(matched)
	if summary.Matched > 0 {
		summary.Duration = total / time.Duration(summary.Matched)
	}
	for name, ph := range summary.PerPage {
		ph.Duration = perPage[name] / time.Duration(ph.Refreshes)
		summary.PerPage[name] = ph
	}
	return matched, summary
}

func printHistory(w io.Writer, events []recorder.Event, s *HistorySummary) {
	for _, e := range events {
		status := "OK  "
		if !e.OK() {
			status = "FAIL"
		}
		fmt.Fprintf(w, "  [%s] %s page=%s status=%d size=%d took=%s",
			status,
			e.Time.Format("15:04:05"),
			e.Page,
			e.Status,
			e.Size,
			e.Duration.Round(time.Millisecond))
		if e.Error != "" {
			fmt.Fprintf(w, " error=%q", e.Error)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- History Summary ---")
	fmt.Fprintf(w, "  Total events:   %d\n", s.Total)
	fmt.Fprintf(w, "  Matched:        %d\n", s.Matched)
	fmt.Fprintf(w, "  Failed:         %d\n", s.Failed)
	fmt.Fprintf(w, "  Avg duration:   %s\n", s.Duration.Round(time.Millisecond))
	if s.Matched > 0 {
		fmt.Fprintf(w, "  Span:           %s\n", s.Last.Sub(s.First))
	}

	if len(s.PerPage) > 1 {
		names := make([]string, 0, len(s.PerPage))
		for name := range s.PerPage {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w)
		fmt.Fprintln(w, "  Per page:")
		for _, name := range names {
			ph := s.PerPage[name]
			fmt.Fprintf(w, "    %s: %d refreshes, %d failed\n", name, ph.Refreshes, ph.Failed)
		}
	}

	if s.Failed > 0 && s.Matched > s.Failed {
		fmt.Fprintln(w)
		fmt.Fprintln(w, strings.Repeat("=", 50))
		failRate := float64(s.Failed) / float64(s.Matched) * 100
		fmt.Fprintf(w, "Failure rate: %.1f%% (%d/%d refreshes failed)\n", failRate, s.Failed, s.Matched)
		fmt.Fprintln(w, strings.Repeat("=", 50))
	}
}
