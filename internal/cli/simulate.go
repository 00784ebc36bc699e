package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/Autorefresh/internal/clock"
	"github.com/SmitUplenchwar2687/Autorefresh/internal/refresh"
)

// simulation describes a refresh task run on a virtual clock.
type simulation struct {
	Interval    time.Duration
	Duration    time.Duration
	Immediate   bool
	Repeat      refresh.Repeat
	StopAfter   time.Duration
	ChangeAt    time.Duration
	NewInterval time.Duration
}

// SimulationResult is the timeline of a simulated task.
type SimulationResult struct {
	Interval string          `json:"interval"`
	Duration string          `json:"duration"`
	Repeat   string          `json:"repeat"`
	Runs     []SimulationRun `json:"runs"`
	Events   []string        `json:"events,omitempty"`
	Final    refresh.State   `json:"final"`
}

// SimulationRun is one callback invocation.
type SimulationRun struct {
	N      int    `json:"n"`
	Offset string `json:"offset"`
}

func newSimulateCmd() *cobra.Command {
	var (
		interval    time.Duration
		duration    time.Duration
		immediate   bool
		repeat      string
		stopAfter   time.Duration
		changeAt    time.Duration
		newInterval time.Duration
		outputJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Show when a refresh task fires, without waiting",
		Long: `Runs a refresh task against a virtual clock and prints every run. Hours of
refreshing are simulated instantly, which makes it easy to check how
starting, stopping and changing the interval affect the schedule.`,
		Example: `  autorefresh simulate --interval 10s --duration 1m
  autorefresh simulate --interval 5s --immediate --repeat once
  autorefresh simulate --interval 5s --duration 1m --change-at 20s --new-interval 15s
  autorefresh simulate --interval 1s --duration 10s --stop-after 4500ms --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseRepeat(repeat)
			if err != nil {
				return err
			}
			if duration <= 0 {
				return fmt.Errorf("duration must be positive, got %s", duration)
			}

			vc := clock.NewVirtualClock(time.Now().Truncate(time.Second))
			result, err := runSimulation(vc, simulation{
				Interval:    interval,
				Duration:    duration,
				Immediate:   immediate,
				Repeat:      r,
				StopAfter:   stopAfter,
				ChangeAt:    changeAt,
				NewInterval: newInterval,
			})
			if err != nil {
				return err
			}

			if outputJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printSimulation(cmd.OutOrStdout(), &result)
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "refresh interval (0 = disabled)")
	cmd.Flags().DurationVar(&duration, "duration", time.Minute, "virtual time to simulate")
	cmd.Flags().BoolVar(&immediate, "immediate", false, "run once right away when starting")
	cmd.Flags().StringVar(&repeat, "repeat", "forever", "repeat mode (once, forever)")
	cmd.Flags().DurationVar(&stopAfter, "stop-after", 0, "stop the task at this offset")
	cmd.Flags().DurationVar(&changeAt, "change-at", 0, "change the interval at this offset")
	cmd.Flags().DurationVar(&newInterval, "new-interval", 0, "interval set at --change-at (0 stops the task)")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output results as JSON")

	return cmd
}

func parseRepeat(s string) (refresh.Repeat, error) {
	switch strings.ToLower(s) {
	case "once":
		return refresh.RepeatOnce, nil
	case "forever", "":
		return refresh.RepeatForever, nil
	default:
		return refresh.RepeatKeep, fmt.Errorf("unknown repeat mode %q, must be once or forever", s)
	}
}

func runSimulation(vc *clock.VirtualClock, sim simulation) (SimulationResult, error) {
	start := vc.Now()
	result := SimulationResult{
		Interval: sim.Interval.String(),
		Duration: sim.Duration.String(),
		Repeat:   sim.Repeat.String(),
	}

	task := refresh.New("simulation", vc, refresh.WithLogger(log.New(io.Discard, "", 0)))
	cb := func() {
		result.Runs = append(result.Runs, SimulationRun{
			N:      len(result.Runs) + 1,
			Offset: vc.Since(start).String(),
		})
	}
	if err := task.Start(cb, sim.Interval, sim.Immediate, sim.Repeat); err != nil {
		return result, err
	}

	type step struct {
		at   time.Duration
		name string
		do   func() error
	}
	var steps []step
	if sim.ChangeAt > 0 && sim.ChangeAt < sim.Duration {
		steps = append(steps, step{sim.ChangeAt, fmt.Sprintf("interval set to %s", sim.NewInterval), func() error {
			return task.SetInterval(sim.NewInterval, false)
		}})
	}
	if sim.StopAfter > 0 && sim.StopAfter < sim.Duration {
		steps = append(steps, step{sim.StopAfter, "stopped", func() error {
			task.Stop()
			return nil
		}})
	}
	if len(steps) == 2 && steps[1].at < steps[0].at {
		steps[0], steps[1] = steps[1], steps[0]
	}

	for _, s := range steps {
		vc.Set(start.Add(s.at))
		if err := s.do(); err != nil {
			return result, err
		}
		result.Events = append(result.Events, fmt.Sprintf("%s: %s", s.at, s.name))
	}
	vc.Set(start.Add(sim.Duration))

	result.Final = task.State()
	task.Stop()
	return result, nil
}

func printSimulation(w io.Writer, r *SimulationResult) {
	fmt.Fprintln(w, "=== Autorefresh Simulation ===")
	fmt.Fprintf(w, "interval %s, repeat %s, simulated %s\n\n", r.Interval, r.Repeat, r.Duration)

	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "  no runs")
	}
	for _, run := range r.Runs {
		fmt.Fprintf(w, "  #%03d at +%s\n", run.N, run.Offset)
	}
	if len(r.Events) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "--- Changes ---")
		for _, e := range r.Events {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d runs in %s of virtual time\n", len(r.Runs), r.Duration)
}
