package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	service "github.com/arxon-dev/topicperf/internal/app"
	"github.com/arxon-dev/topicperf/internal/domain/model"
	"github.com/arxon-dev/topicperf/internal/domain/rollup"
)

// maxReplayLine bounds one JSONL outcome.
const maxReplayLine = 1 << 20

var errUsage = errors.New("usage")

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var classifyCmd = &cobra.Command{
	Use:   "classify TITLE...",
	Short: "Print the topic of each title",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cls, err := newClassifier(configFrom(cmd))
		if err != nil {
			return err
		}
		explain, _ := cmd.Flags().GetBool("explain")
		out := cmd.OutOrStdout()
		for _, title := range args {
			if explain {
				if err := printJSON(out, cls.Explain(title)); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintln(out, cls.Classify(title))
		}
		return nil
	},
}

var recordCmd = &cobra.Command{
	Use:   "record SUBJECT TITLE",
	Short: "Record one answered question, classifying TITLE unless --topic is given",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		correct, _ := cmd.Flags().GetBool("correct")
		topic, _ := cmd.Flags().GetString("topic")
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			var (
				rec model.PerformanceRecord
				err error
			)
			if topic != "" {
				rec, err = svc.RecordOutcome(ctx, args[0], topic, correct)
			} else {
				rec, err = svc.RecordTitle(ctx, args[0], args[1], correct)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile SUBJECT TOPIC TOTAL CORRECT",
	Short: "Overwrite one aggregate with absolute counts",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		total, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: TOTAL must be a non-negative integer", errUsage)
		}
		correct, err := strconv.ParseUint(args[3], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: CORRECT must be a non-negative integer", errUsage)
		}
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			rec, err := svc.BulkReconcile(ctx, args[0], args[1], total, correct)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		})
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Re-classify a JSONL outcome history and reconcile every aggregate it touches",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		prune, _ := cmd.Flags().GetBool("prune-general")

		outcomes, err := readOutcomes(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			report, err := svc.Replay(ctx, outcomes, service.ReplayOptions{PruneGeneral: prune})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		})
	},
}

// readOutcomes reads one JSON outcome per line from path, or stdin for "-".
// Blank lines are ignored.
func readOutcomes(stdin io.Reader, path string) ([]model.Outcome, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var outcomes []model.Outcome
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxReplayLine)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var o model.Outcome
		if err := json.Unmarshal([]byte(text), &o); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		outcomes = append(outcomes, o)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return outcomes, nil
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Rebuild or show daily timelines",
}

var timelineRebuildCmd = &cobra.Command{
	Use:   "rebuild [SUBJECT]",
	Short: "Rebuild a subject's timeline, or every subject's with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return fmt.Errorf("%w: give either SUBJECT or --all", errUsage)
		}
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			rng, err := rangeFlags(cmd, svc)
			if err != nil {
				return err
			}
			if all {
				n, err := svc.RebuildAll(ctx, rng)
				fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d subjects\n", n)
				return err
			}
			if err := svc.RebuildTimeline(ctx, args[0], rng); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %s %s..%s\n", args[0],
				rng.From.Format(model.DateLayout), rng.To.Format(model.DateLayout))
			return nil
		})
	},
}

var timelineShowCmd = &cobra.Command{
	Use:   "show SUBJECT",
	Short: "Print a subject's timeline rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			rng, err := rangeFlags(cmd, svc)
			if err != nil {
				return err
			}
			rows, err := svc.Timeline(ctx, args[0], rng)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rows)
		})
	},
}

// rangeFlags reads --from/--to, or --days ending today.
func rangeFlags(cmd *cobra.Command, svc *service.Service) (model.DateRange, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	if from != "" || to != "" {
		return model.ParseDateRange(from, to, svc.Location())
	}
	days, _ := cmd.Flags().GetInt("days")
	if days < 1 {
		return model.DateRange{}, fmt.Errorf("%w: --days must be positive", errUsage)
	}
	return model.LastDays(svc.Clock()(), days, svc.Location()), nil
}

var rankingCmd = &cobra.Command{
	Use:   "ranking",
	Short: "Print the subject ranking",
	RunE: func(cmd *cobra.Command, _ []string) error {
		topic, _ := cmd.Flags().GetString("topic")
		viewName, _ := cmd.Flags().GetString("view")
		minQuestions, _ := cmd.Flags().GetUint64("min")
		limit, _ := cmd.Flags().GetInt("limit")

		view, err := rollup.ParseView(viewName)
		if err != nil {
			return err
		}
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			entries, err := svc.ComputeRanking(ctx, rollup.Scope{
				Topic:        topic,
				View:         view,
				MinQuestions: minQuestions,
				Limit:        limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print system-wide statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(cmd.Context(), configFrom(cmd), func(ctx context.Context, svc *service.Service) error {
			stats, err := svc.ComputeSystemStats(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the active topic catalog in match order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat, err := loadCatalog(configFrom(cmd))
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(map[string]any{"topics": cat.Entries()})
	},
}

func init() {
	classifyCmd.Flags().Bool("explain", false, "Print the matched keyword and match kind as JSON")

	recordCmd.Flags().Bool("correct", false, "The answer was correct")
	recordCmd.Flags().String("topic", "", "Record under this topic instead of classifying TITLE")

	replayCmd.Flags().String("file", "-", "JSONL outcome history, - for stdin")
	replayCmd.Flags().Bool("prune-general", false, "Delete every general record first; use with a complete history only")

	for _, c := range []*cobra.Command{timelineRebuildCmd, timelineShowCmd} {
		c.Flags().String("from", "", "First day, YYYY-MM-DD")
		c.Flags().String("to", "", "Last day, YYYY-MM-DD")
		c.Flags().Int("days", 28, "Days ending today, used without --from/--to")
	}
	timelineRebuildCmd.Flags().Bool("all", false, "Rebuild every known subject")
	timelineCmd.AddCommand(timelineRebuildCmd, timelineShowCmd)

	rankingCmd.Flags().String("topic", "", "Rank within one topic")
	rankingCmd.Flags().String("view", "accuracy", "Ranking key: accuracy or points")
	rankingCmd.Flags().Uint64("min", 0, "Minimum questions to be ranked")
	rankingCmd.Flags().Int("limit", 20, "Entries to print, 0 for all")
}
