package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arbiterhq/arbiter/internal/cache"
	"github.com/arbiterhq/arbiter/internal/extract"
	"github.com/arbiterhq/arbiter/internal/judge"
	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/orchestrator"
	"github.com/arbiterhq/arbiter/internal/rubric"
	"github.com/arbiterhq/arbiter/internal/service"
	"github.com/arbiterhq/arbiter/internal/verify"
)

var (
	tasksPath   string
	reportFlags []string
	outputDir   string
	runDeadline time.Duration
	noCache     bool
	workers     int
	fanOut      int
	fetchPages  bool
	llmModel    string
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate candidate reports against their tasks",
	Long: `Evaluate runs every (task, method) pair through both branches:
rubric-based point-wise judging and claim-level fact checking.

Records are appended to <output>/records.jsonl as they change. Re-running
the same command skips pairs already COMPLETE and fills in missing branches
of PARTIAL pairs.

Example:
  arbiter evaluate --tasks tasks.jsonl --reports baseline=baseline.json --reports agent=agent.json
  arbiter evaluate --tasks tasks.jsonl --reports agent=agent.json --deadline 30m --workers 8`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)

	evaluateCmd.Flags().StringVar(&tasksPath, "tasks", "", "tasks file, one JSON task per line (required)")
	evaluateCmd.Flags().StringArrayVar(&reportFlags, "reports", nil, "method=path pairs; path maps task id to report (required, repeatable)")
	evaluateCmd.Flags().StringVar(&outputDir, "output", "", "output directory (default from config)")
	evaluateCmd.Flags().DurationVar(&runDeadline, "deadline", 0, "global deadline for the whole run (0 = none)")
	evaluateCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the rubric cache")
	evaluateCmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (default from config)")
	evaluateCmd.Flags().IntVar(&fanOut, "fan-out", 0, "concurrent claim verifications per report (default from config)")
	evaluateCmd.Flags().BoolVar(&fetchPages, "fetch-pages", false, "scrape top search hits for extra evidence text")
	evaluateCmd.Flags().StringVar(&llmModel, "model", "", "judge model (default from config)")

	_ = evaluateCmd.MarkFlagRequired("tasks")
	_ = evaluateCmd.MarkFlagRequired("reports")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyEvaluateFlags(cmd, cfg)

	if cfg.Service.LLMAPIKey == "" {
		return fmt.Errorf("no LLM API key: set OPENAI_API_KEY or OPENROUTER_API_KEY")
	}
	if cfg.Service.SearchAPIKey == "" {
		return fmt.Errorf("no search API key: set SERPER_API_KEY")
	}

	tasks, err := model.LoadTasks(tasksPath)
	if err != nil {
		return err
	}
	pairs, err := buildPairs(tasks, reportFlags)
	if err != nil {
		return err
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d tasks, %d (task, method) pairs\n", len(tasks), len(pairs))
	}

	llmBackend, err := service.NewOpenAIBackend(cfg.Service)
	if err != nil {
		return fmt.Errorf("llm backend: %w", err)
	}
	searchBackend, err := service.NewSerperBackend(cfg.Service)
	if err != nil {
		return fmt.Errorf("search backend: %w", err)
	}
	client := service.NewClient(cfg.Service, llmBackend, searchBackend)

	var store *cache.RubricStore
	if cfg.Cache.Enabled {
		layered := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir)
		layered.NotifyCorrupt(func(key, reason string) {
			fmt.Fprintf(os.Stderr, "cache: dropped damaged entry %s (%s)\n", key, reason)
		})
		store = cache.NewRubricStore(layered)
	}

	var fetcher *verify.PageFetcher
	if cfg.Verify.FetchPages {
		fetcher = verify.NewPageFetcher(cfg.Verify.FetchTimeout, cfg.Verify.UserAgent,
			cfg.Service.HTTPProxy, cfg.Service.HTTPSProxy)
	}

	agent := verify.NewAgent(client, fetcher, cfg.Verify)
	if verbose {
		agent.Trace = func(claim model.Claim, state verify.State) {
			fmt.Fprintf(os.Stderr, "  [%s] %.60s\n", state, claim.Text)
		}
	}

	records, err := orchestrator.OpenRecordStore(filepath.Join(cfg.Output.Dir, "records.jsonl"))
	if err != nil {
		return err
	}
	defer func() { _ = records.Close() }()

	orch := orchestrator.New(
		rubric.NewGenerator(client, store, cfg.Judge),
		judge.New(client, cfg.Judge),
		extract.NewExtractor(client, cfg.Judge.MaxTokens),
		agent,
		records,
		cfg.Concurrency.Workers,
		cfg.Verify.UnverifiableThreshold,
	)

	ctx := context.Background()
	if runDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runDeadline)
		defer cancel()
	}

	results, runErr := orch.Run(ctx, pairs)
	printSummary(os.Stdout, results)
	if runErr != nil {
		return fmt.Errorf("evaluation finished with errors: %w", runErr)
	}
	return nil
}

func applyEvaluateFlags(cmd *cobra.Command, cfg *model.Config) {
	if cmd.Flags().Changed("output") {
		cfg.Output.Dir = outputDir
	}
	if cmd.Flags().Changed("no-cache") && noCache {
		cfg.Cache.Enabled = false
	}
	if cmd.Flags().Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if cmd.Flags().Changed("fan-out") {
		cfg.Verify.FanOut = fanOut
	}
	if cmd.Flags().Changed("fetch-pages") {
		cfg.Verify.FetchPages = fetchPages
	}
	if cmd.Flags().Changed("model") {
		cfg.Service.LLMModel = llmModel
	}
}

// buildPairs joins tasks with each method's reports. A method missing a
// report for some task simply contributes no pair for it.
func buildPairs(tasks []model.Task, flags []string) ([]orchestrator.Pair, error) {
	byTask := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		byTask[t.ID] = t
	}

	var pairs []orchestrator.Pair
	for _, flag := range flags {
		method, path, ok := strings.Cut(flag, "=")
		if !ok || method == "" || path == "" {
			return nil, fmt.Errorf("bad --reports value %q, want method=path", flag)
		}

		reports, err := model.LoadReports(path, method)
		if err != nil {
			return nil, fmt.Errorf("reports for %s: %w", method, err)
		}
		sort.Slice(reports, func(i, j int) bool { return reports[i].TaskID < reports[j].TaskID })

		matched := 0
		for _, report := range reports {
			task, ok := byTask[report.TaskID]
			if !ok {
				continue
			}
			matched++
			pairs = append(pairs, orchestrator.Pair{Task: task, Report: report})
		}
		if matched == 0 {
			return nil, fmt.Errorf("reports for %s match none of the loaded tasks", method)
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no (task, method) pairs to evaluate")
	}
	return pairs, nil
}

type methodSummary struct {
	records, complete, partial, failed int

	aggregateSum float64
	aggregateN   int

	supported, contradicted, unverifiable, flagged int
}

// printSummary renders one row per method across the run's records.
func printSummary(w io.Writer, records []*model.EvaluationRecord) {
	byMethod := make(map[string]*methodSummary)
	var methods []string
	for _, rec := range records {
		s, ok := byMethod[rec.Method]
		if !ok {
			s = &methodSummary{}
			byMethod[rec.Method] = s
			methods = append(methods, rec.Method)
		}
		s.records++
		switch rec.Status {
		case model.StatusComplete:
			s.complete++
		case model.StatusPartial:
			s.partial++
		case model.StatusFailed:
			s.failed++
		}
		if rec.Judge != nil {
			s.aggregateSum += rec.Judge.Aggregate
			s.aggregateN++
		}
		if rec.Facts != nil {
			s.supported += rec.Facts.Summary.Supported
			s.contradicted += rec.Facts.Summary.Contradicted
			s.unverifiable += rec.Facts.Summary.Unverifiable
			s.flagged += len(rec.Facts.Summary.Flagged)
		}
	}
	sort.Strings(methods)

	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tRECORDS\tCOMPLETE\tPARTIAL\tFAILED\tAVG SCORE\tSUPPORTED\tCONTRADICTED\tUNVERIFIABLE\tFLAGGED")
	for _, method := range methods {
		s := byMethod[method]
		avg := "-"
		if s.aggregateN > 0 {
			avg = fmt.Sprintf("%.2f", s.aggregateSum/float64(s.aggregateN))
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%d\t%d\t%d\t%d\n",
			method, s.records, s.complete, s.partial, s.failed, avg,
			s.supported, s.contradicted, s.unverifiable, s.flagged)
	}
	_ = tw.Flush()
}
