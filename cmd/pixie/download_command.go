package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pixie/internal/download"
	"pixie/internal/illust"
	"pixie/internal/pixiv"
	"pixie/internal/queen"
	"pixie/internal/taskqueue"
)

const statusInterval = 2 * time.Second

type downloadFlags struct {
	task string

	illustID int64
	userIDs  []int64
	rankMode string
	rankDate string
	query    string
	search   string
	until    string

	dir           string
	name          string
	workers       int
	maxTries      int
	fetchMaxTries int
	limitBefore   int
	limitAfter    int
	orderBy       []string
	filter        []string
	exclude       []string

	noConvertUgoira bool
	replace         bool
	checkExists     []string
	fake            bool
	skipArchived    bool
}

func newDownloadCommand(cmdCtx *commandContext) *cobra.Command {
	flags := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch, filter, and download records from a feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(cmd, cmdCtx, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.task, "task", "t", "", "Feed to fetch: illust, following, user, ranking, search, related")
	cmd.Flags().Int64Var(&flags.illustID, "illust-id", 0, "Record identifier for illust and related tasks")
	cmd.Flags().Int64SliceVar(&flags.userIDs, "user-id", nil, "Artist identifier for the user task (repeatable)")
	cmd.Flags().StringVar(&flags.rankMode, "rank-mode", "day", "Ranking leaderboard mode")
	cmd.Flags().StringVar(&flags.rankDate, "rank-date", "", "Ranking date (YYYY-MM-DD, default latest)")
	cmd.Flags().StringVar(&flags.query, "query", "", "Search keywords")
	cmd.Flags().StringVar(&flags.search, "search-mode", "tag", "Search match mode: tag, exact_tag, text, caption")
	cmd.Flags().StringVar(&flags.until, "until", "", "Stop the following feed at this date (YYYY-MM-DD)")

	cmd.Flags().StringVarP(&flags.dir, "dir", "d", "", "Destination directory (default from config)")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "File naming template (default from config)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", 0, "Worker pool size (default from config)")
	cmd.Flags().IntVar(&flags.maxTries, "max-tries", -1, "Per-page download attempts, 0 retries forever (default from config)")
	cmd.Flags().IntVar(&flags.fetchMaxTries, "fetch-max-tries", -1, "Whole-fetch retry attempts (default from config)")
	cmd.Flags().IntVar(&flags.limitBefore, "limit-before", 0, "Cap the stream before filtering")
	cmd.Flags().IntVar(&flags.limitAfter, "limit-after", 0, "Cap the stream after filtering")
	cmd.Flags().StringArrayVar(&flags.orderBy, "order-by", nil, "Sort field, leading '-' for descending (repeatable)")
	cmd.Flags().StringArrayVar(&flags.filter, "filter", nil, "Keep records matching lookup=value (repeatable)")
	cmd.Flags().StringArrayVar(&flags.exclude, "exclude", nil, "Drop records matching lookup=value (repeatable)")

	cmd.Flags().BoolVar(&flags.noConvertUgoira, "no-convert-ugoira", false, "Store frame archives as zip plus sidecar instead of GIF")
	cmd.Flags().BoolVar(&flags.replace, "replace", false, "Overwrite files that already exist")
	cmd.Flags().StringArrayVar(&flags.checkExists, "check-exists", nil, "Extra directory whose files count as already downloaded (repeatable)")
	cmd.Flags().BoolVar(&flags.fake, "fake", false, "Resolve names and existence without network calls or writes")
	cmd.Flags().BoolVar(&flags.skipArchived, "skip-archived", false, "Skip records the archive ledger already recorded")

	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func runDownload(cmd *cobra.Command, cmdCtx *commandContext, flags *downloadFlags) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := cmdCtx.ensureLogger()
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	opts, err := buildOptions(cmdCtx, flags)
	if err != nil {
		return err
	}
	workers := flags.workers
	if workers <= 0 {
		workers = cfg.Download.Workers
	}

	client := pixiv.NewClient(pixiv.Options{
		AutoRelogin: cfg.Pixiv.AutoRelogin,
		TokenMargin: time.Duration(cfg.Pixiv.TokenMarginSeconds) * time.Second,
		Logger:      logger,
	})
	sources, err := buildSources(client, flags)
	if err != nil {
		return err
	}

	lock, err := cmdCtx.acquireLock()
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	ledger, err := cmdCtx.openLedger()
	if err != nil {
		return err
	}
	if ledger != nil {
		defer ledger.Close()
	}

	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Login(runCtx, pixiv.Credentials{
		Username: cfg.Pixiv.Username,
		Password: cfg.Pixiv.Password,
	}); err != nil {
		return err
	}

	downloadCfg := download.Config{Logger: logger}
	if ledger != nil {
		downloadCfg.Ledger = ledger
	}
	orchestrator := download.New(client, downloadCfg)

	queue := taskqueue.New(taskqueue.WithLogger(logger))
	if err := queue.SpawnWorkers(workers); err != nil {
		return err
	}
	defer queue.HaltWorkers()

	driver := queen.New(queue, orchestrator, logger)
	driver.FetchAndDownload(runCtx, opts, sources...)

	out := cmd.OutOrStdout()
	interrupted := waitForCompletion(runCtx, driver, out)

	queue.HaltWorkers()
	renderStatus(out, driver.Status())
	printSummary(cmd.Context(), out, ledger, orchestrator.RunID())

	if interrupted {
		return runCtx.Err()
	}
	if failures := driver.Failures(); len(failures) > 0 {
		return fmt.Errorf("%d task(s) failed", len(failures))
	}
	return nil
}

// waitForCompletion renders the status tree until every task is terminal or
// the run is interrupted. It reports whether the wait ended on interrupt.
func waitForCompletion(ctx context.Context, driver *queen.Queen, out io.Writer) bool {
	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for !driver.AllDone() {
		select {
		case <-ctx.Done():
			return true
		case <-ticker.C:
			renderStatus(out, driver.Status())
		}
	}
	return false
}

func buildOptions(cmdCtx *commandContext, flags *downloadFlags) (queen.Options, error) {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return queen.Options{}, err
	}

	if err := validateOrderBy(flags.orderBy); err != nil {
		return queen.Options{}, err
	}
	filter, err := parseClauses(flags.filter)
	if err != nil {
		return queen.Options{}, err
	}
	exclude, err := parseClauses(flags.exclude)
	if err != nil {
		return queen.Options{}, err
	}

	dir := flags.dir
	if dir == "" {
		dir = cfg.Paths.DownloadDir
	}
	name := flags.name
	if name == "" {
		name = cfg.Download.Name
	}
	maxTries := flags.maxTries
	if maxTries < 0 {
		maxTries = cfg.Download.MaxTries
	}
	fetchMaxTries := flags.fetchMaxTries
	if fetchMaxTries < 0 {
		fetchMaxTries = cfg.Download.FetchMaxTries
	}
	checkExists := flags.checkExists
	if len(checkExists) == 0 {
		checkExists = cfg.Download.CheckExists
	}
	convertUgoira := cfg.Download.ConvertUgoira && !flags.noConvertUgoira
	skipArchived := flags.skipArchived || cfg.Download.SkipArchived

	return queen.Options{
		OrderBy:     flags.orderBy,
		LimitBefore: flags.limitBefore,
		Filter:      filter,
		Exclude:     exclude,
		LimitAfter:  flags.limitAfter,
		Download: download.Options{
			Dir:           dir,
			Name:          name,
			MaxTries:      maxTries,
			ConvertUgoira: convertUgoira,
			Replace:       flags.replace,
			CheckExists:   checkExists,
			Fake:          flags.fake,
			SkipArchived:  skipArchived,
		},
		FetchMaxTries: fetchMaxTries,
	}, nil
}

func buildSources(client *pixiv.Client, flags *downloadFlags) ([]queen.Source, error) {
	switch strings.ToLower(strings.TrimSpace(flags.task)) {
	case "illust":
		if flags.illustID <= 0 {
			return nil, fmt.Errorf("task illust requires --illust-id")
		}
		id := flags.illustID
		return []queen.Source{{
			Name: fmt.Sprintf("illust-%d", id),
			Stream: func(ctx context.Context) (*illust.Stream, error) {
				record, err := client.Illust(ctx, id)
				if err != nil {
					return nil, err
				}
				return illust.FromSlice([]illust.Illust{record}), nil
			},
		}}, nil

	case "user":
		if len(flags.userIDs) == 0 {
			return nil, fmt.Errorf("task user requires at least one --user-id")
		}
		sources := make([]queen.Source, 0, len(flags.userIDs))
		for _, userID := range flags.userIDs {
			id := userID
			sources = append(sources, queen.Source{
				Name: fmt.Sprintf("user-%d", id),
				Stream: func(ctx context.Context) (*illust.Stream, error) {
					return client.UserIllusts(ctx, id), nil
				},
			})
		}
		return sources, nil

	case "following":
		until, err := parseDateFlag(flags.until)
		if err != nil {
			return nil, err
		}
		return []queen.Source{{
			Name: "following",
			Stream: func(ctx context.Context) (*illust.Stream, error) {
				return client.Following(ctx, until), nil
			},
		}}, nil

	case "ranking":
		mode, err := parseRankMode(flags.rankMode)
		if err != nil {
			return nil, err
		}
		date, err := parseDateFlag(flags.rankDate)
		if err != nil {
			return nil, err
		}
		return []queen.Source{{
			Name: fmt.Sprintf("ranking-%s", mode),
			Stream: func(ctx context.Context) (*illust.Stream, error) {
				return client.Ranking(ctx, mode, date), nil
			},
		}}, nil

	case "search":
		if strings.TrimSpace(flags.query) == "" {
			return nil, fmt.Errorf("task search requires --query")
		}
		mode, err := parseSearchMode(flags.search)
		if err != nil {
			return nil, err
		}
		return []queen.Source{{
			Name: fmt.Sprintf("search-%s", strings.TrimSpace(flags.query)),
			Stream: func(ctx context.Context) (*illust.Stream, error) {
				return client.Search(ctx, flags.query, pixiv.SearchOptions{Mode: mode}), nil
			},
		}}, nil

	case "related":
		if flags.illustID <= 0 {
			return nil, fmt.Errorf("task related requires --illust-id")
		}
		id := flags.illustID
		limit := flags.limitBefore
		return []queen.Source{{
			Name: fmt.Sprintf("related-%d", id),
			Stream: func(ctx context.Context) (*illust.Stream, error) {
				return client.Related(ctx, id, limit), nil
			},
		}}, nil

	default:
		return nil, fmt.Errorf("unknown task %q: want illust, following, user, ranking, search, or related", flags.task)
	}
}

func parseRankMode(raw string) (pixiv.RankingMode, error) {
	mode := pixiv.RankingMode(strings.TrimSpace(raw))
	for _, known := range pixiv.RankingModes() {
		if mode == known {
			return mode, nil
		}
	}
	return "", fmt.Errorf("unknown rank mode %q", raw)
}

func parseSearchMode(raw string) (pixiv.SearchMode, error) {
	mode := pixiv.SearchMode(strings.TrimSpace(raw))
	switch mode {
	case pixiv.SearchTag, pixiv.SearchExactTag, pixiv.SearchText, pixiv.SearchCaption:
		return mode, nil
	}
	return "", fmt.Errorf("unknown search mode %q: want tag, exact_tag, text, or caption", raw)
}

func parseDateFlag(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: want YYYY-MM-DD", raw)
	}
	return date, nil
}
