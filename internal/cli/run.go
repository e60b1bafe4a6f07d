package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/runnerr0/wikiscore/internal/category"
	"github.com/runnerr0/wikiscore/internal/config"
	"github.com/runnerr0/wikiscore/internal/contest"
	"github.com/runnerr0/wikiscore/internal/filter"
	"github.com/runnerr0/wikiscore/internal/logging"
	"github.com/runnerr0/wikiscore/internal/mediawiki"
	"github.com/runnerr0/wikiscore/internal/report"
	"github.com/runnerr0/wikiscore/internal/rule"
	"github.com/runnerr0/wikiscore/internal/storage"
)

// Execute implements the go-flags Commander interface for RunCommand.
func (c *RunCommand) Execute(args []string) error {
	cfg, err := loadConfig(c.globals)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := validateContest(cfg); err != nil {
		return err
	}

	level := cfg.Logging.Level
	if c.globals != nil && c.globals.Verbose {
		level = "debug"
	}
	log, err := logging.New(level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	store, db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}
	defer db.Close()
	defer store.Close()

	sites := make(map[string]mediawiki.Client, len(cfg.Sites))
	catSources := make(map[string]category.Source, len(cfg.Sites))
	for key, site := range cfg.Sites {
		client := mediawiki.NewClient(nil, site.APIURL, site.PageLimit, log.With(zap.String("site", key)))
		sites[key] = client
		catSources[key] = client
	}

	out, err := executeRun(context.Background(), cfg, store, sites, catSources, log)
	if err != nil {
		return err
	}

	if c.Out != "" {
		if err := os.WriteFile(c.Out, []byte(out), 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		fmt.Printf("Report written to %s\n", c.Out)
		return nil
	}

	fmt.Println(out)
	return nil
}

// validateContest rejects configuration errors before any processing.
func validateContest(cfg *config.Config) error {
	if cfg.Contest.Start.IsZero() || cfg.Contest.End.IsZero() {
		return fmt.Errorf("contest start and end must be configured")
	}
	if !cfg.Contest.End.After(cfg.Contest.Start) {
		return fmt.Errorf("contest end must be after start")
	}
	if len(cfg.Contest.Participants) == 0 {
		return fmt.Errorf("no participants configured")
	}
	if len(cfg.Sites) == 0 {
		return fmt.Errorf("no sites configured")
	}
	return nil
}

// executeRun performs one full contest pass: reconcile, filter, and score
// every participant, then render the report. A fatal error aborts the
// affected user's processing, is surfaced as a diagnostic, and the run
// continues with the remaining users.
func executeRun(ctx context.Context, cfg *config.Config, store storage.Store, sites map[string]mediawiki.Client, catSources map[string]category.Source, log *zap.Logger) (string, error) {
	diags := &contest.Diagnostics{}

	filters, err := filter.FromSpecs(cfg.Contest.Filters, filter.Deps{
		Sources:        catSources,
		IgnorePatterns: cfg.Contest.IgnoreCategories,
		Diags:          diags,
		Log:            log,
	})
	if err != nil {
		return "", fmt.Errorf("building filter chain: %w", err)
	}

	rules, err := rule.FromSpecs(cfg.Contest.Rules)
	if err != nil {
		return "", fmt.Errorf("building rule chain: %w", err)
	}

	agg := contest.NewAggregator(store, sites, cfg.Contest.FetchText, cfg.Contest.Namespace, log)

	var users []*contest.User
	for _, name := range cfg.Contest.Participants {
		u := contest.NewUser(name)
		users = append(users, u)

		log.Info("processing participant", zap.String("user", name))

		if err := agg.Reconcile(ctx, u, cfg.Contest.Start, cfg.Contest.End); err != nil {
			log.Error("reconciliation failed", zap.String("user", name), zap.Error(err))
			diags.Add(name, "processing aborted: %v", err)
			u.Articles = nil
			continue
		}

		filtered, err := filter.Run(ctx, filters, u.Articles, log)
		if err != nil {
			log.Error("filtering failed", zap.String("user", name), zap.Error(err))
			diags.Add(name, "processing aborted: %v", err)
			u.Articles = nil
			continue
		}
		u.Articles = filtered

		rule.Apply(u, rules)
		log.Info("participant scored",
			zap.String("user", name),
			zap.Int("articles", len(u.Articles)),
			zap.Float64("points", u.Points),
		)
	}

	// Leaderboard order: points descending, name ascending on ties.
	sort.Slice(users, func(i, j int) bool {
		if users[i].Points != users[j].Points {
			return users[i].Points > users[j].Points
		}
		return users[i].Name < users[j].Name
	})

	return report.FormatRun(users, cfg.Contest.Start, cfg.Contest.End, diags, time.Now()), nil
}
