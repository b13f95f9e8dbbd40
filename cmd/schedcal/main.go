package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"schedcal/internal/config"
	"schedcal/internal/ics"
	appLog "schedcal/internal/log"
	"schedcal/internal/model"
	"schedcal/internal/occurrence"
	"schedcal/internal/scheduler"
	"schedcal/internal/store"
	"schedcal/internal/web"
)

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	loadedEnv, envErr := config.LoadDotEnv(flags.envFile)

	configPath := flags.configPath
	if configPath == "" {
		configPath = os.Getenv(config.EnvConfigPath)
	}
	if configPath == "" {
		configPath = "./config.yaml"
	}

	conf, err := config.Load(configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()
	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Init(conf.Env, appLog.Level(conf.LogLevel))
	defer appLog.Sync()

	if envErr != nil {
		appLog.Error("failed to load env file", envErr, "path", flags.envFile)
	}
	appLog.Info("schedcal starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"window_days", conf.WindowDays,
		"backfill_days", conf.BackfillDays,
		"events_file", conf.EventsFile,
		"ics_count", len(conf.ICS),
		"env_file_loaded", loadedEnv,
		"once", flags.once,
	)

	loc := web.ResolveLocation(conf.Timezone)

	events, err := store.Open(conf.EventsFile)
	if err != nil {
		appLog.Error("failed to open events file", err)
		os.Exit(1)
	}
	local, err := events.Load()
	if err != nil {
		appLog.Error("failed to load events", err, "path", events.Path())
		os.Exit(1)
	}

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	gen := occurrence.NewGenerator(conf.Defaults)
	ctrl := scheduler.New(gen, computeWindow(conf, loc, time.Now()),
		scheduler.WithNotifier(scheduler.NotifierFunc(logNotification)),
	)

	fetcher := ics.NewFetcher(conf.CacheDir, nil)
	sources := ics.SourcesFromConfig(conf.ICS)
	imported, _ := importSources(ctx, fetcher, sources, loc)
	ctrl.ReplaceEvents(append(local, imported...))

	if flags.once {
		if err := ics.Export(os.Stdout, ctrl.Occurrences(), ics.ExportOptions{Name: "schedcal"}); err != nil {
			appLog.Error("export failed", err)
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, ctrl, web.WithOnChange(func(specs []model.EventSpec) {
		if err := events.Save(localSpecs(specs)); err != nil {
			appLog.Error("failed to save events", err, "path", events.Path())
		}
	}))

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc(conf.RefreshCron, func() {
		refresh(ctx, srv, fetcher, sources, conf, loc)
	}); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()

	if err := srv.ListenAndServe(ctx); err != nil {
		appLog.Error("HTTP server failed", err)
		cancel()
	}

	<-c.Stop().Done()
	appLog.Info("schedcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "", "Path to config file (default $SCHEDCAL_CONFIG or ./config.yaml)")
	flag.StringVar(&cfg.envFile, "env", ".env", "Path to a .env file with SCHEDCAL_* overrides")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Import once, print the calendar as ICS to stdout and exit")

	flag.Parse()

	return cfg
}

// refresh rolls the visible window forward and re-imports the ICS sources.
// Feeds are fetched before the controller lock is taken.
func refresh(ctx context.Context, srv *web.Server, fetcher *ics.Fetcher, sources []ics.Source, conf *config.Config, loc *time.Location) {
	imported, failed := importSources(ctx, fetcher, sources, loc)
	window := computeWindow(conf, loc, time.Now())

	srv.Do(func(c *scheduler.Controller) {
		c.SetWindow(window)
		c.ReplaceEvents(mergeImported(c.Events(), imported, failed))
	})
	appLog.Info("refresh completed",
		"range_start", window.Start.Format(time.RFC3339),
		"range_end", window.End.Format(time.RFC3339),
		"imported", len(imported),
		"failed_sources", len(failed),
	)
}

// importSources fetches and converts every source. It returns the specs and
// the ids of sources that produced nothing usable.
func importSources(ctx context.Context, fetcher *ics.Fetcher, sources []ics.Source, loc *time.Location) ([]model.EventSpec, map[string]bool) {
	failed := make(map[string]bool, len(sources))
	for _, src := range sources {
		failed[src.ID] = true
	}
	if len(sources) == 0 {
		return nil, failed
	}

	results, errs := fetcher.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Error("one or more ICS fetches failed", multierr.Combine(errs...), "error_count", len(errs))
	}

	var specs []model.EventSpec
	for _, res := range results {
		parsed, err := ics.ParseICS(res.Source, res.Body, loc)
		if err != nil {
			continue
		}
		specs = append(specs, ics.ToSpecs(parsed, ics.ImportOptions{
			Resource: res.Source.Resource,
			Location: loc,
		})...)
		delete(failed, res.Source.ID)
	}
	return specs, failed
}

// mergeImported replaces the imported specs in current with fresh ones.
// Specs of failed sources are kept as they were.
func mergeImported(current, fresh []model.EventSpec, failed map[string]bool) []model.EventSpec {
	out := make([]model.EventSpec, 0, len(current)+len(fresh))
	for _, spec := range current {
		if !ics.IsImported(&spec) {
			out = append(out, spec)
			continue
		}
		if src, _ := spec.Data["source"].(string); failed[src] {
			out = append(out, spec)
		}
	}
	return append(out, fresh...)
}

// localSpecs drops imported specs, which are rebuilt from their feeds.
func localSpecs(specs []model.EventSpec) []model.EventSpec {
	out := make([]model.EventSpec, 0, len(specs))
	for _, spec := range specs {
		if !ics.IsImported(&spec) {
			out = append(out, spec)
		}
	}
	return out
}

// computeWindow returns the visible window around now: BackfillDays before
// today through the end of the day WindowDays ahead.
func computeWindow(conf *config.Config, loc *time.Location, now time.Time) scheduler.Window {
	today := model.StartOfDay(now.In(loc))
	return scheduler.Window{
		Start:  today.AddDate(0, 0, -conf.BackfillDays),
		End:    model.EndOfDay(today.AddDate(0, 0, conf.WindowDays)),
		Header: conf.SmallestHeader,
	}
}

func logNotification(n scheduler.Notification) {
	appLog.Info("scheduler notification",
		"type", string(n.Type),
		"name", n.Name,
		"recurrence_dates", len(n.RecurrenceDates),
	)
}
