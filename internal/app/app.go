// Package app wires the watcher, the command surface and their ambient
// services from one config file.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"auctionwatch/internal/bot"
	"auctionwatch/internal/config"
	"auctionwatch/internal/dispatch"
	"auctionwatch/internal/message"
	"auctionwatch/internal/observability"
	rtsup "auctionwatch/internal/runtime/supervisor"
	"auctionwatch/internal/search"
	"auctionwatch/internal/source"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/subscriber"
	kit "auctionwatch/internal/transport"
	"auctionwatch/internal/transport/telegram"
	"auctionwatch/internal/watcher"
	logx "auctionwatch/pkg/logx"
	"auctionwatch/pkg/systemd"
)

type Options struct {
	// Env replaces os.LookupEnv for config overrides.
	Env func(string) (string, bool)
	// Offline skips the Telegram handshake. Used by one-shot commands that
	// do not send anything.
	Offline bool
}

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store    storage.Store
	adapter  *telegram.Adapter
	metrics  *observability.Prometheus
	http     *http.Client
	fetcher  *fetcherRef
	composer *composerRef

	disp     *dispatch.Dispatcher
	pipeline *watcher.Pipeline
	watch    *watcher.Service
	search   *search.Service
	router   *bot.Router
	debug    *observability.Server

	sd      systemd.Notifier
	updates chan kit.Update
	started time.Time
}

func New(ctx context.Context, cfgPath string, opt Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	if opt.Env != nil {
		cfgm.SetEnv(opt.Env)
	}
	cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validate(cfg) })
	cfg, err := cfgm.Load(ctx)
	if err != nil {
		return nil, err
	}

	tcfg := mapTelegram(cfg)
	tcfg.Offline = opt.Offline
	ad, err := telegram.New(tcfg, logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogging(cfg), ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	store, err := storage.Open(mapStorage(cfg), log)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", cfg.Storage.Driver), logx.String("path", cfg.Storage.Path))

	metrics := observability.NewPrometheus()
	client := &http.Client{}

	fetcher := &fetcherRef{}
	fetcher.p.Store(source.New(mapSource(cfg), client, log))
	composer := &composerRef{}
	composer.v.Store(message.NewComposer(mapMessage(cfg, ad.Username())))

	disp := dispatch.New(mapDispatch(cfg), ad, log, metrics)
	pipeline := watcher.NewPipeline(fetcher, store, store, disp, composer, log, metrics)
	watch, err := watcher.NewService(mapWatcher(cfg), pipeline, log, metrics)
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}
	searcher := search.New(mapSearch(cfg), subscriber.Quota{}, store, store, log, metrics)
	router := bot.New(mapBot(cfg), ad, store, searcher, composer.get(), log)

	a := &App{
		cfgm:     cfgm,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		store:    store,
		adapter:  ad,
		metrics:  metrics,
		http:     client,
		fetcher:  fetcher,
		composer: composer,
		disp:     disp,
		pipeline: pipeline,
		watch:    watch,
		search:   searcher,
		router:   router,
		updates:  make(chan kit.Update, tcfg.UpdateBuffer),
	}
	a.debug = observability.NewServer(mapDebug(cfg), metrics.Registry(), a.health, log)
	return a, nil
}

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.started = time.Now()
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.sup.Go0("telegram.commands", func(c context.Context) {
		sctx, cancel := context.WithTimeout(c, 15*time.Second)
		defer cancel()
		if err := a.adapter.SetCommands(sctx, a.router.Commands()); err != nil {
			a.log.Warn("command menu not updated", logx.Err(err))
		}
	})
	a.sup.GoRestart("bot.router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))

	if err := a.watch.Start(run); err != nil {
		return err
	}
	a.debug.Reconfigure(run, mapDebug(a.cfgm.Get()))

	sub := a.cfgm.Subscribe(4)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if iv := systemd.WatchdogInterval(); iv > 0 {
		a.sup.Go0("systemd.watchdog", func(c context.Context) {
			a.sd.Watchdog(c, iv, func() bool { return c.Err() == nil })
		})
	}
	if ok, err := a.sd.Ready(); err != nil {
		a.log.Warn("sd_notify ready failed", logx.Err(err))
	} else if ok {
		a.log.Debug("sd_notify ready sent")
	}
	_, _ = a.sd.Status("watching " + a.watch.Schedule())

	a.log.Info("app started", logx.String("schedule", a.watch.Schedule()), logx.String("bot", a.adapter.Username()))
	return nil
}

// Tick runs the pipeline once outside the schedule.
func (a *App) Tick(ctx context.Context) (watcher.TickReport, error) {
	return a.pipeline.Tick(ctx)
}

// Preview renders what /search would answer for chatID without consuming
// its quota.
func (a *App) Preview(ctx context.Context, chatID int64) (string, error) {
	res, err := a.search.Preview(ctx, chatID)
	if err != nil {
		return "", err
	}
	return a.composer.get().SearchResults(res.Listings, res.Limit, res.Total, res.Remaining), nil
}

func (a *App) health() map[string]any {
	out := map[string]any{
		"ticks":         a.watch.Runs(),
		"ticks_skipped": a.watch.Skipped(),
		"schedule":      a.watch.Schedule(),
	}
	if !a.started.IsZero() {
		out["uptime"] = time.Since(a.started).Round(time.Second).String()
	}
	if a.sup != nil {
		out["goroutines"] = a.sup.Counters()
	}
	return out
}

// Close releases what New opened, for one-shot commands that never Start.
func (a *App) Close() error {
	err := a.store.Close()
	_ = a.logs.Close()
	return err
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return a.Close()
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = a.sd.Stopping()
	a.sup.Cancel()

	a.step(ctx, "watcher", 5*time.Second, func(c context.Context) error { a.watch.Stop(c); return nil })
	a.step(ctx, "debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	a.step(ctx, "adapter", 2*time.Second, a.adapter.Stop)
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	return a.logs.Close()
}

// step runs one shutdown step bounded by max and the caller's deadline.
// A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped, no time left", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
