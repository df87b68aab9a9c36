package app

import (
	"context"
	"slices"
	"strings"

	"auctionwatch/internal/config"
	"auctionwatch/internal/message"
	"auctionwatch/internal/source"
	logx "auctionwatch/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// coalesce bursts
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.apply(ctx, last, next)
			last = next
		}
	}
}

// apply pushes a committed config into the running components. Storage and
// token changes need a restart.
func (a *App) apply(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	_, _ = a.sd.Reloading()
	defer func() { _, _ = a.sd.Ready() }()

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogging(next))
		case "source":
			a.fetcher.p.Store(source.New(mapSource(next), a.http, a.log))
		case "watcher":
			if err := a.watch.Apply(mapWatcher(next)); err != nil {
				a.log.Warn("invalid watcher config; keeping previous", logx.Err(err))
			}
		case "search":
			a.search.Apply(mapSearch(next))
		case "dispatch":
			a.disp.Apply(mapDispatch(next))
		case "telegram":
			c := message.NewComposer(mapMessage(next, a.adapter.Username()))
			a.composer.v.Store(c)
			a.router.SetComposer(c)
			a.router.Apply(mapBot(next))
			if prev.Telegram.Token != next.Telegram.Token {
				a.log.Warn("telegram token changed; restart required for it to take effect")
			}
		case "storage":
			a.log.Warn("storage config changed; restart required for it to take effect")
		case "debug":
			a.debug.Reconfigure(ctx, mapDebug(next))
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
	if slices.Contains(sections, "watcher") {
		_, _ = a.sd.Status("watching " + a.watch.Schedule())
	}
}
