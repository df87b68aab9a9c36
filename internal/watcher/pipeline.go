// Package watcher runs the fetch, diff, persist and dispatch pipeline on a
// schedule.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionwatch/internal/catalog"
	"auctionwatch/internal/dispatch"
	"auctionwatch/internal/observability"
	"auctionwatch/internal/storage"
	"auctionwatch/internal/subscriber"
	logx "auctionwatch/pkg/logx"
)

type Fetcher interface {
	Fetch(ctx context.Context) (catalog.Snapshot, error)
}

type SessionLister interface {
	Sessions(ctx context.Context) ([]subscriber.Session, error)
}

type Dispatcher interface {
	DispatchListings(ctx context.Context, listings []catalog.Listing, sessions []subscriber.Session, c dispatch.Composer) dispatch.Report
}

// PersistError means the new snapshot could not be saved; nothing was
// dispatched and the same listings will be reported again next tick.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist snapshot: " + e.Err.Error() }
func (e *PersistError) Unwrap() error { return e.Err }

// Tick results, also used as the metrics label.
const (
	ResultDispatched   = "dispatched"
	ResultUnchanged    = "unchanged"
	ResultBaseline     = "baseline"
	ResultFetchError   = "fetch_error"
	ResultLoadError    = "load_error"
	ResultPersistError = "persist_error"
)

// TickReport summarizes one pipeline run.
type TickReport struct {
	Result          string
	Listings        int
	NewListings     []catalog.Listing
	SessionsSkipped bool
	Dispatch        dispatch.Report
	Took            time.Duration
}

// tickState carries stage outputs from one stage to the next.
type tickState struct {
	current  catalog.Snapshot
	previous catalog.Snapshot
	baseline bool
	added    []catalog.Listing
	sessions []subscriber.Session
}

type Pipeline struct {
	fetcher    Fetcher
	snapshots  storage.SnapshotStore
	sessions   SessionLister
	dispatcher Dispatcher
	composer   dispatch.Composer
	log        logx.Logger
	metrics    observability.Metrics
}

func NewPipeline(f Fetcher, snapshots storage.SnapshotStore, sessions SessionLister, d Dispatcher, c dispatch.Composer, log logx.Logger, metrics observability.Metrics) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	if metrics == nil {
		metrics = observability.Nop()
	}
	return &Pipeline{
		fetcher:    f,
		snapshots:  snapshots,
		sessions:   sessions,
		dispatcher: d,
		composer:   c,
		log:        log.With(logx.String("comp", "pipeline")),
		metrics:    metrics,
	}
}

// Tick runs one pass. Stages run strictly in order and a failing stage ends
// the pass: a fetch error returns the *source.FetchError, a failed save
// returns *PersistError before anything is sent.
func (p *Pipeline) Tick(ctx context.Context) (rep TickReport, err error) {
	start := time.Now()
	defer func() {
		rep.Took = time.Since(start)
		p.metrics.ObserveTick(rep.Result, rep.Took)
		p.logSummary(rep, err)
	}()

	var st tickState

	st.current, err = p.fetcher.Fetch(ctx)
	if err != nil {
		rep.Result = ResultFetchError
		return rep, err
	}
	rep.Listings = st.current.Len()
	p.metrics.SetListings(rep.Listings)

	if err = p.loadPrevious(ctx, &st); err != nil {
		rep.Result = ResultLoadError
		return rep, err
	}

	if st.baseline {
		if err = p.persist(ctx, st.current); err != nil {
			rep.Result = ResultPersistError
			return rep, err
		}
		rep.Result = ResultBaseline
		return rep, nil
	}

	st.added = catalog.Diff(st.previous, st.current)
	if len(st.added) == 0 {
		rep.Result = ResultUnchanged
		return rep, nil
	}
	rep.NewListings = st.added
	p.metrics.AddNewListings(len(st.added))

	if err = p.persist(ctx, st.current); err != nil {
		rep.Result = ResultPersistError
		return rep, err
	}

	st.sessions, rep.SessionsSkipped = p.loadSessions(ctx)
	rep.Dispatch = p.dispatcher.DispatchListings(ctx, st.added, st.sessions, p.composer)
	rep.Result = ResultDispatched
	return rep, nil
}

func (p *Pipeline) loadPrevious(ctx context.Context, st *tickState) error {
	prev, err := p.snapshots.LoadSnapshot(ctx)
	switch {
	case err == nil:
		st.previous = prev
	case errors.Is(err, storage.ErrNotFound):
		st.baseline = true
	case errors.Is(err, storage.ErrCorrupt):
		p.log.Warn("persisted snapshot unreadable, starting from a new baseline", logx.Err(err))
		st.baseline = true
	default:
		return fmt.Errorf("load snapshot: %w", err)
	}
	return nil
}

func (p *Pipeline) persist(ctx context.Context, snap catalog.Snapshot) error {
	if err := p.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return &PersistError{Err: err}
	}
	return nil
}

// loadSessions never fails the tick: on error only the individual
// notifications are skipped.
func (p *Pipeline) loadSessions(ctx context.Context) ([]subscriber.Session, bool) {
	if p.sessions == nil {
		return nil, true
	}
	ss, err := p.sessions.Sessions(ctx)
	if err != nil {
		p.log.Error("reading sessions failed, skipping individual notifications", logx.Err(err))
		return nil, true
	}
	return ss, false
}

func (p *Pipeline) logSummary(rep TickReport, err error) {
	fields := []logx.Field{
		logx.String("result", rep.Result),
		logx.Int("listings", rep.Listings),
		logx.Int("new", len(rep.NewListings)),
		logx.Duration("took", rep.Took),
	}
	if len(rep.Dispatch.Outcomes) > 0 {
		fields = append(fields, logx.Int("sent", rep.Dispatch.Sent()), logx.Int("failed", rep.Dispatch.Failed()))
	}
	if rep.SessionsSkipped {
		fields = append(fields, logx.Bool("sessions_skipped", true))
	}
	switch {
	case err != nil:
		p.log.Error("tick failed", append(fields, logx.Err(err))...)
	case rep.Result == ResultDispatched:
		p.log.Info("new listings found", fields...)
	default:
		p.log.Debug("tick done", fields...)
	}
}
