package watcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"auctionwatch/internal/observability"
	logx "auctionwatch/pkg/logx"
)

// Ticker is one pipeline pass.
type Ticker interface {
	Tick(ctx context.Context) (TickReport, error)
}

type Config struct {
	// Schedule accepts anything ParseSchedule does.
	Schedule    string
	Timezone    string
	TickTimeout time.Duration
	RunOnStart  bool
}

// runState guards the pipeline against overlapping runs.
type runState struct {
	mu       sync.Mutex
	inflight bool
}

func (s *runState) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight {
		return false
	}
	s.inflight = true
	return true
}

func (s *runState) release() {
	s.mu.Lock()
	s.inflight = false
	s.mu.Unlock()
}

// Service triggers the pipeline from cron. A tick that fires while the
// previous one is still running is skipped and counted. Failed ticks are
// logged and never stop the schedule.
type Service struct {
	mu   sync.Mutex
	cfg  Config
	spec string
	c    *cron.Cron
	id   cron.EntryID
	ctx  context.Context

	ticker  Ticker
	log     logx.Logger
	metrics observability.Metrics

	state   runState
	skipped atomic.Uint64
	runs    atomic.Uint64
	wg      sync.WaitGroup
}

func NewService(cfg Config, t Ticker, log logx.Logger, metrics observability.Metrics) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if metrics == nil {
		metrics = observability.Nop()
	}
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	return &Service{
		cfg:     cfg,
		spec:    spec,
		ticker:  t,
		log:     log.With(logx.String("comp", "watcher")),
		metrics: metrics,
	}, nil
}

// Start registers the schedule and begins ticking. ctx bounds every run.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	s.ctx = ctx
	loc := loadLocation(s.cfg.Timezone, s.log)
	s.c = cron.New(
		cron.WithParser(cronParser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger{log: s.log})),
	)
	if err := s.registerLocked(); err != nil {
		s.c = nil
		return err
	}
	s.c.Start()
	s.log.Info("watcher started", logx.String("schedule", s.spec), logx.String("tz", loc.String()))

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.trigger()
		}()
	}
	return nil
}

func (s *Service) registerLocked() error {
	if s.id != 0 {
		s.c.Remove(s.id)
		s.id = 0
	}
	id, err := s.c.AddFunc(s.spec, s.trigger)
	if err != nil {
		return fmt.Errorf("register schedule %q: %w", s.spec, err)
	}
	s.id = id
	return nil
}

// Apply updates the configuration and re-registers the schedule if it
// changed. An invalid schedule keeps the current one.
func (s *Service) Apply(cfg Config) error {
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := spec != s.spec
	s.cfg = cfg
	s.spec = spec
	if s.c == nil || !changed {
		return nil
	}
	if err := s.registerLocked(); err != nil {
		return err
	}
	s.log.Info("schedule updated", logx.String("schedule", spec))
	return nil
}

// Stop stops triggering and waits for an in-flight run until ctx is done.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.id = 0
	s.mu.Unlock()
	if c == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("watcher stopped")
	case <-ctx.Done():
		s.log.Warn("watcher stop timed out with a tick in flight")
	}
}

// RunOnce runs a tick now, subject to the same overlap guard. ok is false
// when the tick was skipped.
func (s *Service) RunOnce(ctx context.Context) (rep TickReport, ok bool, err error) {
	if !s.state.tryAcquire() {
		s.skipped.Add(1)
		s.metrics.IncTickSkipped()
		return TickReport{}, false, nil
	}
	defer s.state.release()

	s.mu.Lock()
	timeout := s.cfg.TickTimeout
	s.mu.Unlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	s.runs.Add(1)
	rep, err = s.ticker.Tick(ctx)
	return rep, true, err
}

func (s *Service) trigger() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return
	}
	_, ok, _ := s.RunOnce(ctx)
	if !ok {
		s.log.Warn("tick skipped, previous run still in progress", logx.Uint64("skipped_total", s.skipped.Load()))
	}
}

// Skipped reports how many ticks were dropped by the overlap guard.
func (s *Service) Skipped() uint64 { return s.skipped.Load() }

// Runs reports how many ticks were executed.
func (s *Service) Runs() uint64 { return s.runs.Load() }

func (s *Service) Schedule() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

func loadLocation(name string, log logx.Logger) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn("unknown timezone, using UTC", logx.String("tz", name), logx.Err(err))
		return time.UTC
	}
	return loc
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
