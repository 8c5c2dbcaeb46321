package outbox

import (
	"context"
	"sync"
	"time"

	"salesflow/pkg/logger"
)

const DefaultInterval = 5 * time.Second

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	// StaleAfter enables reclaiming PROCESSING events claimed longer ago. Zero leaves them alone.
	StaleAfter time.Duration
	Ticker     TickerFactory
}

// Scheduler drives a Processor on a fixed interval until stopped.
type Scheduler struct {
	processor *Processor
	cfg       SchedulerConfig
	logger    *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(processor *Processor, cfg SchedulerConfig, l *logger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Ticker == nil {
		cfg.Ticker = NewRealTicker
	}
	if l == nil {
		l = logger.NewNop()
	}
	return &Scheduler{processor: processor, cfg: cfg, logger: l}
}

// Start launches the polling loop. Calling it on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	ticker := s.cfg.Ticker(s.cfg.Interval)

	go s.loop(runCtx, ticker, s.done)
	s.logger.Infof("outbox scheduler started (every %s, batch %d)", s.cfg.Interval, s.cfg.BatchSize)
}

// Stop ends the loop and waits for an in-flight run to finalize its claimed batch.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Infof("outbox scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.cfg.StaleAfter > 0 {
		if _, err := s.processor.RequeueStale(ctx, s.cfg.StaleAfter, s.cfg.BatchSize); err != nil {
			s.logger.Errorf("outbox stale requeue failed: %v", err)
		}
	}
	if _, err := s.processor.RunOnce(ctx, RunOptions{Limit: s.cfg.BatchSize}); err != nil && ctx.Err() == nil {
		s.logger.Errorf("outbox run failed: %v", err)
	}
}
