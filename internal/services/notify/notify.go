// Package notify owns outbound message delivery. Dispatch produced by the
// scheduler and command replies funnel through a bounded queue drained by a
// small worker pool behind a platform-wide rate limit.
package notify

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"frasebot/internal/kit"
	"frasebot/pkg/logx"
)

// ErrQueueFull is returned when the outbound queue cannot accept another
// notification. There is no retry: the caller decides whether to drop or log.
var ErrQueueFull = errors.New("notify queue full")

type Config struct {
	Workers    int
	QueueSize  int
	RatePerSec int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	return c
}

type Service struct {
	mu sync.Mutex

	cfg     Config
	adapter kit.Adapter
	log     logx.Logger

	limiter *rate.Limiter
	queue   chan kit.Notification
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Apply picks up a changed rate limit. Worker count and queue size take
// effect on the next Start.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.limiter.SetLimit(rate.Limit(cfg.RatePerSec))
	s.limiter.SetBurst(cfg.RatePerSec)
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.queue = make(chan kit.Notification, s.cfg.QueueSize)
	s.stopCh = make(chan struct{})
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker(ctx, i)
	}
	s.log.Info("notifier started",
		logx.Int("workers", s.cfg.Workers),
		logx.Int("queue", s.cfg.QueueSize),
		logx.Int("rps", s.cfg.RatePerSec))
}

// Stop shuts the queue and waits for workers to drain what was already
// accepted, up to the context deadline.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.stopCh = nil
	close(s.queue)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("notifier stopped")
	case <-ctx.Done():
		s.log.Warn("notifier stop timed out", logx.Err(ctx.Err()))
	}
}

// Notify enqueues without blocking. A full queue or a stopped service is an
// error, never a stall on the caller's tick.
func (s *Service) Notify(n kit.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh == nil {
		return errors.New("notifier not running")
	}
	select {
	case s.queue <- n:
		return nil
	default:
		s.log.Warn("notification dropped",
			logx.Int64("chat_id", n.Target.ChatID),
			logx.Int("queued", len(s.queue)))
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context, _ int) {
	defer s.wg.Done()
	for n := range s.queue {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		s.deliver(ctx, n)
	}
}

func (s *Service) deliver(ctx context.Context, n kit.Notification) {
	opts := n.Options
	if opts == nil {
		opts = &kit.SendOptions{DisablePreview: true}
	}
	if _, err := s.adapter.SendText(ctx, n.Target, n.Text, opts); err != nil {
		s.log.Warn("notification send failed",
			logx.Int64("chat_id", n.Target.ChatID),
			logx.Int("thread_id", n.Target.ThreadID),
			logx.Err(err))
		return
	}
	s.log.Debug("notification sent",
		logx.Int64("chat_id", n.Target.ChatID),
		logx.Int("thread_id", n.Target.ThreadID))
}
