// Package scheduler drives the minute tick that turns stored rules into
// outbound quote notifications.
package scheduler

import (
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"frasebot/internal/kit"
	"frasebot/internal/schedule"
	"frasebot/pkg/logx"
)

type Config struct {
	Enabled  bool
	Timezone string // IANA TZ, e.g. "America/Sao_Paulo"
}

// RuleSource yields a consistent view of all users' rules for one tick.
type RuleSource interface {
	Snapshot() map[int64][]schedule.Rule
}

// PhraseSource produces the rendered message body for a dispatch.
type PhraseSource interface {
	Phrase() string
}

// Notifier accepts a rendered notification for asynchronous delivery.
type Notifier interface {
	Notify(kit.Notification) error
}

// Engine fires once per wall-clock minute and matches every stored rule
// against the current (weekday, HH:MM) in the configured timezone. A rule
// matches when its time equals the clock and its day is AnyDay or the
// current weekday. Each match dispatches one fresh quote; one user's
// failure never blocks the rest of the sweep.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	rules   RuleSource
	phrases PhraseSource
	out     Notifier
	log     logx.Logger

	loc    *time.Location
	parser cron.Parser
	c      *cron.Cron
}

func New(cfg Config, rules RuleSource, phrases PhraseSource, out Notifier, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		cfg:     cfg,
		rules:   rules,
		phrases: phrases,
		out:     out,
		log:     log,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Enabled
}

// Apply picks up config changes. A timezone change restarts the cron so the
// next tick already evaluates in the new location.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	oldTZ := strings.TrimSpace(e.cfg.Timezone)
	e.cfg = cfg
	if e.c == nil {
		return
	}
	if strings.TrimSpace(cfg.Timezone) != oldTZ {
		e.restartLocked()
	}
}

func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c != nil {
		return
	}
	e.loc = e.loadLocationLocked()
	e.c = cron.New(cron.WithParser(e.parser), cron.WithLocation(e.loc))
	// every minute, on the minute
	_, _ = e.c.AddFunc("* * * * *", e.tick)
	e.c.Start()
	e.log.Info("scheduler started", logx.String("tz", e.loc.String()))
}

func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.c == nil {
		return
	}
	<-e.c.Stop().Done()
	e.c = nil
	e.log.Info("scheduler stopped")
}

func (e *Engine) restartLocked() {
	<-e.c.Stop().Done()
	e.loc = e.loadLocationLocked()
	e.c = cron.New(cron.WithParser(e.parser), cron.WithLocation(e.loc))
	_, _ = e.c.AddFunc("* * * * *", e.tick)
	e.c.Start()
	e.log.Info("scheduler restarted", logx.String("tz", e.loc.String()))
}

func (e *Engine) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(e.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		e.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (e *Engine) tick() {
	e.mu.Lock()
	loc := e.loc
	e.mu.Unlock()
	e.evaluate(time.Now().In(loc))
}

// evaluate runs one sweep for the given instant. Split out from tick so
// matching is testable against a fixed clock.
func (e *Engine) evaluate(now time.Time) {
	clock := schedule.FormatClock(now)
	weekday := now.Weekday()

	matched := 0
	for userID, rules := range e.rules.Snapshot() {
		for _, r := range rules {
			if r.Time != clock || !r.Day.Matches(weekday) {
				continue
			}
			matched++
			n := kit.Notification{
				Target: kit.ChatTarget{ChatID: userID},
				Text:   e.phrases.Phrase(),
			}
			if err := e.out.Notify(n); err != nil {
				e.log.Warn("scheduled dispatch failed",
					logx.Int64("chat_id", userID),
					logx.String("clock", clock),
					logx.Err(err))
			}
		}
	}
	if matched > 0 {
		e.log.Info("tick dispatched",
			logx.String("clock", clock),
			logx.Int("matched", matched))
	} else {
		e.log.Debug("tick idle", logx.String("clock", clock))
	}
}
