package core

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"frasebot/internal/adapters/telegram"
	"frasebot/internal/config"
	"frasebot/internal/kit"
	"frasebot/internal/quotes"
	"frasebot/internal/schedule"
	"frasebot/internal/services/notify"
	"frasebot/internal/services/scheduler"
	"frasebot/pkg/logx"
)

// StopReason tags why the app is shutting down, for the final log lines.
type StopReason string

const (
	StopSignal StopReason = "signal"
	StopFatal  StopReason = "fatal"
)

const (
	defaultQuotesPath    = "./frases.json"
	defaultSchedulesPath = "./user_schedules.json"
)

type App struct {
	cfgPath string

	cfgm *config.Manager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	adapter kit.Adapter

	quoteStore *quotes.Store
	schedStore *schedule.Store

	engine *scheduler.Engine
	notif  *notify.Service

	cmdm *CommandManager
	pm   *PluginManager

	updates chan kit.Update
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	bootLog := logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "telegram"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, bootLog)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}, ad)
	log = log.With(logx.String("comp", "app"))

	applyLogTarget(logSvc, cfg)

	quotesPath := cfg.Store.QuotesPath
	if strings.TrimSpace(quotesPath) == "" {
		quotesPath = defaultQuotesPath
	}
	schedulesPath := cfg.Store.SchedulesPath
	if strings.TrimSpace(schedulesPath) == "" {
		schedulesPath = defaultSchedulesPath
	}

	quoteStore := quotes.New(quotesPath, log.With(logx.String("comp", "quotes")))
	if err := quoteStore.Load(); err != nil {
		// degrade: /frase and scheduled sends fall back to the empty reply
		log.Warn("starting without quotes", logx.Err(err))
	}

	schedStore := schedule.New(schedulesPath, log.With(logx.String("comp", "schedules")))
	if err := schedStore.Load(); err != nil {
		log.Warn("starting without stored schedules", logx.Err(err))
	} else if users := schedStore.Users(); len(users) > 0 {
		log.Info("stored schedules loaded",
			logx.Int("users", len(users)),
			logx.Any("user_ids", users))
	}

	notifSvc := notify.New(notify.Config{
		Workers:    cfg.Notifier.Workers,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
	}, ad, log.With(logx.String("comp", "notifier")))

	engine := scheduler.New(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
	}, schedStore, quoteStore, notifSvc, log.With(logx.String("comp", "scheduler")))

	serv := &Services{
		Quotes:    quoteStore,
		Schedules: schedStore,
		Notifier:  notifSvc,
		Scheduler: engine,
	}

	cmdm := NewCommandManager(log.With(logx.String("comp", "commands")), ad, cfgm, serv)

	pm := NewPluginManager(log.With(logx.String("comp", "plugins")), PluginDeps{
		Logger:   log,
		Adapter:  ad,
		Config:   cfgm,
		Services: serv,
	}, cmdm)

	return &App{
		cfgPath:    cfgPath,
		cfgm:       cfgm,
		log:        log,
		logs:       logSvc,
		adapter:    ad,
		quoteStore: quoteStore,
		schedStore: schedStore,
		engine:     engine,
		notif:      notifSvc,
		cmdm:       cmdm,
		pm:         pm,
		updates:    make(chan kit.Update, 256),
	}, nil
}

func (a *App) Plugins() *PluginManager { return a.pm }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// transactional config reload: validate before commit/publish
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("telegram.token is required")
		}
		if _, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second); err != nil {
			return err
		}
		if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
			}
		}
		if cfg.Notifier.Workers < 0 || cfg.Notifier.QueueSize < 0 || cfg.Notifier.RatePerSec < 0 {
			return fmt.Errorf("notifier values must be >= 0")
		}
		return nil
	})

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		return err
	}

	a.notif.Start(a.sup.Context())
	if a.engine.Enabled() {
		a.engine.Start()
	}

	if err := a.pm.StartAll(a.sup.Context()); err != nil {
		return err
	}

	a.sup.Go("commands.dispatch", func(c context.Context) error {
		return a.cmdm.DispatchLoop(c, a.updates)
	})

	// hot reload config fan-out
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts: keep only the latest config
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				a.applyConfig(newCfg)
			}
		}
	})

	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

func (a *App) applyConfig(cfg *config.Config) {
	a.logs.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	})
	applyLogTarget(a.logs, cfg)

	a.notif.Apply(notify.Config{
		Workers:    cfg.Notifier.Workers,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
	})

	prevEnabled := a.engine.Enabled()
	a.engine.Apply(scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		Timezone: cfg.Scheduler.Timezone,
	})
	switch {
	case prevEnabled && !cfg.Scheduler.Enabled:
		a.log.Info("scheduler disabled via config")
		a.engine.Stop()
	case !prevEnabled && cfg.Scheduler.Enabled:
		a.log.Info("scheduler enabled via config")
		a.engine.Start()
	}

	a.log.Info("config reloaded")
}

func applyLogTarget(logs *logx.Service, cfg *config.Config) {
	if raw := strings.TrimSpace(cfg.Telegram.GroupLog); raw != "" {
		if chatID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			logs.SetTelegramTarget(chatID, cfg.Logging.Telegram.ThreadID)
			return
		}
	}
	logs.SetTelegramTarget(0, 0)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	// cancel the run context so background loops start unwinding immediately
	a.sup.Cancel()

	// run a shutdown step with an upper bound so one component can't stall
	// the whole stop
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			if dl, ok := ctx.Deadline(); ok {
				rem := time.Until(dl)
				if rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

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
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)))
		}
	}

	step("plugins", 4*time.Second, func(c context.Context) error { a.pm.StopAll(c); return nil })
	step("scheduler", 2*time.Second, func(c context.Context) error { a.engine.Stop(); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	_ = a.logs.Close()
	return nil
}
