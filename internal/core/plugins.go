package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"frasebot/internal/config"
	"frasebot/internal/kit"
	"frasebot/pkg/logx"
)

type Plugin interface {
	Name() string
	Init(ctx context.Context, deps PluginDeps) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Commands() []Command
}

type PluginDeps struct {
	Logger   logx.Logger
	Adapter  kit.Adapter
	Config   *config.Manager
	Services *Services
}

type PluginManager struct {
	mu sync.Mutex

	log  logx.Logger
	deps PluginDeps
	cmdm *CommandManager

	names   []string
	reg     map[string]Plugin
	started map[string]bool
}

func NewPluginManager(log logx.Logger, deps PluginDeps, cmdm *CommandManager) *PluginManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &PluginManager{
		log:     log,
		deps:    deps,
		cmdm:    cmdm,
		reg:     map[string]Plugin{},
		started: map[string]bool{},
	}
}

func (pm *PluginManager) Register(p Plugin) error {
	if p == nil {
		return fmt.Errorf("nil plugin")
	}
	name := p.Name()
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if _, dup := pm.reg[name]; dup {
		return fmt.Errorf("plugin %q already registered", name)
	}
	pm.reg[name] = p
	pm.names = append(pm.names, name)
	return nil
}

// StartAll inits and starts every registered plugin in registration order,
// then publishes the combined command registry and the transport menu.
func (pm *PluginManager) StartAll(ctx context.Context) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var cmds []Command
	for _, name := range pm.names {
		p := pm.reg[name]
		deps := pm.deps
		deps.Logger = pm.deps.Logger.With(logx.String("plugin", name))
		if err := p.Init(ctx, deps); err != nil {
			return fmt.Errorf("init plugin %s: %w", name, err)
		}
		if err := p.Start(ctx); err != nil {
			return fmt.Errorf("start plugin %s: %w", name, err)
		}
		pm.started[name] = true
		for _, c := range p.Commands() {
			c.PluginName = name
			cmds = append(cmds, c)
		}
		pm.log.Info("plugin started", logx.String("plugin", name))
	}

	pm.cmdm.SetRegistry(cmds)
	if menu := pm.cmdm.MenuCommands(); len(menu) > 0 {
		if err := pm.deps.Adapter.UpdateMenuCommands(ctx, menu); err != nil {
			pm.log.Warn("command menu update failed", logx.Err(err))
		}
	}
	return nil
}

// StopAll stops plugins in reverse registration order. A stalled or
// panicking plugin is bounded so the rest still stop.
func (pm *PluginManager) StopAll(ctx context.Context) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for i := len(pm.names) - 1; i >= 0; i-- {
		name := pm.names[i]
		if !pm.started[name] {
			continue
		}
		pm.stopOne(ctx, name, pm.reg[name])
		pm.started[name] = false
	}
}

func (pm *PluginManager) stopOne(ctx context.Context, name string, p Plugin) {
	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				pm.log.Error("panic in plugin stop",
					logx.String("plugin", name),
					logx.Any("panic", r),
					logx.Stack(string(debug.Stack())))
			}
		}()
		if err := p.Stop(stopCtx); err != nil {
			pm.log.Warn("plugin stop error", logx.String("plugin", name), logx.Err(err))
		}
	}()

	select {
	case <-done:
		pm.log.Info("plugin stopped", logx.String("plugin", name))
	case <-stopCtx.Done():
		pm.log.Warn("plugin stop timed out", logx.String("plugin", name))
	}
}
