package core

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"frasebot/internal/config"
	"frasebot/internal/kit"
	"frasebot/internal/quotes"
	"frasebot/internal/schedule"
	"frasebot/internal/services/notify"
	"frasebot/internal/services/scheduler"
	"frasebot/pkg/logx"
)

type Command struct {
	// Route is the slash-command word, e.g. "agendar".
	Route   string
	Aliases []string
	// TextTriggers are exact message texts that invoke the command without a
	// slash. Reply-keyboard buttons arrive as plain text, so each button
	// label registers here.
	TextTriggers []string
	Description  string
	Usage        string
	Hidden       bool // excluded from help and the command menu

	PluginName string
	Timeout    time.Duration // optional per-command override
	Handle     HandlerFunc
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter  kit.Adapter
	Config   *config.Config
	Logger   logx.Logger
	Services *Services
}

// Reply sends text back to the originating chat.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, opt)
	return err
}

type Services struct {
	Quotes    *quotes.Store
	Schedules *schedule.Store
	Notifier  *notify.Service
	Scheduler *scheduler.Engine
}

type CommandManager struct {
	mu sync.RWMutex

	byWord map[string]*Command // slash word or alias -> command
	byText map[string]*Command // exact plain-text trigger -> command
	order  []string            // route order for help and the menu

	log     logx.Logger
	adapter kit.Adapter
	cfgm    *config.Manager
	serv    *Services

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, cfgm *config.Manager, serv *Services) *CommandManager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &CommandManager{
		byWord:  map[string]*Command{},
		byText:  map[string]*Command{},
		log:     log,
		adapter: adapter,
		cfgm:    cfgm,
		serv:    serv,
		jobs:    make(chan func(), 256),
	}
}

func (m *CommandManager) SetRegistry(cmds []Command) {
	// always inject help
	cmds = append(cmds, Command{
		Route:       "help",
		Aliases:     []string{"ajuda"},
		Description: "mostra os comandos disponíveis",
		Usage:       "/help",
		Handle: func(ctx context.Context, req *Request) error {
			return req.Reply(ctx, m.helpText(), &kit.SendOptions{DisablePreview: true})
		},
	})

	byWord := map[string]*Command{}
	byText := map[string]*Command{}
	var order []string
	for i := range cmds {
		c := &cmds[i]
		word := strings.TrimSpace(strings.TrimPrefix(c.Route, "/"))
		if word == "" || c.Handle == nil {
			continue
		}
		c.Route = word
		byWord[word] = c
		order = append(order, word)
		for _, a := range c.Aliases {
			a = strings.TrimSpace(strings.TrimPrefix(a, "/"))
			if a == "" || strings.Contains(a, " ") {
				continue
			}
			byWord[a] = c
		}
		for _, tr := range c.TextTriggers {
			tr = strings.TrimSpace(tr)
			if tr == "" {
				continue
			}
			byText[tr] = c
		}
	}

	m.mu.Lock()
	m.byWord = byWord
	m.byText = byText
	m.order = order
	m.mu.Unlock()
}

// MenuCommands returns the visible registry in registration order for the
// transport's command menu.
func (m *CommandManager) MenuCommands() []kit.BotCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(m.order))
	for _, word := range m.order {
		c := m.byWord[word]
		if c == nil || c.Hidden {
			continue
		}
		out = append(out, kit.BotCommand{Command: word, Description: c.Description})
	}
	return out
}

func (m *CommandManager) helpText() string {
	m.mu.RLock()
	words := append([]string(nil), m.order...)
	byWord := m.byWord
	m.mu.RUnlock()

	sort.Strings(words)
	var b strings.Builder
	b.WriteString("Comandos disponíveis:\n")
	for _, w := range words {
		c := byWord[w]
		if c == nil || c.Hidden {
			continue
		}
		b.WriteString("/")
		b.WriteString(w)
		if c.Description != "" {
			b.WriteString(" - ")
			b.WriteString(c.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	m.log.Info("command dispatcher started",
		logx.Int("workers", workers),
		logx.Int("job_queue_cap", cap(m.jobs)))

	var (
		wg        sync.WaitGroup
		closeOnce sync.Once
	)
	closeJobs := func() {
		closeOnce.Do(func() { close(m.jobs) })
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		idx := i
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("panic in command worker",
						logx.Int("worker", idx),
						logx.Any("panic", r),
						logx.Stack(string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					if job == nil {
						continue
					}
					job()
				}
			}
		}()
	}

	defer func() {
		closeJobs()
		wg.Wait()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				m.log.Info("command dispatcher stopped (updates channel closed)")
				return nil
			}
			m.routeUpdate(ctx, up)
		}
	}
}

func (m *CommandManager) routeUpdate(root context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	m.mu.RLock()
	byWord := m.byWord
	byText := m.byText
	m.mu.RUnlock()

	if !strings.HasPrefix(text, "/") {
		// reply-keyboard buttons arrive as their label text
		if cmd, ok := byText[text]; ok {
			m.enqueueCommand(root, up, *cmd, nil)
		}
		return
	}

	parts := tokenizeCommandLine(text)
	if len(parts) == 0 {
		return
	}
	word := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	cmd, ok := byWord[word]
	if !ok {
		_, _ = m.adapter.SendText(root,
			kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
			"Comando desconhecido. Tente /help.", nil)
		return
	}
	m.enqueueCommand(root, up, *cmd, parts[1:])
}

func (m *CommandManager) enqueueCommand(root context.Context, up kit.Update, cmd Command, args []string) {
	msg := up.Message

	rid := newReqID()
	reqLog := m.log.With(
		logx.String("rid", rid),
		logx.Int64("chat_id", msg.ChatID),
		logx.Int("thread_id", msg.ThreadID),
		logx.Int64("from_id", msg.FromID),
		logx.String("cmd", cmd.Route),
	)

	req := &Request{
		Update:   up,
		Chat:     kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		FromID:   msg.FromID,
		Command:  cmd.Route,
		Args:     args,
		ReqID:    rid,
		Adapter:  m.adapter,
		Config:   m.cfgm.Get(),
		Logger:   reqLog,
		Services: m.serv,
	}

	final := Chain(
		cmd.Handle,
		MWPanicRecover(m.log),
		MWRequestLog(m.log),
		MWTimeout(cmd.Timeout),
	)

	select {
	case m.jobs <- func() { _ = final(root, req) }:
	default:
		_, _ = m.adapter.SendText(root, req.Chat, "Estou ocupado agora, tente novamente.", nil)
	}
}
