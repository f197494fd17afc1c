package core

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"frasebot/internal/config"
	"frasebot/internal/kit"
	"frasebot/pkg/logx"
)

type recordAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (r *recordAdapter) Stop(ctx context.Context) error                         { return nil }
func (r *recordAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	return nil
}

func (r *recordAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return kit.MessageRef{}, nil
}

func (r *recordAdapter) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func msgUpdate(text string) kit.Update {
	return kit.Update{
		Kind: kit.UpdateMessage,
		Message: &kit.Message{
			ID:     1,
			ChatID: 42,
			FromID: 42,
			Text:   text,
		},
	}
}

func newTestManager(t *testing.T) (*CommandManager, *recordAdapter) {
	t.Helper()
	ad := &recordAdapter{}
	m := NewCommandManager(logx.Nop(), ad, config.NewManager("unused.json"), &Services{})
	return m, ad
}

// runOne routes a single update and executes whatever job it enqueued.
func runOne(t *testing.T, m *CommandManager, up kit.Update) {
	t.Helper()
	m.routeUpdate(context.Background(), up)
	select {
	case job := <-m.jobs:
		if job != nil {
			job()
		}
	case <-time.After(time.Second):
		// nothing enqueued; fine for replies sent directly by the router
	}
}

func TestRouteCommandWithArgs(t *testing.T) {
	t.Parallel()

	m, ad := newTestManager(t)
	var gotArgs []string
	m.SetRegistry([]Command{{
		Route: "agendar",
		Handle: func(ctx context.Context, req *Request) error {
			gotArgs = req.Args
			return req.Reply(ctx, "ok", nil)
		},
	}})

	runOne(t, m, msgUpdate("/agendar seg 07:30"))

	if len(gotArgs) != 2 || gotArgs[0] != "seg" || gotArgs[1] != "07:30" {
		t.Fatalf("args = %v", gotArgs)
	}
	if texts := ad.texts(); len(texts) != 1 || texts[0] != "ok" {
		t.Fatalf("replies = %v", texts)
	}
}

func TestRouteStripsBotMention(t *testing.T) {
	t.Parallel()

	m, ad := newTestManager(t)
	called := false
	m.SetRegistry([]Command{{
		Route:  "frase",
		Handle: func(ctx context.Context, req *Request) error { called = true; return nil },
	}})

	runOne(t, m, msgUpdate("/frase@frasebot"))

	if !called {
		t.Fatalf("handler not called; replies = %v", ad.texts())
	}
}

func TestRouteAlias(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	called := ""
	m.SetRegistry([]Command{{
		Route:   "listar_agendamentos",
		Aliases: []string{"listar"},
		Handle:  func(ctx context.Context, req *Request) error { called = req.Command; return nil },
	}})

	runOne(t, m, msgUpdate("/listar"))

	if called != "listar_agendamentos" {
		t.Fatalf("command = %q", called)
	}
}

func TestRouteTextTrigger(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	called := false
	m.SetRegistry([]Command{{
		Route:        "frase",
		TextTriggers: []string{"Frase aleatória 🎲"},
		Handle:       func(ctx context.Context, req *Request) error { called = true; return nil },
	}})

	runOne(t, m, msgUpdate("Frase aleatória 🎲"))

	if !called {
		t.Fatal("text trigger did not route")
	}
}

func TestRouteUnknownCommand(t *testing.T) {
	t.Parallel()

	m, ad := newTestManager(t)
	m.SetRegistry(nil)

	m.routeUpdate(context.Background(), msgUpdate("/inexistente"))

	texts := ad.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "/help") {
		t.Fatalf("unknown command reply = %v", texts)
	}
}

func TestRouteIgnoresPlainText(t *testing.T) {
	t.Parallel()

	m, ad := newTestManager(t)
	m.SetRegistry(nil)

	m.routeUpdate(context.Background(), msgUpdate("bom dia"))

	if texts := ad.texts(); len(texts) != 0 {
		t.Fatalf("plain text should be ignored, got %v", texts)
	}
}

func TestHelpListsCommands(t *testing.T) {
	t.Parallel()

	m, ad := newTestManager(t)
	m.SetRegistry([]Command{
		{Route: "frase", Description: "envia uma frase aleatória", Handle: func(ctx context.Context, req *Request) error { return nil }},
		{Route: "start", Hidden: true, Handle: func(ctx context.Context, req *Request) error { return nil }},
	})

	runOne(t, m, msgUpdate("/help"))

	texts := ad.texts()
	if len(texts) != 1 {
		t.Fatalf("replies = %v", texts)
	}
	if !strings.Contains(texts[0], "/frase - envia uma frase aleatória") {
		t.Fatalf("help text missing command: %q", texts[0])
	}
	if strings.Contains(texts[0], "/start") {
		t.Fatalf("hidden command listed: %q", texts[0])
	}
}

func TestMenuCommandsOrderAndHidden(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t)
	m.SetRegistry([]Command{
		{Route: "frase", Description: "a", Handle: func(ctx context.Context, req *Request) error { return nil }},
		{Route: "start", Hidden: true, Handle: func(ctx context.Context, req *Request) error { return nil }},
		{Route: "agendar", Description: "b", Handle: func(ctx context.Context, req *Request) error { return nil }},
	})

	menu := m.MenuCommands()
	var words []string
	for _, c := range menu {
		words = append(words, c.Command)
	}
	// registration order, hidden excluded, injected help last
	want := []string{"frase", "agendar", "help"}
	if len(words) != len(want) {
		t.Fatalf("menu = %v", words)
	}
	for i := range want {
		if words[i] != want[i] {
			t.Fatalf("menu = %v, want %v", words, want)
		}
	}
}
