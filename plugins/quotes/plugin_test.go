package quotes

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"frasebot/internal/core"
	"frasebot/internal/kit"
	qstore "frasebot/internal/quotes"
	"frasebot/internal/schedule"
	"frasebot/pkg/logx"
)

type replyAdapter struct {
	mu   sync.Mutex
	sent []string
}

func (r *replyAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (r *replyAdapter) Stop(ctx context.Context) error                         { return nil }
func (r *replyAdapter) UpdateMenuCommands(ctx context.Context, cmds []kit.BotCommand) error {
	return nil
}

func (r *replyAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return kit.MessageRef{}, nil
}

func (r *replyAdapter) last(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no reply sent")
	}
	return r.sent[len(r.sent)-1]
}

type fixture struct {
	plugin   *Plugin
	adapter  *replyAdapter
	handlers map[string]core.HandlerFunc
	services *core.Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	quotesPath := filepath.Join(dir, "frases.json")
	if err := os.WriteFile(quotesPath, []byte(`[{"quote": "A vida é bela.", "author": "Alguém"}]`), 0o600); err != nil {
		t.Fatalf("write quotes: %v", err)
	}
	qs := qstore.New(quotesPath, logx.Nop())
	if err := qs.Load(); err != nil {
		t.Fatalf("load quotes: %v", err)
	}
	ss := schedule.New(filepath.Join(dir, "user_schedules.json"), logx.Nop())

	serv := &core.Services{Quotes: qs, Schedules: ss}
	ad := &replyAdapter{}
	p := New()
	if err := p.Init(context.Background(), core.PluginDeps{Logger: logx.Nop(), Adapter: ad, Services: serv}); err != nil {
		t.Fatalf("init: %v", err)
	}

	handlers := map[string]core.HandlerFunc{}
	for _, c := range p.Commands() {
		handlers[c.Route] = c.Handle
	}
	return &fixture{plugin: p, adapter: ad, handlers: handlers, services: serv}
}

func (f *fixture) run(t *testing.T, route string, args ...string) string {
	t.Helper()
	h, ok := f.handlers[route]
	if !ok {
		t.Fatalf("no handler for %q", route)
	}
	req := &core.Request{
		Update: kit.Update{
			Kind:    kit.UpdateMessage,
			Message: &kit.Message{ChatID: 42, FromID: 42, FromFirstName: "Ana"},
		},
		Chat:     kit.ChatTarget{ChatID: 42},
		FromID:   42,
		Command:  route,
		Args:     args,
		Adapter:  f.adapter,
		Logger:   logx.Nop(),
		Services: f.services,
	}
	if err := h(context.Background(), req); err != nil {
		t.Fatalf("handler %q: %v", route, err)
	}
	return f.adapter.last(t)
}

func TestStartGreetsByName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.run(t, "start")
	if !strings.Contains(got, "Olá Ana") || !strings.Contains(got, "bem-vindo(a)") {
		t.Fatalf("greeting = %q", got)
	}
}

func TestFraseRepliesDecoratedQuote(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	got := f.run(t, "frase")
	want := "✅😊 🎉 \"A vida é bela.\" - Alguém ✨ ❤️👍"
	if got != want {
		t.Fatalf("frase = %q, want %q", got, want)
	}
}

func TestAgendarFlows(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if got := f.run(t, "agendar"); got != textScheduleUsage {
		t.Fatalf("no args: %q", got)
	}
	if got := f.run(t, "agendar", "seg", "07:30"); got != textScheduleSaved {
		t.Fatalf("day+time: %q", got)
	}
	if got := f.run(t, "agendar", "22:00"); got != textScheduleSaved {
		t.Fatalf("time only: %q", got)
	}
	if got := f.run(t, "agendar", "segunda", "07:30"); got != textScheduleBadDay {
		t.Fatalf("bad day: %q", got)
	}
	if got := f.run(t, "agendar", "seg", "7h30"); got != textScheduleBadTime {
		t.Fatalf("bad time: %q", got)
	}

	rules := f.services.Schedules.List(42)
	if len(rules) != 2 {
		t.Fatalf("stored rules = %+v", rules)
	}
	if rules[0].Day != schedule.Day(1) || rules[0].Time != "07:30" {
		t.Fatalf("rule 1 = %+v", rules[0])
	}
	if rules[1].Day != schedule.AnyDay || rules[1].Time != "22:00" {
		t.Fatalf("rule 2 = %+v", rules[1])
	}
}

func TestListarFormatsRules(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if got := f.run(t, "listar_agendamentos"); got != textListEmpty {
		t.Fatalf("empty list: %q", got)
	}

	f.run(t, "agendar", "qua", "07:30")
	f.run(t, "agendar", "22:00")

	got := f.run(t, "listar_agendamentos")
	if !strings.HasPrefix(got, "📅 Seus agendamentos:") {
		t.Fatalf("list header: %q", got)
	}
	if !strings.Contains(got, "1. Dia: qua, Hora: 07:30") {
		t.Fatalf("list entry 1: %q", got)
	}
	if !strings.Contains(got, "2. Dia: Todos os dias, Hora: 22:00") {
		t.Fatalf("list entry 2: %q", got)
	}
}

func TestExcluirAgendamento(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.run(t, "agendar", "06:00")
	f.run(t, "agendar", "12:00")

	if got := f.run(t, "excluir_agendamento"); got != textRemoveUsage {
		t.Fatalf("no args: %q", got)
	}
	if got := f.run(t, "excluir_agendamento", "abc"); got != textRemoveUsage {
		t.Fatalf("non-numeric: %q", got)
	}
	if got := f.run(t, "excluir_agendamento", "5"); got != textRemoveNotFound {
		t.Fatalf("out of range: %q", got)
	}
	if got := f.run(t, "excluir_agendamento", "1"); got != textRemoveOK {
		t.Fatalf("remove: %q", got)
	}

	rules := f.services.Schedules.List(42)
	if len(rules) != 1 || rules[0].Time != "12:00" {
		t.Fatalf("remaining rules = %+v", rules)
	}
}

func TestExcluirTodos(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if got := f.run(t, "excluir_todos"); got != textRemoveAllEmpty {
		t.Fatalf("empty: %q", got)
	}

	f.run(t, "agendar", "09:00")
	if got := f.run(t, "excluir_todos"); got != textRemoveAllOK {
		t.Fatalf("clear: %q", got)
	}
	if rules := f.services.Schedules.List(42); len(rules) != 0 {
		t.Fatalf("rules survived: %+v", rules)
	}
}

func TestSairSaysGoodbye(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if got := f.run(t, "sair"); got != textGoodbye {
		t.Fatalf("sair = %q", got)
	}
}
