// Package quotes is the bot's user surface: the quote command, the schedule
// management commands and the persistent menu keyboard.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"frasebot/internal/core"
	"frasebot/internal/kit"
	"frasebot/internal/schedule"
	"frasebot/pkg/logx"
	"frasebot/pkg/tgui"
)

type Plugin struct {
	deps core.PluginDeps
}

func New() *Plugin { return &Plugin{} }

func (p *Plugin) Name() string { return "quotes" }

func (p *Plugin) Init(ctx context.Context, deps core.PluginDeps) error {
	p.deps = deps
	return nil
}

func (p *Plugin) Start(ctx context.Context) error { return nil }
func (p *Plugin) Stop(ctx context.Context) error  { return nil }

// menu is the persistent keyboard mirroring the command set. Button labels
// are the slash commands themselves, so pressing one routes like a typed
// command.
func menu() *kit.SendOptions {
	rm := tgui.NewReply().
		Row("/frase", "/agendar").
		Row("/listar_agendamentos", "/excluir_agendamento").
		Row("/excluir_todos", "/sair").
		Markup()
	return &kit.SendOptions{ReplyMarkupAdapter: rm}
}

func (p *Plugin) Commands() []core.Command {
	return []core.Command{
		{
			Route:       "start",
			Description: "inicia a conversa e mostra o menu",
			Usage:       "/start",
			Hidden:      true,
			Handle:      p.handleStart,
		},
		{
			Route:       "frase",
			Description: "envia uma frase aleatória",
			Usage:       "/frase",
			Handle:      p.handleFrase,
		},
		{
			Route:       "agendar",
			Description: "agenda o envio diário ou semanal de frases",
			Usage:       "/agendar [dia] HH:MM",
			Handle:      p.handleAgendar,
		},
		{
			Route:       "listar_agendamentos",
			Description: "lista seus agendamentos",
			Usage:       "/listar_agendamentos",
			Handle:      p.handleListar,
		},
		{
			Route:       "excluir_agendamento",
			Description: "exclui um agendamento pelo número",
			Usage:       "/excluir_agendamento N",
			Handle:      p.handleExcluir,
		},
		{
			Route:       "excluir_todos",
			Description: "exclui todos os seus agendamentos",
			Usage:       "/excluir_todos",
			Handle:      p.handleExcluirTodos,
		},
		{
			Route:       "sair",
			Description: "encerra a conversa",
			Usage:       "/sair",
			Handle:      p.handleSair,
		},
	}
}

func (p *Plugin) handleStart(ctx context.Context, req *core.Request) error {
	name := req.Update.Message.FromFirstName
	if name == "" {
		name = req.Update.Message.FromUsername
	}
	return req.Reply(ctx, fmt.Sprintf(textWelcome, name), menu())
}

func (p *Plugin) handleFrase(ctx context.Context, req *core.Request) error {
	phrase := req.Services.Quotes.Phrase()
	return req.Reply(ctx, fmt.Sprintf(textPhraseWrap, phrase), menu())
}

// handleAgendar accepts "/agendar [dia] HH:MM": with one argument the rule
// fires every day, with two the first names the weekday.
func (p *Plugin) handleAgendar(ctx context.Context, req *core.Request) error {
	var dayToken, hhmm string
	switch len(req.Args) {
	case 1:
		hhmm = req.Args[0]
	case 2:
		dayToken = req.Args[0]
		hhmm = req.Args[1]
	default:
		return req.Reply(ctx, textScheduleUsage, menu())
	}

	_, err := req.Services.Schedules.Add(req.FromID, dayToken, hhmm)
	switch {
	case err == nil:
		return req.Reply(ctx, textScheduleSaved, menu())
	case errors.Is(err, schedule.ErrUnknownDay):
		return req.Reply(ctx, textScheduleBadDay, menu())
	case errors.Is(err, schedule.ErrInvalidTime):
		return req.Reply(ctx, textScheduleBadTime, menu())
	default:
		req.Logger.Error("schedule save failed", logx.Err(err))
		return req.Reply(ctx, textScheduleSaveErr, menu())
	}
}

func (p *Plugin) handleListar(ctx context.Context, req *core.Request) error {
	rules := req.Services.Schedules.List(req.FromID)
	if len(rules) == 0 {
		return req.Reply(ctx, textListEmpty, menu())
	}
	var b strings.Builder
	b.WriteString(textListHeader)
	for i, r := range rules {
		fmt.Fprintf(&b, textListEntry, i+1, r.Day.Label(), r.Time)
	}
	return req.Reply(ctx, strings.TrimRight(b.String(), "\n"), menu())
}

func (p *Plugin) handleExcluir(ctx context.Context, req *core.Request) error {
	if len(req.Args) != 1 {
		return req.Reply(ctx, textRemoveUsage, menu())
	}
	index, err := strconv.Atoi(req.Args[0])
	if err != nil {
		return req.Reply(ctx, textRemoveUsage, menu())
	}

	err = req.Services.Schedules.Remove(req.FromID, index)
	switch {
	case err == nil:
		return req.Reply(ctx, textRemoveOK, menu())
	case errors.Is(err, schedule.ErrRuleNotFound):
		return req.Reply(ctx, textRemoveNotFound, menu())
	default:
		req.Logger.Error("schedule remove failed", logx.Err(err))
		return req.Reply(ctx, textRemoveErr, menu())
	}
}

func (p *Plugin) handleExcluirTodos(ctx context.Context, req *core.Request) error {
	err := req.Services.Schedules.RemoveAll(req.FromID)
	switch {
	case err == nil:
		return req.Reply(ctx, textRemoveAllOK, menu())
	case errors.Is(err, schedule.ErrNoRules):
		return req.Reply(ctx, textRemoveAllEmpty, menu())
	default:
		req.Logger.Error("schedule clear failed", logx.Err(err))
		return req.Reply(ctx, textRemoveAllErr, menu())
	}
}

func (p *Plugin) handleSair(ctx context.Context, req *core.Request) error {
	return req.Reply(ctx, textGoodbye, &kit.SendOptions{ReplyMarkupAdapter: tgui.RemoveReply()})
}
