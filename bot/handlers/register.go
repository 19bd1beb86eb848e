package handlers

import (
	tg "github.com/m3rciful/replybot/core/telegram"
	"github.com/m3rciful/replybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/replybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Register wires commands, callbacks and fallbacks into the registry.
func Register(reg *tg.Registry, h *Handlers) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     h.Start,
		Description: "Start a new purchase flow",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     h.Cancel,
		Description: "Cancel the current flow",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     h.Help,
		Description: "How the bot works",
	})
	if h.HistoryEnabled {
		reg.RegisterCommand("/history", commands.Command{
			Handler:     h.History,
			Description: "Your recent verified payments",
		})
	}

	_ = reg.RegisterCallback(cbStartProcess, h.StartProcess)
	_ = reg.RegisterCallback(cbTierSelect, h.SelectTier)

	reg.SetCallbackNotFound(h.UnknownCallback())
	reg.SetTextFallback(h.UnknownText())
}

// UnknownText handles text that belongs to no flow and no command.
func (h *Handlers) UnknownText() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknown)
	}
}

// UnknownDocument handles unexpected document uploads.
func (h *Handlers) UnknownDocument() tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, msgUnknown)
	}
}

// UnknownCallback handles button presses with no registered handler.
func (h *Handlers) UnknownCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		return nil
	}
}
