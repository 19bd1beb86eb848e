// Package handlers adapts Telegram updates to the flow engine. All state
// decisions live in bot/flow; this layer renders prompts and keyboards.
package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/m3rciful/replybot/bot/flow"
	"github.com/m3rciful/replybot/bot/pricing"
	"github.com/m3rciful/replybot/bot/session"
	"github.com/m3rciful/replybot/core/telegram/callbacks"
	"github.com/m3rciful/replybot/core/telegram/format"
	tghelpers "github.com/m3rciful/replybot/core/telegram/helpers"
	"github.com/m3rciful/replybot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const (
	cbStartProcess = "start_process"
	cbTierSelect   = "msg_count"
)

// Handlers holds the dependencies shared by all update handlers.
type Handlers struct {
	Engine         *flow.Engine
	HistoryEnabled bool
}

// Start greets the user and offers the start button. Any previous flow is
// discarded.
func (h *Handlers) Start(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.Engine.Reset(ctx, c.Sender().ID)

	markup := keyboard.InlineButtons([]keyboard.InlineBtn{
		{Text: "Start Sending Messages", Unique: cbStartProcess},
	})
	return tghelpers.SendText(c, msgWelcome, &tele.SendOptions{ReplyMarkup: markup})
}

// StartProcess reacts to the start button and asks for the token address.
func (h *Handlers) StartProcess(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.Engine.Begin(ctx, c.Sender().ID)
	return c.EditOrSend(msgTokenPrompt)
}

// SelectTier reacts to a tier button, opens the payment window and shows the
// payment instructions.
func (h *Handlers) SelectTier(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	count, err := callbacks.PayloadInt(c)
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported option"})
	}

	tier, deadline, err := h.Engine.SelectTier(ctx, userID, count)
	switch {
	case errors.Is(err, flow.ErrUnknownTier):
		return c.Respond(&tele.CallbackResponse{Text: "Unsupported option"})
	case errors.Is(err, flow.ErrBadState):
		// Stale button press; nothing to do.
		return nil
	case err != nil:
		return err
	}

	snap := h.Engine.Sessions().Snapshot(userID)
	minutes := int(time.Until(deadline).Round(time.Minute).Minutes())
	text := fmt.Sprintf(
		"✅ Token Address: %s\n📨 Messages: %d\n\n"+
			"💰 Please send %s SOL to my wallet address: %s\n"+
			"Then provide your wallet address for payment verification.\n"+
			"⏳ You have %d minutes to complete the payment.",
		snap.TokenAddress, tier.Messages, pricing.FormatSOL(tier.Lamports), h.Engine.Wallet(), minutes,
	)
	return c.EditOrSend(text)
}

// FSM routes text messages to the step the session is waiting on. It plugs
// into the shared text router.
type FSM struct {
	H *Handlers
}

// InProgress reports whether text input belongs to an active flow.
func (f *FSM) InProgress(userID int64) bool {
	return f.H.Engine.Sessions().InProgress(userID)
}

// ManagerHandler dispatches a text update by the session's current state.
// Text arriving in states that expect none is swallowed without error.
func (f *FSM) ManagerHandler(c tele.Context) error {
	switch f.H.Engine.Sessions().StateOf(c.Sender().ID) {
	case session.StateAwaitingToken:
		return f.H.handleToken(c)
	case session.StateAwaitingPayment:
		return f.H.handlePayment(c)
	default:
		return nil
	}
}

func (h *Handlers) handleToken(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	err := h.Engine.SubmitToken(ctx, c.Sender().ID, c.Text())
	switch {
	case errors.Is(err, flow.ErrInvalidAddress):
		return tghelpers.SendText(c, msgInvalidToken)
	case errors.Is(err, flow.ErrBadState):
		return nil
	case err != nil:
		return err
	}
	return tghelpers.SendText(c, msgTierMenu, &tele.SendOptions{ReplyMarkup: tierKeyboard()})
}

func (h *Handlers) handlePayment(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	status, err := h.Engine.SubmitPayment(ctx, userID, c.Text())
	if errors.Is(err, flow.ErrBadState) {
		return nil
	}
	if err != nil {
		return err
	}

	switch status {
	case flow.StatusVerified:
		return tghelpers.SendText(c, msgVerified)
	case flow.StatusBusy:
		return tghelpers.SendText(c, msgVerifyBusy)
	case flow.StatusExpired:
		return tghelpers.SendText(c, h.Engine.ExpiryNotice())
	default:
		snap := h.Engine.Sessions().Snapshot(userID)
		amount := ""
		if snap.Tier != nil {
			amount = pricing.FormatSOL(snap.Tier.Lamports)
		}
		return tghelpers.SendText(c, fmt.Sprintf(
			"❌ Payment verification failed. Please ensure you've sent %s SOL to %s and try again.",
			amount, h.Engine.Wallet(),
		))
	}
}

// Cancel aborts the current flow.
func (h *Handlers) Cancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	h.Engine.Reset(ctx, c.Sender().ID)
	return tghelpers.SendText(c, msgCancelled)
}

// Help shows a short usage summary.
func (h *Handlers) Help(c tele.Context) error {
	return tghelpers.SendText(c, msgHelp)
}

// History lists the user's recent verified payments from the audit store.
func (h *Handlers) History(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	records, err := h.Engine.History(ctx, c.Sender().ID, 10)
	if err != nil {
		return tghelpers.SendText(c, "⚠️ Could not load your history right now.")
	}
	if len(records) == 0 {
		return tghelpers.SendText(c, "No verified payments yet. Send /start to begin.")
	}

	text := "🧾 *Your recent payments:*\n"
	for _, p := range records {
		token, _ := format.EscapeMarkdown(p.TokenAddress, format.MarkdownV1, "")
		text += fmt.Sprintf("• %s SOL for %d messages to %s (%s)\n",
			pricing.FormatSOL(p.AmountLamports), p.MessageCount, token,
			p.VerifiedAt.Format("2006-01-02"),
		)
	}
	return tghelpers.SendMD(c, text)
}

func tierKeyboard() *tele.ReplyMarkup {
	tiers := pricing.Tiers()
	buttons := make([]keyboard.InlineBtn, 0, len(tiers))
	for _, t := range tiers {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   strconv.Itoa(t.Messages),
			Unique: cbTierSelect,
			Data:   strconv.Itoa(t.Messages),
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 3)
}
