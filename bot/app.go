package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/replybot/bot/delivery"
	"github.com/m3rciful/replybot/bot/flow"
	"github.com/m3rciful/replybot/bot/handlers"
	"github.com/m3rciful/replybot/bot/ledger"
	"github.com/m3rciful/replybot/bot/payments"
	"github.com/m3rciful/replybot/bot/storage"
	"github.com/m3rciful/replybot/core/bootstrap"
	corecmd "github.com/m3rciful/replybot/core/cmd"
	coretelegram "github.com/m3rciful/replybot/core/telegram"
	tghelpers "github.com/m3rciful/replybot/core/telegram/helpers"
	"github.com/m3rciful/replybot/core/telegram/router"
	"github.com/m3rciful/replybot/core/telegram/ui"

	tele "gopkg.in/telebot.v4"
)

// App wires the flow engine and its collaborators into the Telegram runtime.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	engine   *flow.Engine
	handlers *handlers.Handlers
}

// New bootstraps infrastructure and assembles the application.
func New(cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}

	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	var store flow.Recorder
	if res.DB != nil {
		store = storage.NewPaymentStore(res.DB)
	}

	verifier := &payments.Verifier{
		Ledger:      ledger.NewRPCClient(cfg.Payments.RPCURL),
		Destination: cfg.Payments.WalletAddress,
		Attempts:    cfg.Payments.VerifyAttempts,
		FetchLimit:  cfg.Payments.TxFetchLimit,
		Tolerance:   cfg.Payments.ToleranceLamports,
		Backoff:     time.Duration(cfg.Payments.VerifyBackoffMS) * time.Millisecond,
	}
	engine := flow.New(flow.Options{
		Verifier:      verifier,
		Runner:        &delivery.Runner{StepDelay: time.Duration(cfg.Payments.StepDelayMS) * time.Millisecond},
		Store:         store,
		Wallet:        cfg.Payments.WalletAddress,
		PaymentWindow: time.Duration(cfg.Payments.WindowSeconds) * time.Second,
	})

	return &App{
		cfg:    cfg,
		db:     res.DB,
		engine: engine,
		handlers: &handlers.Handlers{
			Engine:         engine,
			HistoryEnabled: store != nil,
		},
	}, nil
}

// TelegramRunOptions builds the runtime wiring consumed by the core runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	handlers.Register(reg, a.handlers)

	var fallbacks ui.FallbackProvider = a.handlers

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: fallbacks.UnknownCallback(),
	}))
	routes = append(routes, router.TextRoutes(&handlers.FSM{H: a.handlers}, reg, router.TextOptions{
		UnknownText:     fallbacks.UnknownText(),
		UnknownDocument: fallbacks.UnknownDocument(),
	})...)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.engine.SetNotifier(&telegramNotifier{bot: rt.Bot})
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}, nil
}

// telegramNotifier delivers off-update notices (timer expiry, delivery
// steps) through the shared async sender.
type telegramNotifier struct {
	bot *tele.Bot
}

func (n *telegramNotifier) Send(ctx context.Context, userID int64, text string) error {
	return tghelpers.NotifyUser(ctx, n.bot, userID, text)
}

var _ corecmd.ConfigCarrier = (*Config)(nil)
var _ corecmd.TelegramApp = (*App)(nil)
