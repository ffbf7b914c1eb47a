package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/lessonbot/core/config"
	"github.com/m3rciful/lessonbot/core/logger"
	tghelpers "github.com/m3rciful/lessonbot/core/telegram/helpers"
	"github.com/m3rciful/lessonbot/core/telegram/inbound"
	tgsender "github.com/m3rciful/lessonbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	// Inbound sizes the per-user update lanes.
	Inbound inbound.Options

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	// OnError receives errors returned by handlers after the router logged them.
	OnError func(error, tele.Context)

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram builds the bot from opts and serves updates until ctx is done.
// Queued sends are flushed before it returns.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.OnError == nil {
		opts.OnError = defaultOnError
	}

	bot, err := newBot(ctx, opts)
	if err != nil {
		return err
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	defer dispatcher.Close()
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
		defer tghelpers.SetDispatcher(nil)
	}

	// Closed before the dispatcher so draining handlers can still send.
	updates := NewUpdateQueue(opts)
	defer updates.Close()
	reg := Install(bot, opts, updates)

	rt := Runtime{Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			return err
		}
	}

	runErr := serve(ctx, bot)

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil {
			return err
		}
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// newBot creates the telebot instance and reports the update transport. In
// long-poll mode it also clears any webhook left behind by a webhook run.
// Handlers are dispatched synchronously; concurrency comes from the update
// queue installed by Install.
func newBot(ctx context.Context, opts RunOptions) (*tele.Bot, error) {
	cfg := opts.Config
	poller := BuildPoller(cfg)
	var pollTimeout time.Duration
	if lp, ok := poller.(*tele.LongPoller); ok {
		pollTimeout = lp.Timeout
	}

	settings := tele.Settings{
		URL:         cfg.Telegram.APIURL,
		Token:       cfg.Telegram.Token,
		Poller:      poller,
		Client:      BuildHTTPClient(ClientOptions{PollTimeout: pollTimeout}),
		OnError:     opts.OnError,
		Synchronous: true,
	}

	start := time.Now()
	bot, err := tele.NewBot(settings)
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	took := slog.Duration("duration", logger.Took(start))

	if hook, ok := poller.(*tele.Webhook); ok {
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", hook.Listen),
			slog.String("public_url", hook.Endpoint.PublicURL),
			took,
		)
		return bot, nil
	}

	logger.Info(ctx, logger.CompTG, "mode",
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Int("timeout_seconds", int(pollTimeout/time.Second)),
		took,
	)
	if !opts.DisableWebhookCleanup {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.Warn(ctx, logger.CompTG, "delete_webhook", slog.String("status", "fail"), logger.Err(err))
		} else {
			logger.Info(ctx, logger.CompTG, "delete_webhook", slog.String("status", "ok"))
		}
	}
	return bot, nil
}

// NewUpdateQueue starts the per-user update lanes. Handler errors go to
// opts.OnError unless opts.Inbound sets its own.
func NewUpdateQueue(opts RunOptions) *inbound.Queue {
	in := opts.Inbound
	if in.OnError == nil {
		in.OnError = opts.OnError
	}
	return inbound.NewQueue(in)
}

// Install puts updates in front of the middleware chain, attaches routes and
// publishes the command menu. bot must be synchronous. It returns the
// registry in use.
func Install(bot *tele.Bot, opts RunOptions, updates *inbound.Queue) *Registry {
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	if updates != nil {
		bot.Use(updates.Middleware)
	}
	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	InitBotCommands(bot, reg)
	return reg
}

// serve runs the poller until it stops on its own or ctx is done.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

func defaultOnError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.Error(ctx, logger.CompTG, "handler.unhandled", logger.Err(err))
}
