// Package bot wires the conversation engine to Telegram, SMTP, the delivery
// journal and the health listener.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/m3rciful/mailbot/core/bootstrap"
	"github.com/m3rciful/mailbot/core/logger"
	coretelegram "github.com/m3rciful/mailbot/core/telegram"
	"github.com/m3rciful/mailbot/core/telegram/router"
	"github.com/m3rciful/mailbot/internal/conversation"
	"github.com/m3rciful/mailbot/internal/health"
	"github.com/m3rciful/mailbot/internal/journal"
	"github.com/m3rciful/mailbot/internal/mailer"
	"github.com/m3rciful/mailbot/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

// App is the assembled bot.
type App struct {
	cfg      *Config
	infra    *bootstrap.Result
	metrics  *metrics.Metrics
	engine   *conversation.Engine
	port     *Port
	handlers *Handlers
	registry *coretelegram.Registry
	health   *health.Server
}

// Deps overrides collaborators, mostly for tests. Zero values select the
// production ones.
type Deps struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
	Deliverer conversation.Deliverer
}

// New bootstraps infrastructure and assembles the App.
func New(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bot: nil config")
	}
	boot := deps.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	infra, err := boot(bootstrap.Options{Config: cfg.CoreConfig(), Database: &cfg.Database})
	if err != nil {
		return nil, err
	}

	deliverer := deps.Deliverer
	if deliverer == nil {
		m, err := mailer.New(cfg.Mail)
		if err != nil {
			_ = infra.Close()
			return nil, fmt.Errorf("bot: mailer: %w", err)
		}
		deliverer = m
	}

	var repo *journal.Repository
	if infra.DB != nil {
		repo = journal.NewRepository(infra.DB)
		deliverer = journal.Wrap(deliverer, repo, nil)
	}

	body, err := conversation.NewBodyRenderer(cfg.Mail.BodyTemplate, cfg.Mail.Signature)
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("bot: %w", err)
	}

	a := &App{
		cfg:      cfg,
		infra:    infra,
		metrics:  metrics.New(),
		port:     NewPort(cfg.Conversation.MaxAttachmentBytes),
		registry: coretelegram.NewRegistry(),
	}
	a.engine = conversation.NewEngine(conversation.Options{
		Replier:     a.port,
		Fetcher:     a.port,
		Deliverer:   deliverer,
		Observer:    a.metrics,
		IdleTimeout: cfg.Conversation.IdleTimeout,
		Body:        body,
	})

	a.handlers = &Handlers{
		engine:   a.engine,
		active:   a.engine.Store().Len,
		registry: a.registry,
		now:      time.Now,
	}
	if repo != nil {
		a.handlers.journal = repo
	}
	a.handlers.register(a.registry, cfg.Telegram.AdminID)

	if cfg.Health.On() {
		a.health = health.NewServer(cfg.Health, health.NewRouter(a.metrics.Handler()))
	}

	logger.Info(logger.Background(), "app", "assembled",
		slog.Bool("journal", repo != nil),
		slog.Bool("health", a.health != nil),
		slog.Duration("idle_timeout", cfg.Conversation.IdleTimeout),
	)
	return a, nil
}

// Bootstrap adapts New to cmd.Options.Bootstrap.
func Bootstrap(cfg *Config) (*App, error) {
	return New(cfg, Deps{})
}

// Engine exposes the conversation engine.
func (a *App) Engine() *conversation.Engine { return a.engine }

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.MessageRoutes(a.handlers, a.registry, router.MessageOptions{
		UnknownCommand: a.handlers.unknownCommand,
	})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: coretelegram.DefaultMiddlewares(core, a.handlers.rateLimited, a.metrics),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot != nil {
		a.port.Bind(rt.Bot)
	}
	if err := a.metrics.Register(runtimeCollectors(rt)...); err != nil {
		logger.Warn(ctx, "app", "metrics.register", slog.String("err", err.Error()))
	}
	if a.health != nil {
		if err := a.health.Start(ctx); err != nil {
			return fmt.Errorf("bot: health: %w", err)
		}
	}
	return nil
}

// runtimeCollectors exposes counters kept by the dispatcher and the logger.
func runtimeCollectors(rt coretelegram.Runtime) []prometheus.Collector {
	cs := []prometheus.Collector{
		metrics.CounterFunc("log_lines_total", "Log lines written.", func() float64 {
			lines, _ := logger.WriterStats()
			return float64(lines)
		}),
		metrics.CounterFunc("log_write_stalls_total", "Log lines that waited for a full output queue.", func() float64 {
			_, stalls := logger.WriterStats()
			return float64(stalls)
		}),
	}
	if d := rt.Dispatcher; d != nil {
		cs = append(cs,
			metrics.CounterFunc("telegram_sent_total", "Messages sent through the dispatcher.", func() float64 {
				return float64(d.SentCount())
			}),
			metrics.CounterFunc("telegram_send_errors_total", "Dispatcher sends that failed after retries.", func() float64 {
				return float64(d.ErrorCount())
			}),
		)
	}
	return cs
}

// onStop drains the engine while the dispatcher still accepts replies.
func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.engine.Close(stopCtx); err != nil {
		errs = append(errs, err)
	}
	if a.health != nil {
		if err := a.health.Shutdown(stopCtx); err != nil {
			errs = append(errs, fmt.Errorf("health: %w", err))
		}
	}
	a.port.Bind(nil)
	if err := a.infra.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}
	return errors.Join(errs...)
}
