package cli

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/platformcommons/apidesigner/internal/config"
	"github.com/platformcommons/apidesigner/internal/server"
)

var serveRunner = runServe

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the designer HTTP API",
		Long:  "Serve design sessions over a JSON HTTP API until interrupted. Metrics are exposed on /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("addr") {
				addr, err := flags.GetString("addr")
				if err != nil {
					return err
				}
				settings.Server.Addr = strings.TrimSpace(addr)
			}
			if flags.Changed("debug") {
				debug, err := flags.GetBool("debug")
				if err != nil {
					return err
				}
				settings.Server.Debug = debug
			}
			verbose, err := flags.GetBool("verbose")
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, settings.Log.Level, settings.Log.Format, verbose)
			return serveRunner(cmd.Context(), settings, logger)
		},
	}

	cmd.Flags().String("addr", "", "Listen address; defaults to server.addr")
	cmd.Flags().Bool("debug", false, "Mount pprof handlers under /debug/pprof")

	return cmd
}

// serveOptions assembles the fx graph: the server is built from config and
// its Start and Stop run as lifecycle hooks.
func serveOptions(cfg *config.Config, logger *slog.Logger) fx.Option {
	return fx.Options(
		fx.WithLogger(func() fxevent.Logger {
			return &fxLogger{log: logger.With(slog.String("component", "fx"))}
		}),
		fx.Supply(cfg, logger),
		fx.Provide(newServer),
		fx.Invoke(serverLifecycle),
	)
}

func newServer(cfg *config.Config, logger *slog.Logger) *server.Server {
	return server.New(
		server.WithAddr(cfg.Server.Addr),
		server.WithDebug(cfg.Server.Debug),
		server.WithMaxSessions(cfg.Server.MaxSessions),
		server.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		server.WithImporter(cfg.Designer.Importer),
		server.WithFormat(cfg.ExportFormat()),
		server.WithLogger(logger),
	)
}

func serverLifecycle(srv *server.Server, lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: srv.Start,
		OnStop:  srv.Stop,
	})
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(serveOptions(cfg, logger))

	startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	select {
	case sig := <-app.Wait():
		if sig.Signal != nil {
			logger.Info("received signal", "signal", strings.ToUpper(sig.Signal.String()))
		}
	case <-ctx.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stopCancel()
	return app.Stop(stopCtx)
}

type fxLogger struct {
	log *slog.Logger
}

func (m *fxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.Provided:
		if e.Err != nil {
			m.log.Error("provide failed", "err", e.Err)
		}
	case *fxevent.Invoked:
		if e.Err != nil {
			m.log.Error("invoke failed", "err", e.Err, "function", e.FunctionName)
		}
	case *fxevent.OnStopExecuted:
		if e.Err != nil {
			m.log.Error("stop hook failed", "err", e.Err, "callee", e.FunctionName)
		}
	case *fxevent.Started:
		if e.Err != nil {
			m.log.Error("start failed", "err", e.Err)
		} else {
			m.log.Debug("started")
		}
	}
}
