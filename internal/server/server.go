// Package server exposes designer sessions over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"

	"github.com/platformcommons/apidesigner/internal/spec"
)

type option struct {
	addr        string
	debug       bool
	maxSessions int
	importer    string
	format      spec.Format
	logger      *slog.Logger
	maxBody     int64
}

func defaultOption() *option {
	return &option{
		addr:        ":8080",
		maxSessions: 100,
		importer:    spec.ImporterStructured,
		format:      spec.FormatYAML,
		logger:      slog.Default(),
		maxBody:     DefaultMaxBodyBytes,
	}
}

type Option func(*option)

func WithAddr(addr string) Option {
	return func(o *option) { o.addr = addr }
}

// WithDebug mounts pprof under /debug/pprof.
func WithDebug(debug bool) Option {
	return func(o *option) { o.debug = debug }
}

func WithMaxSessions(n int) Option {
	return func(o *option) { o.maxSessions = n }
}

// DefaultMaxBodyBytes caps request bodies unless WithMaxBodyBytes says otherwise.
const DefaultMaxBodyBytes = 1 << 20

// WithMaxBodyBytes caps request bodies at n bytes. Zero or less disables the cap.
func WithMaxBodyBytes(n int64) Option {
	return func(o *option) { o.maxBody = n }
}

// WithImporter sets the importer kind used when a request names none.
func WithImporter(kind string) Option {
	return func(o *option) { o.importer = kind }
}

// WithFormat sets the export format used when a request names none.
func WithFormat(f spec.Format) Option {
	return func(o *option) { o.format = f }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *option) {
		if l != nil {
			o.logger = l
		}
	}
}

type Server struct {
	opt      *option
	e        *gin.Engine
	httpsrv  *http.Server
	sessions *Sessions
	metrics  *metrics
}

func New(opts ...Option) *Server {
	opt := defaultOption()
	for _, o := range opts {
		o(opt)
	}
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.ContextWithFallback = true

	s := &Server{
		opt:      opt,
		e:        e,
		sessions: NewSessions(opt.maxSessions, opt.logger),
		metrics:  newMetrics(),
	}
	e.NoRoute(func(c *gin.Context) {
		s.render(c, 0, nil, NewNotFoundError("route not found"))
	})
	e.Use(
		accessLog(opt.logger),
		gin.CustomRecovery(func(c *gin.Context, err any) {
			opt.logger.Error("gin.panic", "err", err)
			c.Abort()
			s.render(c, 0, nil, NewCodeError(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)))
		}),
		s.limitBody(),
	)
	if opt.debug {
		pprof.Register(e)
	}
	s.routes()
	s.httpsrv = &http.Server{Handler: e, ReadHeaderTimeout: 10 * time.Second}
	return s
}

// Handler returns the HTTP handler serving the API.
func (s *Server) Handler() http.Handler { return s.e }

// Sessions returns the session store.
func (s *Server) Sessions() *Sessions { return s.sessions }

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", s.opt.addr)
	if err != nil {
		return err
	}
	s.opt.logger.InfoContext(ctx, "Starting HTTP server", "addr", l.Addr().String(), "debug", s.opt.debug)
	go func() {
		if err := s.httpsrv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opt.logger.Error("HTTP server stopped", "err", err)
		}
	}()
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.opt.logger.InfoContext(ctx, "Shutdown HTTP server", "addr", s.opt.addr)
	return s.httpsrv.Shutdown(ctx)
}

// render writes data with status, or err as {"code", "message"}. A zero
// status means 200.
func (s *Server) render(c *gin.Context, status int, data any, err error) {
	if err != nil {
		ce := asCodeError(err)
		c.Set(responseErrKey, ce.Message)
		c.AbortWithStatusJSON(ce.Code, ce)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	if data == nil {
		c.Status(status)
		return
	}
	c.JSON(status, data)
}

// limitBody rejects bodies declared larger than the cap and bounds the
// reader for the rest.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		n := s.opt.maxBody
		if n <= 0 || c.Request.Body == nil {
			c.Next()
			return
		}
		if c.Request.ContentLength > n {
			s.render(c, 0, nil, newTooLargeError(n))
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

const responseErrKey = "apidesigner.response.err"

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("ip", c.ClientIP()),
			slog.Int("status", status),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
		}
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		if rerr := c.GetString(responseErrKey); rerr != "" {
			attrs = append(attrs, slog.String("response.error", rerr))
		}
		logger.LogAttrs(c.Request.Context(), level, "gin.access", attrs...)
	}
}
