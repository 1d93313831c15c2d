// Package web serves the translator dashboard: a JSON API to drive the
// session, a status websocket and the Prometheus endpoint.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-livetranslate/pkg/hub"
	"github.com/teslashibe/go-livetranslate/pkg/metrics"
	"github.com/teslashibe/go-livetranslate/pkg/translator"
)

const shutdownTimeout = 5 * time.Second

// Controller is the session surface the dashboard drives.
// *translator.Client implements it.
type Controller interface {
	Connect(ctx context.Context, source, target string) error
	Disconnect()
	Status() translator.Status
	Transcript() []translator.TranscriptionItem
	ClearTranscript()
}

// Offerer answers browser SDP offers. *rtc.Bridge implements it.
type Offerer interface {
	Offer(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
}

// Server is the dashboard server
type Server struct {
	app       *fiber.App
	addr      string
	ctrl      Controller
	statusHub *hub.Hub
	offerer   Offerer
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	logger    *slog.Logger

	// Selected language codes
	mu     sync.RWMutex
	source string
	target string
}

// Option configures a Server.
type Option func(*Server)

// WithOfferer enables POST /api/rtc/offer.
func WithOfferer(o Offerer) Option {
	return func(s *Server) { s.offerer = o }
}

// WithMetrics instruments requests with m and serves gatherer on /metrics.
func WithMetrics(m *metrics.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// WithLanguages sets the initial source and target language codes.
func WithLanguages(source, target string) Option {
	return func(s *Server) {
		s.source = source
		s.target = target
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a dashboard server on addr. Events broadcast on
// statusHub are streamed to /ws/status clients.
func NewServer(addr string, ctrl Controller, statusHub *hub.Hub, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		ctrl:      ctrl,
		statusHub: statusHub,
		source:    "sw",
		target:    "en",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	app := fiber.New(fiber.Config{
		AppName:               "Live Translate",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())
	app.Use(s.instrument)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/languages", s.handleLanguages)
	api.Post("/languages/swap", s.handleSwap)
	api.Post("/session", s.handleConnect)
	api.Delete("/session", s.handleDisconnect)
	api.Get("/transcript", s.handleTranscript)
	api.Delete("/transcript", s.handleClearTranscript)
	api.Post("/rtc/offer", s.handleOffer)

	if s.gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Run serves on the configured address until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Warn("dashboard shutdown failed", "error", err)
		}
	})
	defer stop()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	if err := s.app.Listener(ln); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Languages returns the selected source and target codes.
func (s *Server) Languages() (source, target string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source, s.target
}

func (s *Server) instrument(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	s.metrics.RecordHTTPRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start).Seconds())
	return err
}
