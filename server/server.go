// Package server exposes the chat widget over HTTP: the page, the per-view
// websocket and the synthesized clips the page plays back.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"omnichat/core"
	wstransport "omnichat/transports/websocket"
	"omnichat/ui"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Config struct {
	Addr           string   `json:"addr"`
	AssistantName  string   `json:"assistant_name"`
	ClipCapacity   int      `json:"clip_capacity"`   // Clips kept for playback across all views.
	AllowedOrigins []string `json:"allowed_origins"` // Empty accepts same-origin pages only.
}

func DefaultConfig() Config {
	return Config{
		Addr:          ":8080",
		AssistantName: ui.DefaultAssistantName,
		ClipCapacity:  core.DefaultClipCapacity,
	}
}

// Server serves one chat widget per page view.
type Server struct {
	config   Config
	echo     *echo.Echo
	renderer *ui.Renderer
	clips    *core.ClipStore
	upgrader websocket.Upgrader
	build    wstransport.SessionBuilder
	wsConfig wstransport.Config
	logger   *core.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	views map[*wstransport.WebSocketService]struct{}
}

// New wires the routes. build is called once per page view to create its session.
func New(config Config, build wstransport.SessionBuilder, logger *core.Logger) (*Server, error) {
	if build == nil {
		return nil, errors.New("server: session builder is required")
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}
	renderer, err := ui.NewRenderer(config.AssistantName)
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		config:   config,
		echo:     echo.New(),
		renderer: renderer,
		clips:    core.NewClipStore(config.ClipCapacity),
		build:    build,
		wsConfig: wstransport.DefaultConfig(),
		logger:   logger.With(map[string]any{"component": "server"}),
		views:    make(map[*wstransport.WebSocketService]struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Renderer = renderer
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := map[string]any{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			}
			if v.Error != nil {
				attrs["error"] = v.Error
			}
			s.logger.With(attrs).Debug("request")
			return nil
		},
	}))
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.Index)
	s.echo.GET("/ws", s.WebSocket)
	s.echo.GET(s.wsConfig.AudioPath+"/:id", s.Audio)
	s.echo.GET("/health", s.Health)
}

// WithWebSocketConfig overrides the per-view connection settings. Returns the server to allow chaining.
func (s *Server) WithWebSocketConfig(config wstransport.Config) *Server {
	if config.AudioPath == "" {
		config.AudioPath = s.wsConfig.AudioPath
	}
	s.wsConfig = config
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Clips exposes the clip store backing the audio route.
func (s *Server) Clips() *core.ClipStore {
	return s.clips
}

// Index renders the page shell. The message list arrives over the websocket.
func (s *Server) Index(c echo.Context) error {
	return c.Render(http.StatusOK, "index", s.renderer.Page(nil))
}

// WebSocket upgrades the request and serves the view until it disconnects.
func (s *Server) WebSocket(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.With(map[string]any{"error": err}).Warn("websocket upgrade failed")
		return nil
	}

	view := wstransport.NewWebSocketService(conn, s.renderer, s.clips, s.wsConfig, s.logger)
	if !s.track(view) {
		view.Close()
		return nil
	}
	defer s.untrack(view)

	if err := view.Run(s.ctx, s.build); err != nil {
		s.logger.With(map[string]any{"error": err}).Error("view ended with error")
	}
	return nil
}

// Audio serves a synthesized clip by id.
func (s *Server) Audio(c echo.Context) error {
	clip, ok := s.clips.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "clip not found")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Blob(http.StatusOK, string(clip.MediaType), clip.Data)
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	s.mu.Lock()
	views := len(s.views)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, map[string]any{
		"status": "healthy",
		"views":  views,
		"clips":  s.clips.Len(),
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

func (s *Server) track(view *wstransport.WebSocketService) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.views[view] = struct{}{}
	return true
}

func (s *Server) untrack(view *wstransport.WebSocketService) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, view)
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	s.logger.With(map[string]any{"addr": s.config.Addr}).Info("listening")
	if err := s.echo.Start(s.config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, closes every open view and waits for
// in-flight HTTP requests up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.cancel()
	views := make([]*wstransport.WebSocketService, 0, len(s.views))
	for v := range s.views {
		views = append(views, v)
	}
	s.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
