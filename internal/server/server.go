// File: internal/server/server.go (complete file)

// Package server is the local HTTP agent. It exposes the individual checks and a
// full diagnosis to a browser page or a support tool on the same machine.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/baptistax/camlinkcheck/internal/app"
	"github.com/baptistax/camlinkcheck/internal/checks"
	"github.com/baptistax/camlinkcheck/internal/config"
	"github.com/baptistax/camlinkcheck/internal/netutil"
	"github.com/baptistax/camlinkcheck/internal/report"
)

// Runner produces one diagnosis. *app.Diagnoser satisfies it.
type Runner interface {
	Run(ctx context.Context, onLog func(string)) report.Diagnosis
}

type Options struct {
	Config     config.Config
	Runner     Runner
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Server struct {
	cfg    config.Config
	runner Runner
	client *http.Client
	log    *slog.Logger
	engine *gin.Engine

	upgrader websocket.Upgrader

	// one diagnosis at a time: the probe binds local UDP ports and a second run
	// would skew the first one's results
	busy sync.Mutex
}

func New(opt Options) *Server {
	s := &Server{
		cfg:    opt.Config,
		runner: opt.Runner,
		client: opt.HTTPClient,
		log:    opt.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.client == nil {
		s.client = netutil.HTTPClientForFamily("any", s.cfg.HTTPTimeout)
	}

	s.upgrader = websocket.Upgrader{CheckOrigin: s.originAllowed}

	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	api := r.Group("/api", s.checkOrigin())
	api.GET("/fqdncheck", s.onServiceCheck)
	api.GET("/check", s.onPortCheck)
	api.GET("/ice-config", s.onIceConfig)
	api.POST("/diagnose", s.onDiagnose)
	api.GET("/diagnose/ws", s.onDiagnoseWS)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks until ctx is done or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	s.log.Info("agent listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := hs.Shutdown(shutCtx)
	if e := <-errCh; e != nil && !errors.Is(e, http.ErrServerClosed) && err == nil {
		err = e
	}
	return err
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		s.log.Debug("http request",
			"method", ctx.Request.Method,
			"path", ctx.Request.URL.Path,
			"status", ctx.Writer.Status(),
			"duration", time.Since(start))
	}
}

// originAllowed accepts requests without an Origin (CLI tools, curl), pages
// served from the agent's own host, loopback pages and CAMLINK_ALLOWED_ORIGINS.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == "*" || strings.EqualFold(strings.TrimRight(o, "/"), origin) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	switch strings.ToLower(u.Hostname()) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func (s *Server) checkOrigin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !s.originAllowed(ctx.Request) {
			s.log.Warn("rejected cross-origin request", "origin", ctx.GetHeader("Origin"), "path", ctx.Request.URL.Path)
			ctx.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "origin not allowed",
			})
			return
		}
		ctx.Next()
	}
}

func (s *Server) onServiceCheck(ctx *gin.Context) {
	res := checks.CheckService(ctx.Request.Context(), s.client, s.cfg.ServiceTargets)
	ctx.JSON(http.StatusOK, res)
}

func (s *Server) onPortCheck(ctx *gin.Context) {
	if s.cfg.PortCheckBaseURL == "" {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "port checker is not configured",
		})
		return
	}

	lines, err := checks.FetchPortCheckText(ctx.Request.Context(), s.client, s.cfg.PortCheckBaseURL)
	if err != nil {
		s.log.Warn("port check proxy failed", "err", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"lines": lines,
	})
}

// onIceConfig serves the configuration a browser client would use. The caller's
// User-Agent picks the restricted variant unless ?restricted= overrides it.
func (s *Server) onIceConfig(ctx *gin.Context) {
	restricted := netutil.IsRestrictedUserAgent(ctx.GetHeader("User-Agent"))
	if q := ctx.Query("restricted"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error": "restricted must be a boolean",
			})
			return
		}
		restricted = v
	}

	ctx.JSON(http.StatusOK, gin.H{
		"restricted": restricted,
		"config":     s.cfg.ProbeConfig(restricted).Redacted(),
	})
}

func (s *Server) onDiagnose(ctx *gin.Context) {
	if !s.busy.TryLock() {
		ctx.JSON(http.StatusConflict, gin.H{
			"error": "a diagnosis is already running",
		})
		return
	}
	defer s.busy.Unlock()

	d := s.diagnose(ctx.Request.Context(), nil)
	ctx.JSON(http.StatusOK, d)
}

type wsMessage struct {
	Type   string            `json:"type"` // "log" | "result" | "error"
	Line   string            `json:"line,omitempty"`
	Report *report.Diagnosis `json:"report,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// onDiagnoseWS streams log lines while the diagnosis runs, then the report.
// Closing the socket cancels the run.
func (s *Server) onDiagnoseWS(ctx *gin.Context) {
	ws, err := s.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer ws.Close()

	if !s.busy.TryLock() {
		_ = ws.WriteJSON(wsMessage{Type: "error", Error: "a diagnosis is already running"})
		return
	}
	defer s.busy.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("websocket read error", "err", err)
				}
				return
			}
		}
	}()

	var wmu sync.Mutex
	send := func(m wsMessage) {
		wmu.Lock()
		defer wmu.Unlock()
		if err := ws.WriteJSON(m); err != nil {
			cancel()
		}
	}

	d := s.diagnose(runCtx, func(line string) {
		send(wsMessage{Type: "log", Line: line})
	})
	send(wsMessage{Type: "result", Report: &d})

	wmu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	wmu.Unlock()
}

func (s *Server) diagnose(ctx context.Context, onLog func(string)) report.Diagnosis {
	d := s.runner.Run(ctx, onLog)
	if s.cfg.ExportsDir != "" {
		dir, err := app.Export(s.cfg.ExportsDir, &d)
		if err != nil {
			s.log.Warn("export failed", "dir", dir, "err", err)
		} else {
			s.log.Info("diagnosis exported", "dir", dir)
		}
	}
	return d
}
