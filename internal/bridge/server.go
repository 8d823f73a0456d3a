package bridge

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/config"
	"github.com/stemsi/exstem-agent/internal/response"
	"github.com/stemsi/exstem-agent/internal/session"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty origins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// Server is the loopback bridge the exam surface talks to. Access is guarded
// by a one-shot bearer token generated at startup and handed to the surface
// in its launch URL, so no other local process can inject events.
type Server struct {
	mon      *session.Monitor
	hub      *SurfaceHub
	handler  *Handler
	upgrader websocket.Upgrader
	token    string
	srv      *http.Server
	log      zerolog.Logger
}

func NewServer(cfg *config.Config, mon *session.Monitor, hub *SurfaceHub, log zerolog.Logger) *Server {
	s := &Server{
		mon:      mon,
		hub:      hub,
		handler:  NewHandler(mon, log),
		upgrader: buildUpgrader(cfg.BridgeOrigins),
		token:    uuid.New().String(),
		log:      log.With().Str("component", "bridge").Logger(),
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())

	corsCfg := cors.DefaultConfig()
	if len(cfg.BridgeOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.BridgeOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	api := r.Group("/api/v1/session", s.requireBridgeToken())
	{
		api.GET("/state", s.handler.GetState)
		api.POST("/answers", s.handler.SelectAnswer)
		api.POST("/submit", s.handler.Submit)
	}

	r.GET("/ws/v1/session/stream", s.handleStream)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.srv = &http.Server{Addr: cfg.BridgeAddr, Handler: r}
	return s
}

// Token is the bridge access token to embed in the surface launch URL.
func (s *Server) Token() string { return s.token }

// Start begins serving in a goroutine. errc receives a non-nil error if the
// listener dies.
func (s *Server) Start(errc chan<- error) {
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Bridge listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// requireBridgeToken validates the bearer token (or ?token= fallback for
// clients that cannot set headers).
func (s *Server) requireBridgeToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
				token = parts[1]
			}
		}
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		if token != s.token {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		c.Next()
	}
}

// handleStream godoc
// WS /ws/v1/session/stream?token=...
// Upgrades to the bidirectional surface stream: environment reports, answers
// and submits inbound; ticks, warnings, lockdown commands, probes and the
// terminal redirect outbound.
func (s *Server) handleStream(c *gin.Context) {
	if c.Query("token") != s.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	s.hub.attach(conn)
	defer s.hub.detach(conn)
	s.log.Info().Msg("Surface connected")

	for {
		var msg RequestPayload
		if err := readRequest(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("Surface stream closed unexpectedly")
			} else {
				s.log.Debug().Msg("Surface stream closed")
			}
			return
		}
		s.dispatch(&msg)
	}
}

// dispatch routes one inbound message. Replies go through the hub's send
// queue so the write pump stays the only writer on the connection.
func (s *Server) dispatch(msg *RequestPayload) {
	switch msg.Action {
	case ActionEnv:
		s.mon.ReportEnvironment(session.EnvEventKind(msg.Kind))
	case ActionAnswer:
		qid, err := uuid.Parse(msg.QID)
		if err != nil {
			s.hub.push(ErrorPush{Event: EventError, Error: "invalid q_id format"})
			return
		}
		if err := s.mon.SelectAnswer(qid, msg.Key); err != nil {
			s.hub.push(ErrorPush{Event: EventError, Error: err.Error()})
		}
	case ActionSubmit:
		s.mon.RequestSubmit()
	case ActionLockdownResult:
		s.hub.resolveLockdown(msg.OK, msg.Error)
	case ActionProbeResult:
		s.hub.resolveProbe(msg.OK)
	case ActionPing:
		s.hub.push(PongPush{Event: EventPong})
	default:
		s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		s.hub.push(ErrorPush{Event: EventError, Error: "unknown action: " + string(msg.Action)})
	}
}
