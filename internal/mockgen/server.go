package mockgen

import (
	"net/http"
	"strings"
	"sync"

	"github.com/crmkit/genwatch/internal/common/cnst"
	"github.com/crmkit/genwatch/internal/common/config"
	"github.com/crmkit/genwatch/internal/common/dto"
	"github.com/crmkit/genwatch/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server is the mock generation backend: the trigger, status and duplex
// endpoints the watcher consumes, with a synthetic generation job behind
// them.
type Server struct {
	logger   *zap.Logger
	cfg      *config.MockServerConfig
	manager  *Manager
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	// one generation job at a time per session
	jobs sync.Map
}

// NewServer creates the mock backend.
func NewServer(logger *zap.Logger, cfg *config.MockServerConfig, m *metrics.Metrics) *Server {
	cfg.SetDefaults()
	return &Server{
		logger:  logger.Named("mockgen.server"),
		cfg:     cfg,
		manager: NewManager(logger, cfg.PauseGrace),
		metrics: m,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Manager exposes the session manager, mainly for tests.
func (s *Server) Manager() *Manager {
	return s.manager
}

// RegisterRoutes mounts the backend surface on the router.
func (s *Server) RegisterRoutes(router *gin.Engine) {
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	router.GET("/ws", s.handleWS)
	router.POST("/create-test-data", s.handleTrigger)
	router.GET("/generation-status/:session_id", s.handleStatus)
	router.GET("/session-info", s.handleSessionInfo)
}

// handleWS upgrades the connection and speaks the control vocabulary: a
// literal heartbeat request gets a literal reply, and the session
// announcement binds the connection to its session.
func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer conn.Close()

	var sessionID string
	defer func() {
		if sessionID != "" {
			s.manager.Detach(sessionID, conn)
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("connection error",
					zap.String("session", shortID(sessionID)),
					zap.Error(err))
			}
			return
		}
		text := string(data)
		switch {
		case text == cnst.HeartbeatRequest:
			if sessionID != "" {
				_ = s.manager.SendText(sessionID, cnst.HeartbeatReply)
			} else {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(cnst.HeartbeatReply))
			}
		case strings.HasPrefix(text, cnst.SessionAnnouncePrefix):
			sessionID = strings.TrimPrefix(text, cnst.SessionAnnouncePrefix)
			s.manager.Attach(sessionID, conn)
			s.logger.Info("session attached",
				zap.String("session", shortID(sessionID)))
		default:
			s.logger.Debug("ignoring unexpected client frame",
				zap.String("data", text))
		}
	}
}

// handleTrigger starts a generation job for the session. The handler runs
// the job to completion and answers with the final statistics, the same
// shape as the real backend; progress is streamed over the session's
// connection meanwhile.
func (s *Server) handleTrigger(c *gin.Context) {
	var req dto.TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Session ID required"})
		return
	}

	if !s.manager.Exists(req.SessionID) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}

	if err := s.manager.StartGeneration(req.SessionID); err != nil {
		st, _ := s.manager.Status(req.SessionID)
		if st.GenerationPaused {
			c.JSON(http.StatusConflict, gin.H{"detail": "Generation paused. Reconnect to resume."})
			return
		}
		c.JSON(http.StatusOK, dto.TriggerResponse{
			Message:   "Generation already running for this session",
			Status:    cnst.TriggerStatusAlreadyRunning,
			SessionID: shortID(req.SessionID),
		})
		return
	}

	job := NewJob(s.logger, s.manager, s.cfg, req.SessionID)
	s.jobs.Store(req.SessionID, job)
	defer s.jobs.Delete(req.SessionID)

	resp, err := job.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusRequestTimeout, gin.H{"detail": "Session inactive"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStatus(c *gin.Context) {
	sessionID := c.Param("session_id")
	st, ok := s.manager.Status(sessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSessionInfo(c *gin.Context) {
	sessions, connected, activeJobs := s.manager.Info()
	c.JSON(http.StatusOK, gin.H{
		"active_sessions":       sessions,
		"has_connections":       connected > 0,
		"any_active_generation": activeJobs > 0,
	})
}
