package livysim

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danmuck/livyctl/internal/observability"
)

type createSessionRequest struct {
	Kind                     string            `json:"kind"`
	HeartbeatTimeoutInSecond int               `json:"heartbeatTimeoutInSecond"`
	Conf                     map[string]string `json:"conf"`
}

type createStatementRequest struct {
	Code string `json:"code"`
}

// Handler builds the gin engine serving the simulated wire surface.
func (s *Service) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(observability.RequestLogger(s.logger))
	engine.Use(observability.RequestMetricsMiddleware(s.cfg.Node))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.started).String(),
			"component": "livysim",
		})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessions := engine.Group("/sessions")
	sessions.Use(s.gate())
	{
		sessions.POST("", s.createSession)
		sessions.GET("", s.listSessions)
		sessions.GET("/:id", s.getSession)
		sessions.DELETE("/:id", s.deleteSession)
		sessions.POST("/:id/statements", s.createStatement)
		sessions.GET("/:id/statements/:sid", s.getStatement)
	}
	return engine
}

// gate rejects unauthenticated requests and injects synthetic failures
// on the API surface only.
func (s *Service) gate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.RequireAuth && !strings.HasPrefix(c.GetHeader("Authorization"), "AWS4-HMAC-SHA256") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing sigv4 authorization"})
			return
		}
		if s.takeFailure() {
			s.logger.Warn().
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("livysim_synthetic_failure")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"msg": "synthetic failure"})
			return
		}
		c.Next()
	}
}

func (s *Service) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "malformed session request"})
		return
	}
	sess := s.store.CreateSession(req.Kind)
	c.Header("location", sessionLocation(sess.ID))
	c.JSON(http.StatusCreated, sess)
	s.logger.Info().
		Int("session_id", sess.ID).
		Str("kind", sess.Kind).
		Msg("livysim_session_created")
}

func (s *Service) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.ListSessions())
}

func (s *Service) getSession(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid session id"})
		return
	}
	sess, ok := s.store.GetSession(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"msg": fmt.Sprintf("Session '%d' not found.", id)})
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Service) deleteSession(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid session id"})
		return
	}
	if !s.store.DeleteSession(id) {
		c.JSON(http.StatusNotFound, gin.H{"msg": fmt.Sprintf("Session '%d' not found.", id)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
	s.logger.Info().Int("session_id", id).Msg("livysim_session_deleted")
}

func (s *Service) createStatement(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid session id"})
		return
	}
	var req createStatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "malformed statement request"})
		return
	}
	st, ok := s.store.CreateStatement(id, req.Code)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"msg": fmt.Sprintf("Session '%d' not found.", id)})
		return
	}
	c.Header("location", statementLocation(id, st.ID))
	c.JSON(http.StatusCreated, st)
	s.logger.Info().
		Int("session_id", id).
		Int("statement_id", st.ID).
		Msg("livysim_statement_submitted")
}

func (s *Service) getStatement(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid session id"})
		return
	}
	sid, err := strconv.Atoi(c.Param("sid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid statement id"})
		return
	}
	st, ok := s.store.GetStatement(id, sid)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"msg": fmt.Sprintf("Statement '%d' not found.", sid)})
		return
	}
	c.JSON(http.StatusOK, st)
}
