package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lucid/internal/agent/tasks"
	"lucid/internal/errors"
	"lucid/internal/session"
)

type submitRequest struct {
	TaskKind  string         `json:"task_kind" binding:"required"`
	Params    map[string]any `json:"params"`
	Confirmed bool           `json:"confirmed"`
}

type statusResponse struct {
	MockMode         bool     `json:"mock_mode"`
	ScreenConfigured bool     `json:"screen_configured"`
	APIKeyConfigured bool     `json:"api_key_configured"`
	RunningSessionID string   `json:"running_session_id,omitempty"`
	AvailableTasks   []string `json:"available_tasks"`
}

type sessionListResponse struct {
	Sessions []*session.Session `json:"sessions"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PerPage  int                `json:"per_page"`
}

// fail maps the error taxonomy onto HTTP: validation/state 400, policy 403,
// not found 404, conflict 409, everything else 500.
func fail(c *gin.Context, err error) {
	c.JSON(errors.HTTPStatus(err), gin.H{"detail": err.Error()})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		MockMode:         s.cfg.MockMode,
		ScreenConfigured: s.cfg.ScreenHost != "",
		APIKeyConfigured: s.cfg.APIKey != "",
		RunningSessionID: s.runner.RunningSessionID(),
		AvailableTasks:   tasks.Kinds(),
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, errors.Validationf("invalid request body: %v", err))
		return
	}

	sess, err := s.runner.Submit(req.TaskKind, req.Params, req.Confirmed)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleConfirm(c *gin.Context) {
	sess, err := s.runner.Confirm(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleCancel(c *gin.Context) {
	sess, err := s.runner.Cancel(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleListSessions(c *gin.Context) {
	page := queryInt(c, "page", 1)
	perPage := queryInt(c, "per_page", 25)
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	sessions, err := s.store.List(session.Filter{
		Status: session.Status(c.Query("status")),
		Kind:   c.Query("task_kind"),
	})
	if err != nil {
		fail(c, err)
		return
	}

	total := len(sessions)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	pageItems := sessions[start:end]
	if pageItems == nil {
		pageItems = []*session.Session{}
	}

	c.JSON(http.StatusOK, sessionListResponse{
		Sessions: pageItems,
		Total:    total,
		Page:     page,
		PerPage:  perPage,
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	sess, err := s.store.Get(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleListScreenshots(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(id); err != nil {
		fail(c, err)
		return
	}
	frames, err := s.frames.List(id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, frames)
}

func (s *Server) handleGetScreenshot(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.store.Get(id); err != nil {
		fail(c, err)
		return
	}
	data, err := s.frames.Read(id, c.Param("filename"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
