package realtime

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"commuter/internal/api"
	"commuter/internal/document"
	"commuter/internal/protocol"
	"commuter/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	maxUploadSize = 20 << 20 // 20 MB

	keyStatus = "system_status"
	keyQuery  = "search_query"
)

func errorJSON(c *gin.Context, code int, msg string) {
	c.JSON(code, api.ErrorResponse{Status: "error", Message: msg})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleState(c *gin.Context) {
	ctx := c.Request.Context()
	st := api.State{
		Status:           api.StatusIdle,
		InterventionMode: s.interventionActive(),
		Clients:          s.clientCount(),
	}

	if v, err := s.store.Config(ctx, keyStatus); err == nil && v != "" {
		st.Status = v
	}
	if v, err := s.store.Config(ctx, keyQuery); err == nil {
		st.Query = v
	}
	if n, err := s.store.CountDocuments(ctx); err == nil {
		st.CVLoaded = n > 0
	} else {
		s.logger.Warn("count documents", zap.Error(err))
	}
	if js, err := s.store.JobStats(ctx); err == nil {
		st.Stats = api.Stats{Total: js.Total, Applied: js.Applied, Pending: js.Pending}
	} else {
		s.logger.Warn("job stats", zap.Error(err))
	}

	c.JSON(http.StatusOK, st)
}

func (s *Server) handleConfig(c *gin.Context) {
	var req api.ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		errorJSON(c, http.StatusBadRequest, "key is required")
		return
	}
	if err := s.store.SetConfig(c.Request.Context(), req.Key, req.Value); err != nil {
		s.logger.Error("save config", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "failed to save config")
		return
	}
	c.JSON(http.StatusOK, api.ConfigResponse{Status: "updated", Key: req.Key, Value: req.Value})
}

func (s *Server) handleCommand(c *gin.Context) {
	var req api.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := c.Request.Context()
	cmd := strings.ToLower(req.Command)

	switch {
	case strings.Contains(cmd, "stop"):
		if err := s.store.SetConfig(ctx, keyStatus, api.StatusStopped); err != nil {
			errorJSON(c, http.StatusInternalServerError, err.Error())
			return
		}
		s.relayToAgent(protocol.Intervention{Action: protocol.Action{Action: protocol.ActionPause}})
		s.logger.Info("system stopping")
		c.JSON(http.StatusOK, api.CommandResponse{Message: "System Stopping"})

	case strings.Contains(cmd, "start"):
		doc, err := s.store.LatestDocument(ctx)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, api.CommandResponse{Error: "No CV Loaded"})
			return
		}
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, err.Error())
			return
		}
		if err := s.store.SetConfig(ctx, keyStatus, api.StatusRunning); err != nil {
			errorJSON(c, http.StatusInternalServerError, err.Error())
			return
		}
		if err := s.startAgent(c, doc); err != nil {
			s.logger.Warn("start agent", zap.Error(err))
		}
		s.logger.Info("system started", zap.String("document", doc.Name))
		c.JSON(http.StatusOK, api.CommandResponse{Message: "System Started"})

	default:
		c.JSON(http.StatusOK, api.CommandResponse{Message: "Unknown Command"})
	}
}

// startAgent launches the agent if needed and hands it the task.
func (s *Server) startAgent(c *gin.Context, doc *store.Document) error {
	if s.agent == nil {
		return nil
	}
	if !s.agent.Running() {
		if err := s.agent.Start(); err != nil {
			return err
		}
	}
	query, _ := s.store.Config(c.Request.Context(), keyQuery)
	task := fmt.Sprintf("Start the job search for %q using the CV in %s.", query, doc.Name)
	return s.agent.Send(protocol.Chat{Message: task})
}

func (s *Server) handleUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "missing file")
		return
	}
	if fh.Size > maxUploadSize {
		errorJSON(c, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	if ext := strings.ToLower(filepath.Ext(fh.Filename)); ext != ".pdf" && ext != ".txt" {
		errorJSON(c, http.StatusUnprocessableEntity, "Invalid file type")
		return
	}

	f, err := fh.Open()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "unreadable file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "unreadable file")
		return
	}

	doc, err := document.Extract(data)
	switch {
	case errors.Is(err, document.ErrUnsupported):
		errorJSON(c, http.StatusUnprocessableEntity, "Invalid file type")
		return
	case errors.Is(err, document.ErrTooShort):
		s.logger.Info("cv text extraction too short", zap.String("name", fh.Filename), zap.Int("length", doc.Length))
		errorJSON(c, http.StatusUnprocessableEntity, "CV text too short")
		return
	case err != nil:
		errorJSON(c, http.StatusUnprocessableEntity, err.Error())
		return
	}

	rec := &store.Document{
		Name:        filepath.Base(fh.Filename),
		ContentType: doc.MIME,
		Data:        data,
		Text:        doc.Text,
	}
	if err := s.store.AddDocument(c.Request.Context(), rec); err != nil {
		s.logger.Error("store document", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "failed to store document")
		return
	}
	s.metrics.DocumentsIngested.Inc()
	s.logger.Info("cv ingested", zap.String("name", rec.Name), zap.Int("length", doc.Length))
	c.JSON(http.StatusOK, api.IngestResponse{Status: "success", Message: "CV Ingested", Length: doc.Length})
}

func (s *Server) handleGetProfile(c *gin.Context) {
	var p api.Profile
	err := s.store.LoadProfile(c.Request.Context(), &p)
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "no profile saved")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleSaveProfile(c *gin.Context) {
	var p api.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := p.Validate(); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.SaveProfile(c.Request.Context(), p); err != nil {
		s.logger.Error("save profile", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "failed to save profile")
		return
	}
	c.JSON(http.StatusOK, api.ProfileResponse{Status: "updated", Profile: p})
}

// handleJob lets the agent report a job it found or applied to.
func (s *Server) handleJob(c *gin.Context) {
	var job store.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid request body")
		return
	}
	job.Status = strings.ToUpper(job.Status)
	switch job.Status {
	case "", store.JobPending, store.JobApplied, store.JobSkipped:
	default:
		errorJSON(c, http.StatusBadRequest, "unknown job status")
		return
	}
	if err := s.store.UpsertJob(c.Request.Context(), job); err != nil {
		errorJSON(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

func (s *Server) handleInterventionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, api.InterventionStatus{
		InterventionMode: s.interventionActive(),
		AgentRunning:     s.agent != nil && s.agent.Running(),
		Clients:          s.clientCount(),
	})
}
