package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/opsforgelabs/triaged/internal/knowledge"
	"github.com/opsforgelabs/triaged/internal/triage"
)

// statusClientClosedRequest is nginx's non-standard status for requests
// abandoned by the client before a response was written.
const statusClientClosedRequest = 499

// ResolveRequest is the request body for POST /resolve.
type ResolveRequest struct {
	ID          string            `json:"id"`
	Summary     string            `json:"summary"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	User        map[string]string `json:"user"`
	Metadata    map[string]string `json:"metadata"`
}

// AddKnowledgeRequest is the request body for POST /kb/add. Field names
// mirror knowledge.Entry's wire format.
type AddKnowledgeRequest struct {
	Summary    string            `json:"incident_summary"`
	Resolution string            `json:"resolution"`
	Category   string            `json:"category"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata"`
}

// AddKnowledgeResponse is the response body for POST /kb/add.
type AddKnowledgeResponse struct {
	ID           string `json:"id"`
	TotalEntries int    `json:"total_entries"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Version    string `json:"version,omitempty"`
	StoreReady bool   `json:"store_ready"`
	KBEntries  int    `json:"kb_entries"`
}

// handleHealth reports liveness plus knowledge store readiness.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:     "ok",
		Version:    s.config.Version,
		StoreReady: s.engine.StoreReady(),
		KBEntries:  s.engine.KnowledgeCount(),
	})
}

// handleResolve runs the triage pipeline for one incident.
func (s *Server) handleResolve(c echo.Context) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid resolve request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Summary == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "summary field is required")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	incident := &triage.Incident{
		ID:          req.ID,
		Summary:     req.Summary,
		Description: req.Description,
		Category:    req.Category,
		User:        req.User,
		Metadata:    req.Metadata,
	}

	resolution, err := s.engine.Resolve(c.Request().Context(), incident)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return echo.NewHTTPError(statusClientClosedRequest, "client closed request")
		}
		s.logger.Error("resolve failed",
			zap.String("incident_id", req.ID),
			zap.Error(err),
		)
		return echo.NewHTTPError(http.StatusInternalServerError, "resolution failed")
	}

	return c.JSON(http.StatusOK, resolution)
}

// handleAddKnowledge appends a resolved incident to the knowledge base.
func (s *Server) handleAddKnowledge(c echo.Context) error {
	var req AddKnowledgeRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid kb add request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	entry := knowledge.Entry{
		Summary:    req.Summary,
		Resolution: req.Resolution,
		Category:   req.Category,
		Confidence: req.Confidence,
		Metadata:   req.Metadata,
	}

	id, err := s.engine.AddKnowledge(c.Request().Context(), entry)
	switch {
	case err == nil:
	case errors.Is(err, knowledge.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "knowledge store unavailable")
	case errors.Is(err, knowledge.ErrInvalidEntry):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("kb add failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store entry")
	}

	return c.JSON(http.StatusOK, AddKnowledgeResponse{
		ID:           id,
		TotalEntries: s.engine.KnowledgeCount(),
	})
}
