package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/braingraph/braingraph/pkg/brain"
	"github.com/braingraph/braingraph/pkg/enrich"
	"github.com/braingraph/braingraph/pkg/retrieve"
	"github.com/braingraph/braingraph/pkg/store"
)

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(c echo.Context) error {
	type ingestParams struct {
		Events []enrich.Event `json:"events"`
	}

	params := new(ingestParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if len(params.Events) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "events is required"})
	}

	report, err := s.brain.Ingest(c.Request().Context(), params.Events)
	if err != nil {
		s.logger.Error("ingestion failed", "err", err, "type", brain.ClassifyError(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Ingestion failed"})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleAsk(c echo.Context) error {
	type askParams struct {
		Question string `json:"question"`
	}

	params := new(askParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if strings.TrimSpace(params.Question) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "question is required"})
	}

	result, err := s.brain.Ask(c.Request().Context(), params.Question)
	if err != nil {
		s.logger.Error("ask failed", "err", err, "type", brain.ClassifyError(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Ask failed"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleContext(c echo.Context) error {
	limit := queryInt(c, "limit", 30)
	snapshot, err := s.brain.Context(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("context fetch failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Context fetch failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"context": snapshot})
}

func (s *Server) handleGraph(c echo.Context) error {
	limit := queryInt(c, "limit", 500)
	export, err := s.brain.Export(c.Request().Context(), limit)
	if err != nil {
		if errors.Is(err, store.ErrNoExport) {
			return c.JSON(http.StatusNotImplemented, errorResponse{Message: "Backend has no export"})
		}
		s.logger.Error("graph export failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Export failed"})
	}
	return c.JSON(http.StatusOK, export)
}

func (s *Server) handleRetrieve(c echo.Context) error {
	params := new(retrieve.Request)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if strings.TrimSpace(params.Query) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "query is required"})
	}

	result, err := s.brain.Retrieve(c.Request().Context(), *params)
	if err != nil {
		s.logger.Error("retrieval failed", "err", err, "type", brain.ClassifyError(err))
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Retrieval failed"})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleHousekeep(c echo.Context) error {
	type housekeepParams struct {
		Consolidate bool `json:"consolidate"`
	}

	params := new(housekeepParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}

	report, err := s.brain.Housekeep(c.Request().Context(), params.Consolidate)
	if err != nil {
		s.logger.Error("housekeeping failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Housekeeping failed"})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handlePlanCheck(c echo.Context) error {
	type planParams struct {
		Plan string `json:"plan"`
	}

	params := new(planParams)
	if err := c.Bind(params); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "Invalid request body"})
	}
	if strings.TrimSpace(params.Plan) == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "plan is required"})
	}

	warnings, err := s.brain.CheckPlan(c.Request().Context(), params.Plan)
	if err != nil {
		s.logger.Error("plan check failed", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: "Plan check failed"})
	}
	return c.JSON(http.StatusOK, map[string]any{"warnings": warnings})
}

func queryInt(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
