// Package api exposes the churn pipeline as a plain JSON endpoint for
// callers that do not speak A2A.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BerylCAtieno/churn-risk-agent/internal/churn"
	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Analyzer runs the churn pipeline for one profile.
type Analyzer interface {
	Analyze(ctx context.Context, p models.RawProfile) (*churn.Result, error)
}

type Handler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

func NewHandler(analyzer Analyzer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{analyzer: analyzer, logger: logger}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	v1.POST("/churn/analyze", h.Analyze)
}

// AnalyzeResponse is the body of a successful analysis.
type AnalyzeResponse struct {
	AnalysisID  string              `json:"analysis_id"`
	Probability float64             `json:"probability"`
	Percent     string              `json:"percent"`
	Tier        string              `json:"tier"`
	Rationale   string              `json:"rationale"`
	Headline    string              `json:"headline"`
	Signals     features.Signals    `json:"signals"`
	Composites  features.Composites `json:"composites"`
	Features    []features.Entry    `json:"features"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Kind   string              `json:"kind,omitempty"`
	Fields []models.FieldError `json:"fields,omitempty"`
}

// Analyze handles POST /api/v1/churn/analyze.
func (h *Handler) Analyze(c *gin.Context) {
	var profile models.RawProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error:  "profile failed validation",
				Kind:   churn.KindInvalidInput,
				Fields: models.DescribeValidation(err),
			})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "malformed request body: " + err.Error()})
		return
	}

	res, err := h.analyzer.Analyze(c.Request.Context(), profile)
	if err != nil {
		kind := churn.FailureKind(err)
		status := statusForKind(kind)
		if status >= http.StatusInternalServerError {
			h.logger.Error("churn analysis failed", "kind", kind, "error", err)
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Kind: kind})
		return
	}

	a := res.Assessment
	c.JSON(http.StatusOK, AnalyzeResponse{
		AnalysisID:  uuid.New().String(),
		Probability: a.Probability,
		Percent:     a.Percent(),
		Tier:        string(a.Tier),
		Rationale:   a.Rationale,
		Headline:    a.Headline,
		Signals:     res.Signals,
		Composites:  res.Composites,
		Features:    res.Features,
	})
}

func statusForKind(kind string) int {
	switch kind {
	case churn.KindInvalidInput:
		return http.StatusUnprocessableEntity
	case churn.KindClassifier:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
