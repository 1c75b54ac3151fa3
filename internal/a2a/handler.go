package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/BerylCAtieno/churn-risk-agent/internal/agent"
	"github.com/BerylCAtieno/churn-risk-agent/internal/churn"
	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const advisorTimeout = 20 * time.Second

// Analyzer runs the churn pipeline for one profile.
type Analyzer interface {
	Analyze(ctx context.Context, p models.RawProfile) (*churn.Result, error)
}

// Advisor drafts retention actions for an assessed subscriber.
type Advisor interface {
	RetentionPlan(ctx context.Context, res *churn.Result) (string, error)
}

type A2AHandler struct {
	analyzer Analyzer
	advisor  Advisor
	logger   *slog.Logger
}

// NewA2AHandler wires the handler. advisor may be nil.
func NewA2AHandler(analyzer Analyzer, advisor Advisor, logger *slog.Logger) *A2AHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &A2AHandler{
		analyzer: analyzer,
		advisor:  advisor,
		logger:   logger,
	}
}

// RequestLoggingMiddleware logs every request; bodies only at debug level.
func RequestLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if logger.Enabled(c.Request.Context(), slog.LevelDebug) && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			logger.Debug("incoming request body", "path", c.Request.URL.Path, "body", string(bodyBytes))
			c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		c.Next()

		logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start))
	}
}

// HandleChurn processes A2A messages
func (h *A2AHandler) HandleChurn(c *gin.Context) {
	bodyBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read request body", "error", err)
		h.sendErrorResponse(c, nil, "Failed to read request body", CodeParseError)
		return
	}

	var rpcReq JSONRPCRequest
	if err := json.Unmarshal(bodyBytes, &rpcReq); err != nil || rpcReq.Method == "" {
		h.logger.Debug("request is not JSON-RPC, trying direct message parsing", "error", err)
		h.handleDirectMessage(c, bodyBytes)
		return
	}

	if rpcReq.JSONRPC != "2.0" {
		h.logger.Warn("invalid JSON-RPC version", "version", rpcReq.JSONRPC)
		h.sendErrorResponse(c, rpcReq.ID, "Invalid JSON-RPC version", CodeInvalidRequest)
		return
	}

	switch rpcReq.Method {
	case "agent/task", "message/send":
		h.handleTask(c, rpcReq)
	default:
		h.logger.Warn("unknown method", "method", rpcReq.Method)
		h.sendErrorResponse(c, rpcReq.ID, fmt.Sprintf("Method not found: %s", rpcReq.Method), CodeMethodNotFound)
	}
}

// handleDirectMessage handles a message sent without the JSON-RPC wrapper.
func (h *A2AHandler) handleDirectMessage(c *gin.Context, bodyBytes []byte) {
	var msgParams MessageParams
	if err := json.Unmarshal(bodyBytes, &msgParams); err != nil || len(msgParams.Message.Parts) == 0 {
		h.logger.Warn("failed to parse direct message", "error", err)
		h.sendErrorResponse(c, nil, "Invalid request format", CodeParseError)
		return
	}

	result := h.assess(c.Request.Context(), msgParams)
	h.sendSuccessResponse(c, "direct-message", result)
}

func (h *A2AHandler) handleTask(c *gin.Context, rpcReq JSONRPCRequest) {
	paramsJSON, err := json.Marshal(rpcReq.Params)
	if err != nil {
		h.sendErrorResponse(c, rpcReq.ID, "Failed to parse parameters", CodeInvalidParams)
		return
	}

	var msgParams MessageParams
	if err := json.Unmarshal(paramsJSON, &msgParams); err != nil {
		h.logger.Warn("failed to unmarshal params", "error", err)
		h.sendErrorResponse(c, rpcReq.ID, "Invalid parameters", CodeInvalidParams)
		return
	}

	result := h.assess(c.Request.Context(), msgParams)
	h.sendSuccessResponse(c, rpcReq.ID, result)
}

// assess turns one message into a task result. Bad or missing input asks
// the caller for more; pipeline failures fail the task.
func (h *A2AHandler) assess(ctx context.Context, params MessageParams) TaskResult {
	profile, err := extractProfile(params.Message)
	if err != nil {
		if errors.Is(err, errNoProfile) {
			return h.createTaskResult(params, StateInputRequired, usage())
		}
		return h.createTaskResult(params, StateInputRequired, inputProblem(err))
	}

	if err := models.ValidateProfile(profile); err != nil {
		var b strings.Builder
		b.WriteString(rangeIntro + ":\n")
		for _, fe := range models.DescribeValidation(err) {
			b.WriteString(fmt.Sprintf("- %s\n", fe.Error()))
		}
		b.WriteString("\n" + usage())
		return h.createTaskResult(params, StateInputRequired, b.String())
	}

	res, err := h.analyzer.Analyze(ctx, profile)
	if err != nil {
		var inputErr *features.InvalidInputError
		if errors.As(err, &inputErr) {
			return h.createTaskResult(params, StateInputRequired, inputProblem(err))
		}
		h.logger.Error("churn analysis failed", "error", err)
		return h.createTaskResult(params, StateFailed, fmt.Sprintf("%s: %v", failureIntro, err))
	}

	plan := h.retentionPlan(ctx, res)
	return h.createSuccessTaskResult(params, res, plan)
}

// retentionPlan returns "" when no advisor is configured or it fails.
func (h *A2AHandler) retentionPlan(ctx context.Context, res *churn.Result) string {
	if h.advisor == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, advisorTimeout)
	defer cancel()

	plan, err := h.advisor.RetentionPlan(ctx, res)
	if err != nil {
		h.logger.Warn("retention advisor failed; sending assessment without a plan", "error", err)
		return ""
	}
	return plan
}

// ServeAgentCard serves the agent card using Gin
func (h *A2AHandler) ServeAgentCard(c *gin.Context) {
	if err := agent.LoadAgentCard(); err != nil {
		h.logger.Error("error loading agent card", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Agent card not available"})
		return
	}
	c.Data(http.StatusOK, "application/json", agent.AgentCardData)
}

func (h *A2AHandler) createSuccessTaskResult(params MessageParams, res *churn.Result, plan string) TaskResult {
	responseText := formatAssessment(res, plan)
	result := h.createTaskResult(params, StateCompleted, responseText)

	parts := []MessagePart{TextPart(responseText)}
	if params.Configuration.accepts("data") {
		parts = append(parts, DataPart(res))
	}
	result.Artifacts = []Artifact{
		{
			ArtifactID: uuid.New().String(),
			Name:       "Churn Risk Assessment",
			Parts:      parts,
		},
	}
	return result
}

// createTaskResult answers the user's message with one agent message. The
// history holds both turns, trimmed to the requested length.
func (h *A2AHandler) createTaskResult(params MessageParams, state, text string) TaskResult {
	taskID := uuid.New().String()
	contextID := params.Message.ContextID
	if contextID == "" {
		contextID = uuid.New().String()
	}

	reply := A2AMessage{
		Kind:      "message",
		Role:      RoleAgent,
		MessageID: uuid.New().String(),
		TaskID:    &taskID,
		ContextID: contextID,
		Parts: []MessagePart{
			TextPart(text),
		},
	}

	request := params.Message
	if request.Role == "" {
		request.Role = RoleUser
	}
	request.TaskID = &taskID
	request.ContextID = contextID

	history := []A2AMessage{request, reply}
	if n := params.Configuration.HistoryLength; n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}

	return TaskResult{
		ID:        taskID,
		ContextID: contextID,
		Kind:      "task",
		Status: TaskStatus{
			State:     state,
			Timestamp: Timestamp(),
			Message:   &reply,
		},
		History: history,
	}
}

func usage() string {
	return usageIntro + ", for example:\n" +
		"age: 25, listening_frequency: Frequently, podcast_frequency: Never, recommendation_rating: 4, premium_interest: Yes\n\n" +
		"listening_frequency: Rarely | Occasionally | Frequently | Daily\n" +
		"podcast_frequency: Never | Rarely | Occasionally | Frequently (or active / inactive)\n" +
		"recommendation_rating: 1-5, premium_interest: Yes | No, age: 10-80"
}

func inputProblem(err error) string {
	return fmt.Sprintf("%s: %v\n\n%s", problemIntro, err, usage())
}

func formatAssessment(res *churn.Result, plan string) string {
	a := res.Assessment
	var builder strings.Builder

	builder.WriteString(reportHeading + "\n\n")
	builder.WriteString(fmt.Sprintf("**%s**\n\n", a.Headline))
	builder.WriteString(fmt.Sprintf("- Churn Probability: %s\n", a.Percent()))
	builder.WriteString(fmt.Sprintf("- Risk Tier: %s\n", a.Tier))
	builder.WriteString(fmt.Sprintf("- Rationale: %s\n", a.Rationale))

	builder.WriteString("\n**Signals:**\n")
	builder.WriteString(fmt.Sprintf("- Engagement Risk: %g\n", res.Composites.EngagementScore))
	builder.WriteString(fmt.Sprintf("- Satisfaction Risk: %g\n", res.Composites.SatisfactionScore))
	builder.WriteString(fmt.Sprintf("- Monetization Risk: %g\n", res.Composites.MonetizationScore))
	builder.WriteString(fmt.Sprintf("- Churn Pressure: %g\n", res.Composites.ChurnPressure))
	builder.WriteString(fmt.Sprintf("- Age Bucket: %s\n", res.Signals.AgeBucket))

	if plan != "" {
		builder.WriteString("\n**Retention Plan:**\n")
		builder.WriteString(plan)
		builder.WriteString("\n")
	}

	return builder.String()
}

func (h *A2AHandler) sendSuccessResponse(c *gin.Context, id interface{}, result interface{}) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	}
	c.JSON(http.StatusOK, response)
}

func (h *A2AHandler) sendErrorResponse(c *gin.Context, id interface{}, message string, code int) {
	response := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}

	h.logger.Warn("sending JSON-RPC error", "code", code, "message", message)
	c.JSON(http.StatusOK, response) // JSON-RPC errors are sent with 200 OK
}
