package a2a

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BerylCAtieno/churn-risk-agent/internal/churn"
	"github.com/BerylCAtieno/churn-risk-agent/internal/features"
	"github.com/BerylCAtieno/churn-risk-agent/internal/models"
	"github.com/BerylCAtieno/churn-risk-agent/internal/risk"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type stubAdvisor struct {
	plan string
	err  error
}

func (s stubAdvisor) RetentionPlan(context.Context, *churn.Result) (string, error) {
	return s.plan, s.err
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, models.RawProfile) (*churn.Result, error) {
	return nil, &risk.ClassifierError{Err: errors.New("model crashed")}
}

func newAnalyzer(t *testing.T, prob float64) *churn.Analyzer {
	t.Helper()
	registry := features.NewRegistry(filepath.Join("..", "..", "model", "feature_names.json"))
	resolver, err := risk.NewResolver(risk.DefaultThresholds)
	require.NoError(t, err)
	classifier := risk.ScoreFunc(func(context.Context, *features.Vector) (float64, error) {
		return prob, nil
	})
	a, err := churn.NewAnalyzer(registry, classifier, resolver, churn.Options{Logger: quietLogger})
	require.NoError(t, err)
	return a
}

func newRouter(h *A2AHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/.well-known/agent.json", h.ServeAgentCard)
	r.POST("/a2a/churn", h.HandleChurn)
	return r
}

type rpcResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  *TaskResult   `json:"result"`
	Error   *JSONRPCError `json:"error"`
}

func post(t *testing.T, r http.Handler, body interface{}) rpcResponse {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/a2a/churn", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func rpcRequest(method string, parts ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      "req-1",
		"method":  method,
		"params": map[string]interface{}{
			"message": map[string]interface{}{
				"kind":  "message",
				"role":  "user",
				"parts": parts,
			},
		},
	}
}

func textPart(s string) map[string]interface{} {
	return map[string]interface{}{"kind": "text", "text": s}
}

func statusText(t *testing.T, res *TaskResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotNil(t, res.Status.Message)
	require.NotEmpty(t, res.Status.Message.Parts)
	s, ok := res.Status.Message.Parts[0].Text.(string)
	require.True(t, ok)
	return s
}

func TestHandleChurn_TextProfile(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.81), nil, quietLogger)
	resp := post(t, newRouter(h), rpcRequest("message/send",
		textPart("age: 45, listening: Rarely, podcast: Never, rating: 1, premium: No")))

	require.Nil(t, resp.Error)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, StateCompleted, resp.Result.Status.State)
	text := statusText(t, resp.Result)
	assert.Contains(t, text, "Churn Probability: 81.00%")
	assert.Contains(t, text, "Risk Tier: High")
	assert.Contains(t, text, "Churn Pressure: 1.5")
	assert.NotContains(t, text, "Retention Plan")
	require.Len(t, resp.Result.Artifacts, 1)
	assert.Len(t, resp.Result.Artifacts[0].Parts, 2)
}

func TestHandleChurn_DataProfile(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.12), nil, quietLogger)
	resp := post(t, newRouter(h), rpcRequest("agent/task", map[string]interface{}{
		"kind": "data",
		"data": map[string]interface{}{
			"age":                     25,
			"listening_frequency":     "Frequently",
			"active_podcast_listener": true,
			"recommendation_rating":   4,
			"premium_interest":        "Yes",
		},
	}))

	require.Nil(t, resp.Error)
	assert.Equal(t, StateCompleted, resp.Result.Status.State)
	assert.Contains(t, statusText(t, resp.Result), "Risk Tier: Low")
}

func TestHandleChurn_AdvisorPlan(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.5), stubAdvisor{plan: "- Send a curated podcast playlist"}, quietLogger)
	resp := post(t, newRouter(h), rpcRequest("message/send",
		textPart("age: 30, listening: Daily, podcast: Rarely, rating: 3, premium: Yes")))

	text := statusText(t, resp.Result)
	assert.Contains(t, text, "Risk Tier: Medium")
	assert.Contains(t, text, "**Retention Plan:**\n- Send a curated podcast playlist")
}

func TestHandleChurn_AdvisorFailureKeepsAssessment(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.5), stubAdvisor{err: errors.New("quota")}, quietLogger)
	resp := post(t, newRouter(h), rpcRequest("message/send",
		textPart("age: 30, listening: Daily, podcast: Rarely, rating: 3, premium: Yes")))

	assert.Equal(t, StateCompleted, resp.Result.Status.State)
	assert.NotContains(t, statusText(t, resp.Result), "Retention Plan")
}

func TestHandleChurn_InputRequired(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no profile", "is this user going to leave?", "Please describe the subscriber"},
		{"out of range", "age: 95, listening: Daily, podcast: Never, rating: 3, premium: Yes", "age must be at most 80"},
		{"unknown label", "age: 30, listening: Hourly, podcast: Never, rating: 3, premium: Yes", "listening_frequency"},
		{"non-numeric rating", "age: 30, listening: Daily, podcast: Never, rating: five, premium: Yes", "recommendation_rating"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewA2AHandler(newAnalyzer(t, 0.5), nil, quietLogger)
			resp := post(t, newRouter(h), rpcRequest("message/send", textPart(tt.text)))

			require.Nil(t, resp.Error)
			assert.Equal(t, StateInputRequired, resp.Result.Status.State)
			assert.Contains(t, statusText(t, resp.Result), tt.want)
		})
	}
}

func TestHandleChurn_AnalysisFailure(t *testing.T) {
	h := NewA2AHandler(failingAnalyzer{}, nil, quietLogger)
	resp := post(t, newRouter(h), rpcRequest("message/send",
		textPart("age: 30, listening: Daily, podcast: Never, rating: 3, premium: Yes")))

	assert.Equal(t, StateFailed, resp.Result.Status.State)
	assert.Contains(t, statusText(t, resp.Result), "model crashed")
	assert.Empty(t, resp.Result.Artifacts)
}

func TestHandleChurn_FollowUpAfterUsageReply(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.81), nil, quietLogger)
	history := map[string]interface{}{
		"kind": "data",
		"data": []map[string]interface{}{
			{"kind": "text", "text": "hi"},
			{"kind": "text", "text": usage()},
		},
	}
	resp := post(t, newRouter(h), rpcRequest("message/send",
		textPart("age: 60, listening: Rarely, podcast: Never, rating: 1, premium: No"), history))

	require.Nil(t, resp.Error)
	assert.Equal(t, StateCompleted, resp.Result.Status.State)
	assert.Contains(t, statusText(t, resp.Result), "Age Bucket: 35-60")
}

func TestHandleChurn_History(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.5), nil, quietLogger)
	resp := post(t, newRouter(h), rpcRequest("message/send", textPart("hello")))

	require.Equal(t, StateInputRequired, resp.Result.Status.State)
	require.Len(t, resp.Result.History, 2)
	assert.Equal(t, RoleUser, resp.Result.History[0].Role)
	assert.Equal(t, RoleAgent, resp.Result.History[1].Role)
	require.NotNil(t, resp.Result.History[0].TaskID)
	assert.Equal(t, resp.Result.ID, *resp.Result.History[0].TaskID)
	assert.Equal(t, resp.Result.ContextID, resp.Result.History[1].ContextID)

	req := rpcRequest("message/send", textPart("hello"))
	req["params"].(map[string]interface{})["configuration"] = map[string]interface{}{"historyLength": 1}
	resp = post(t, newRouter(h), req)
	require.Len(t, resp.Result.History, 1)
	assert.Equal(t, RoleAgent, resp.Result.History[0].Role)
}

func TestHandleChurn_TextOnlyOutput(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.81), nil, quietLogger)
	req := rpcRequest("message/send", textPart("age: 45, listening: Rarely, podcast: Never, rating: 1, premium: No"))
	req["params"].(map[string]interface{})["configuration"] = map[string]interface{}{
		"acceptedOutputModes": []string{"text"},
	}
	resp := post(t, newRouter(h), req)

	require.Len(t, resp.Result.Artifacts, 1)
	require.Len(t, resp.Result.Artifacts[0].Parts, 1)
	assert.Equal(t, "text", resp.Result.Artifacts[0].Parts[0].Kind)
}

func TestHandleChurn_RPCErrors(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.5), nil, quietLogger)
	r := newRouter(h)

	bad := rpcRequest("message/send", textPart("age: 30"))
	bad["jsonrpc"] = "1.0"
	resp := post(t, r, bad)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidRequest, resp.Error.Code)

	resp = post(t, r, rpcRequest("tasks/cancel"))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestHandleChurn_DirectMessage(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.81), nil, quietLogger)
	resp := post(t, newRouter(h), map[string]interface{}{
		"message": map[string]interface{}{
			"kind":  "message",
			"role":  "user",
			"parts": []map[string]interface{}{textPart("age: 45, listening: Rarely, podcast: Never, rating: 1, premium: No")},
		},
	})
	require.Nil(t, resp.Error)
	assert.Equal(t, "direct-message", resp.ID)
	assert.Equal(t, StateCompleted, resp.Result.Status.State)
}

func TestHandleChurn_Garbage(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.5), nil, quietLogger)
	req := httptest.NewRequest(http.MethodPost, "/a2a/churn", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	var resp rpcResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeParseError, resp.Error.Code)
}

func TestServeAgentCard(t *testing.T) {
	h := NewA2AHandler(newAnalyzer(t, 0.5), nil, quietLogger)
	req := httptest.NewRequest(http.MethodGet, "/.well-known/agent.json", nil)
	w := httptest.NewRecorder()
	newRouter(h).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var card map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	for _, field := range []string{"name", "description", "version", "capabilities", "endpoints"} {
		assert.Contains(t, card, field)
	}
}
