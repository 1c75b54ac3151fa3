package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorPurple = "\033[35m"
	colorCyan   = "\033[36m"
)

type TestClient struct {
	baseURL string
	client  *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

const defaultProfile = "age: 45, listening_frequency: Rarely, podcast_frequency: Never, recommendation_rating: 1, premium_interest: No"

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the agent")
	testType := flag.String("test", "all", "Test type: all, health, agent-card, analyze, churn, custom")
	profile := flag.String("profile", "", "Subscriber profile text for the custom test, e.g. \"age: 30, listening: Daily, ...\"")
	flag.Parse()

	client := NewTestClient(*baseURL)

	printHeader("Churn Risk Agent - Test Suite")
	fmt.Printf("%sBase URL: %s%s\n\n", colorCyan, *baseURL, colorReset)

	var ok bool
	switch *testType {
	case "all":
		client.runAllTests()
		return
	case "health":
		ok = client.testHealthCheck()
	case "agent-card":
		ok = client.testAgentCard()
	case "analyze":
		ok = client.testRESTAnalyze()
	case "churn":
		ok = client.testChurnAssessment()
	case "custom":
		if *profile == "" {
			printError("Profile is required for custom test. Use -profile flag")
			os.Exit(1)
		}
		ok = client.testCustomAssessment(*profile)
	default:
		printError(fmt.Sprintf("Unknown test type: %s", *testType))
		fmt.Println("\nAvailable tests: all, health, agent-card, analyze, churn, custom")
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

func (tc *TestClient) runAllTests() {
	tests := []struct {
		name string
		fn   func() bool
	}{
		{"Health Check", tc.testHealthCheck},
		{"Agent Card", tc.testAgentCard},
		{"REST Analyze", tc.testRESTAnalyze},
		{"REST Validation", tc.testRESTValidation},
		{"A2A Churn Assessment", tc.testChurnAssessment},
	}

	passed := 0
	failed := 0

	for _, test := range tests {
		if test.fn() {
			passed++
		} else {
			failed++
		}
		fmt.Println()
	}

	printHeader("Test Summary")
	fmt.Printf("%sPassed: %d%s\n", colorGreen, passed, colorReset)
	fmt.Printf("%sFailed: %d%s\n", colorRed, failed, colorReset)
	fmt.Printf("Total: %d\n", passed+failed)

	if failed > 0 {
		os.Exit(1)
	}
}

func (tc *TestClient) testHealthCheck() bool {
	printTestHeader("Testing Health Check Endpoint")

	url := fmt.Sprintf("%s/health", tc.baseURL)
	fmt.Printf("GET %s\n", url)

	resp, err := tc.client.Get(url)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		return false
	}

	if string(body) != "OK" {
		printError(fmt.Sprintf("Expected body 'OK', got '%s'", string(body)))
		return false
	}

	printSuccess("Health check passed")
	return true
}

func (tc *TestClient) testAgentCard() bool {
	printTestHeader("Testing Agent Card Endpoint")

	url := fmt.Sprintf("%s/.well-known/agent.json", tc.baseURL)
	fmt.Printf("GET %s\n", url)

	resp, err := tc.client.Get(url)
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", resp.StatusCode))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var agentCard map[string]interface{}
	if err := json.Unmarshal(body, &agentCard); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}

	requiredFields := []string{"name", "description", "version", "capabilities", "endpoints"}
	for _, field := range requiredFields {
		if _, ok := agentCard[field]; !ok {
			printError(fmt.Sprintf("Missing required field: %s", field))
			return false
		}
	}

	printSuccess("Agent card is valid")
	printJSON(body)
	return true
}

func (tc *TestClient) postJSON(path string, payload interface{}) (int, []byte, bool) {
	url := tc.baseURL + path
	fmt.Printf("POST %s\n", url)

	jsonData, _ := json.MarshalIndent(payload, "", "  ")
	fmt.Printf("%sRequest:%s\n", colorYellow, colorReset)
	fmt.Println(string(jsonData))
	fmt.Println()

	resp, err := tc.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		printError(fmt.Sprintf("Request failed: %v", err))
		return 0, nil, false
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, body, true
}

func (tc *TestClient) testRESTAnalyze() bool {
	printTestHeader("Testing REST Analyze Endpoint")

	status, body, ok := tc.postJSON("/api/v1/churn/analyze", map[string]interface{}{
		"age":                   45,
		"listening_frequency":   "Rarely",
		"podcast_frequency":     "Never",
		"recommendation_rating": 1,
		"premium_interest":      "No",
	})
	if !ok {
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", status))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}
	for _, field := range []string{"analysis_id", "probability", "tier", "headline", "features"} {
		if _, ok := result[field]; !ok {
			printError(fmt.Sprintf("Missing field: %s", field))
			return false
		}
	}

	printSuccess(fmt.Sprintf("Analysis returned tier %v (%v)", result["tier"], result["percent"]))
	printJSON(body)
	return true
}

func (tc *TestClient) testRESTValidation() bool {
	printTestHeader("Testing REST Input Validation")

	status, body, ok := tc.postJSON("/api/v1/churn/analyze", map[string]interface{}{
		"age":                   95,
		"listening_frequency":   "Daily",
		"podcast_frequency":     "Never",
		"recommendation_rating": 3,
		"premium_interest":      "Yes",
	})
	if !ok {
		return false
	}
	if status != http.StatusUnprocessableEntity {
		printError(fmt.Sprintf("Expected status 422, got %d", status))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	printSuccess("Out-of-range age was rejected")
	printJSON(body)
	return true
}

func (tc *TestClient) testChurnAssessment() bool {
	return tc.testCustomAssessment(defaultProfile)
}

func (tc *TestClient) testCustomAssessment(profile string) bool {
	printTestHeader("Testing A2A Churn Assessment")
	fmt.Printf("%sProfile:%s %s\n\n", colorCyan, colorReset, profile)

	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      fmt.Sprintf("test-%d", time.Now().Unix()),
		"method":  "message/send",
		"params": map[string]interface{}{
			"message": map[string]interface{}{
				"kind": "message",
				"role": "user",
				"parts": []map[string]interface{}{
					{
						"kind": "text",
						"text": profile,
					},
				},
			},
			"configuration": map[string]interface{}{
				"blocking":            true,
				"acceptedOutputModes": []string{"text", "data"},
			},
		},
	}

	status, body, ok := tc.postJSON("/a2a/churn", request)
	if !ok {
		return false
	}
	if status != http.StatusOK {
		printError(fmt.Sprintf("Expected status 200, got %d", status))
		fmt.Printf("Response: %s\n", string(body))
		return false
	}

	var response map[string]interface{}
	if err := json.Unmarshal(body, &response); err != nil {
		printError(fmt.Sprintf("Invalid JSON response: %v", err))
		return false
	}

	if errObj, ok := response["error"]; ok {
		printError("Request returned an error")
		errJSON, _ := json.MarshalIndent(errObj, "", "  ")
		fmt.Println(string(errJSON))
		return false
	}

	result, ok := response["result"].(map[string]interface{})
	if !ok {
		printError("Invalid result format")
		return false
	}

	taskStatus, ok := result["status"].(map[string]interface{})
	if !ok {
		printError("Invalid status format")
		return false
	}

	state, _ := taskStatus["state"].(string)
	if state != "completed" {
		printError(fmt.Sprintf("Expected state 'completed', got '%s'", state))
		printMessage(taskStatus)
		return false
	}

	printSuccess("Churn assessment completed successfully")
	printMessage(taskStatus)

	if artifacts, ok := result["artifacts"].([]interface{}); ok && len(artifacts) > 0 {
		fmt.Printf("\n%sArtifacts:%s\n", colorPurple, colorReset)
		artifactsJSON, _ := json.MarshalIndent(artifacts, "", "  ")
		fmt.Println(string(artifactsJSON))
	}

	return true
}

func printMessage(status map[string]interface{}) {
	msg, ok := status["message"].(map[string]interface{})
	if !ok {
		return
	}
	parts, ok := msg["parts"].([]interface{})
	if !ok {
		return
	}
	fmt.Printf("\n%sAgent Response:%s\n", colorGreen, colorReset)
	fmt.Println(strings.Repeat("=", 80))
	for _, part := range parts {
		if p, ok := part.(map[string]interface{}); ok {
			if text, ok := p["text"].(string); ok {
				fmt.Println(text)
			}
		}
	}
	fmt.Println(strings.Repeat("=", 80))
}

func printHeader(text string) {
	fmt.Printf("\n%s%s%s\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
	fmt.Printf("%s= %s =%s\n", colorBlue, text, colorReset)
	fmt.Printf("%s%s%s\n\n", colorBlue, strings.Repeat("=", len(text)+4), colorReset)
}

func printTestHeader(text string) {
	fmt.Printf("%s[TEST] %s%s\n", colorCyan, text, colorReset)
	fmt.Println(strings.Repeat("-", 80))
}

func printSuccess(text string) {
	fmt.Printf("%s✓ %s%s\n", colorGreen, text, colorReset)
}

func printError(text string) {
	fmt.Printf("%s✗ %s%s\n", colorRed, text, colorReset)
}

func printJSON(data []byte) {
	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, data, "", "  "); err == nil {
		fmt.Printf("\n%sResponse:%s\n%s\n", colorYellow, colorReset, prettyJSON.String())
	}
}
