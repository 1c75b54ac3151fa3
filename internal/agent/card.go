package agent

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

//go:embed agent.json
var agentCardJSON []byte

// AgentCardData holds the validated agent card once LoadAgentCard succeeds.
var AgentCardData []byte

var loadOnce = sync.OnceValue(func() error {
	var card map[string]any
	if err := json.Unmarshal(agentCardJSON, &card); err != nil {
		return fmt.Errorf("parse agent card: %w", err)
	}
	for _, field := range []string{"name", "description", "version", "capabilities", "endpoints"} {
		if _, ok := card[field]; !ok {
			return fmt.Errorf("agent card missing field %q", field)
		}
	}
	AgentCardData = agentCardJSON
	return nil
})

// LoadAgentCard validates the embedded card and publishes it in AgentCardData.
func LoadAgentCard() error {
	return loadOnce()
}
