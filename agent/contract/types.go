package contract

import (
	"github.com/cloudwego/eino/schema"
)

type AgentType string

const (
	AgentTypeRouter    AgentType = "router"
	AgentTypeDiscovery AgentType = "discovery"
	AgentTypeSupport   AgentType = "support"
)

// Workflow reports whether a is one of the two specialist workflows.
func (a AgentType) Workflow() bool {
	return a == AgentTypeDiscovery || a == AgentTypeSupport
}

// Turn is one UI-visible exchange line used as router context.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type RouteRequest struct {
	Message     string `json:"message"`
	RecentTurns []Turn `json:"recent_turns,omitempty"`
}

type RouteDecision struct {
	Agent     AgentType `json:"agent"`
	Reasoning string    `json:"reasoning"`
	Fallback  bool      `json:"-"`
}

type WorkflowRequest struct {
	SessionID string
	Message   string
	History   []*schema.Message
}

type WorkflowResponse struct {
	Reply string
	// Messages holds the messages produced during this run, starting with the
	// user message, in order.
	Messages []*schema.Message
	Steps    int
}

type ToolRequest struct {
	CallID    string `json:"call_id,omitempty"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"`
}

type ToolResult struct {
	CallID  string `json:"call_id,omitempty"`
	Tool    string `json:"tool"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Text is what the model sees for this result.
func (r ToolResult) Text() string {
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Content
}
