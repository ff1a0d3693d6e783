// Package router classifies each user message into the discovery or support
// workflow.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

const (
	// RecentTurnLimit is how many UI turns accompany the message.
	RecentTurnLimit = 4
	// TurnExcerptLimit caps each turn's content in runes.
	TurnExcerptLimit = 100

	defaultTimeout = 10 * time.Second
)

type decisionOutput struct {
	Agent     string `json:"agent"`
	Reasoning string `json:"reasoning"`
}

type Router struct {
	runner  compose.Runnable[map[string]any, decisionOutput]
	timeout time.Duration
}

var _ contractx.Router = (*Router)(nil)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string, timeout time.Duration) (*Router, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("%w: router model is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: router", contractx.ErrPromptMissing)
	}
	runner, err := compileClassifierGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: compile router graph: %v", contractx.ErrModelInvoke, err)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Router{runner: runner, timeout: timeout}, nil
}

// Route never fails on model problems: an error, a timeout or an unknown
// label all fall back to discovery.
func (r *Router) Route(ctx context.Context, req contractx.RouteRequest) (contractx.RouteDecision, error) {
	if strings.TrimSpace(req.Message) == "" {
		return contractx.RouteDecision{}, contractx.ErrInvalidMessage
	}

	decision, err := r.classify(ctx, req)
	if err != nil {
		log.Warn().Err(err).Msg("routing fell back to discovery")
		return contractx.RouteDecision{
			Agent:     contractx.AgentTypeDiscovery,
			Reasoning: "fallback: " + err.Error(),
			Fallback:  true,
		}, nil
	}
	log.Debug().Str("agent", string(decision.Agent)).Str("reasoning", decision.Reasoning).Msg("routed message")
	return decision, nil
}

func (r *Router) classify(ctx context.Context, req contractx.RouteRequest) (contractx.RouteDecision, error) {
	input, err := json.Marshal(contractx.RouteRequest{
		Message:     req.Message,
		RecentTurns: recentTurns(req.RecentTurns),
	})
	if err != nil {
		return contractx.RouteDecision{}, fmt.Errorf("%w: marshal payload: %v", contractx.ErrRoutingFailure, err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	out, err := r.runner.Invoke(ctx, map[string]any{"input": string(input)})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return contractx.RouteDecision{}, fmt.Errorf("%w: timed out after %s", contractx.ErrRoutingFailure, r.timeout)
		}
		return contractx.RouteDecision{}, fmt.Errorf("%w: %v", contractx.ErrRoutingFailure, err)
	}

	agent := contractx.AgentType(strings.ToLower(strings.TrimSpace(out.Agent)))
	if !agent.Workflow() {
		return contractx.RouteDecision{}, fmt.Errorf("%w: unknown agent %q", contractx.ErrRoutingFailure, out.Agent)
	}
	return contractx.RouteDecision{Agent: agent, Reasoning: strings.TrimSpace(out.Reasoning)}, nil
}

func recentTurns(turns []contractx.Turn) []contractx.Turn {
	if len(turns) > RecentTurnLimit {
		turns = turns[len(turns)-RecentTurnLimit:]
	}
	out := make([]contractx.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, contractx.Turn{Role: t.Role, Content: truncate(t.Content, TurnExcerptLimit)})
	}
	return out
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
