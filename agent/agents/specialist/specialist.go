// Package specialist runs the discovery and support workflows: a language
// model loop that calls the workflow's tools until it answers in plain text.
package specialist

import (
	"context"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
	memoryx "github.com/tanpawarit/bitebot/agent/memory"
)

const (
	defaultMaxSteps     = 8
	defaultHistoryLimit = 40
	maxParallelTools    = 4
)

type Options struct {
	MaxSteps     int
	HistoryLimit int
	Now          func() time.Time
}

type workflowImpl struct {
	agentType    contractx.AgentType
	runner       compose.Runnable[map[string]any, *schema.Message]
	tools        contractx.ToolGateway
	allowedTools map[string]struct{}
	maxSteps     int
	historyLimit int
	now          func() time.Time
}

var _ contractx.Workflow = (*workflowImpl)(nil)

func newWorkflow(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
	tools contractx.ToolGateway,
	opts Options,
) (*workflowImpl, error) {
	if !agentType.Workflow() {
		return nil, fmt.Errorf("%w: agent=%s has no workflow", contractx.ErrValidation, agentType)
	}
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("%w: %s", contractx.ErrPromptMissing, agentType)
	}
	if tools == nil {
		return nil, fmt.Errorf("%w: tool gateway is required", contractx.ErrValidation)
	}

	infos := tools.Infos(agentType)
	toolModel, err := chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}
	runner, err := compileToolCallingGraph(ctx, toolModel, systemPrompt, string(agentType)+".tool_loop")
	if err != nil {
		return nil, fmt.Errorf("%w: compile %s graph: %v", contractx.ErrModelInvoke, agentType, err)
	}

	allowed := make(map[string]struct{}, len(infos))
	for _, info := range infos {
		if info != nil && strings.TrimSpace(info.Name) != "" {
			allowed[info.Name] = struct{}{}
		}
	}

	w := &workflowImpl{
		agentType:    agentType,
		runner:       runner,
		tools:        tools,
		allowedTools: allowed,
		maxSteps:     opts.MaxSteps,
		historyLimit: opts.HistoryLimit,
		now:          opts.Now,
	}
	if w.maxSteps <= 0 {
		w.maxSteps = defaultMaxSteps
	}
	if w.historyLimit <= 0 {
		w.historyLimit = defaultHistoryLimit
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w, nil
}

// Run answers one user message. Every model step either requests tools, whose
// results are fed back, or ends the run with a plain reply.
func (w *workflowImpl) Run(ctx context.Context, req contractx.WorkflowRequest) (contractx.WorkflowResponse, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return contractx.WorkflowResponse{}, contractx.ErrInvalidSession
	}
	if strings.TrimSpace(req.Message) == "" {
		return contractx.WorkflowResponse{}, contractx.ErrInvalidMessage
	}

	logger := log.With().Str("session_id", req.SessionID).Str("agent", string(w.agentType)).Logger()
	today := w.now().Format("Monday, January 2, 2006")
	produced := []*schema.Message{schema.UserMessage(req.Message)}

	for step := 1; step <= w.maxSteps; step++ {
		history := memoryx.Trim(concat(req.History, produced), w.historyLimit)
		msg, err := w.runner.Invoke(ctx, map[string]any{
			varToday:   today,
			varHistory: history,
		})
		if err != nil {
			return contractx.WorkflowResponse{}, fmt.Errorf("%w: %s step %d: %v", contractx.ErrModelInvoke, w.agentType, step, err)
		}
		if msg == nil {
			return contractx.WorkflowResponse{}, fmt.Errorf("%w: empty model response", contractx.ErrSchemaViolation)
		}

		if len(msg.ToolCalls) == 0 {
			reply := strings.TrimSpace(msg.Content)
			if reply == "" {
				return contractx.WorkflowResponse{}, fmt.Errorf("%w: reply is empty", contractx.ErrSchemaViolation)
			}
			produced = append(produced, schema.AssistantMessage(reply, nil))
			logger.Debug().Int("steps", step).Msg("workflow replied")
			return contractx.WorkflowResponse{Reply: reply, Messages: produced, Steps: step}, nil
		}

		produced = append(produced, msg)
		results, err := w.executeTools(ctx, req.SessionID, msg.ToolCalls)
		if err != nil {
			return contractx.WorkflowResponse{}, err
		}
		for _, r := range results {
			produced = append(produced, schema.ToolMessage(r.Text(), r.CallID))
		}
		logger.Debug().Int("step", step).Int("tool_calls", len(results)).Msg("tools executed")
	}

	return contractx.WorkflowResponse{}, fmt.Errorf("%w: %s exceeded %d tool steps", contractx.ErrSchemaViolation, w.agentType, w.maxSteps)
}

// executeTools runs the calls of one step concurrently. Results keep the call
// order. A gateway error cancels the remaining calls and aborts the turn.
func (w *workflowImpl) executeTools(ctx context.Context, sessionID string, calls []schema.ToolCall) ([]contractx.ToolResult, error) {
	results := make([]contractx.ToolResult, len(calls))
	p := pool.New().WithMaxGoroutines(maxParallelTools).WithErrors().WithContext(ctx).WithCancelOnError()

	for i, call := range calls {
		i := i
		req := toToolRequest(call)
		if _, ok := w.allowedTools[req.Tool]; !ok {
			results[i] = contractx.ToolResult{
				CallID: req.CallID,
				Tool:   req.Tool,
				Error:  fmt.Sprintf("tool=%s is not available to the %s assistant", req.Tool, w.agentType),
			}
			continue
		}
		p.Go(func(ctx context.Context) error {
			out, err := w.tools.Execute(ctx, w.agentType, sessionID, req)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func toToolRequest(call schema.ToolCall) contractx.ToolRequest {
	return contractx.ToolRequest{
		CallID:    call.ID,
		Tool:      strings.TrimSpace(call.Function.Name),
		Arguments: call.Function.Arguments,
	}
}

func concat(a, b []*schema.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
