package specialist

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
	llmx "github.com/tanpawarit/bitebot/agent/llm"
)

type fakeToolCallingModel struct {
	responses []*schema.Message
	repeat    *schema.Message
	err       error
	idx       int
	inputs    [][]*schema.Message
	tools     []*schema.ToolInfo
}

func (f *fakeToolCallingModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
	if f.repeat != nil {
		cp := *f.repeat
		return &cp, nil
	}
	if f.idx >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.idx]
	f.idx++
	return msg, nil
}

func (f *fakeToolCallingModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func (f *fakeToolCallingModel) WithTools(tools []*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	f.tools = tools
	return f, nil
}

type fakeTools struct {
	mu    sync.Mutex
	calls []contractx.ToolRequest
	err   error
}

func (f *fakeTools) Infos(agentType contractx.AgentType) []*schema.ToolInfo {
	if agentType == contractx.AgentTypeDiscovery {
		return []*schema.ToolInfo{{Name: "search_restaurants"}, {Name: "check_availability"}}
	}
	return []*schema.ToolInfo{{Name: "cancel_reservation"}}
}

func (f *fakeTools) Execute(ctx context.Context, agentType contractx.AgentType, sessionID string, req contractx.ToolRequest) (contractx.ToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.err != nil {
		return contractx.ToolResult{}, f.err
	}
	if req.Tool == "check_availability" {
		return contractx.ToolResult{CallID: req.CallID, Tool: req.Tool, Error: "Vetri Cucina is not open at 11:00 PM"}, nil
	}
	return contractx.ToolResult{CallID: req.CallID, Tool: req.Tool, Content: "result of " + req.Tool}, nil
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func fixedNow() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }

func newTestWorkflow(t *testing.T, agentType contractx.AgentType, model *fakeToolCallingModel, tools *fakeTools, maxSteps int) *workflowImpl {
	t.Helper()
	w, err := newWorkflow(context.Background(), agentType, model, "You are BiteBot. Today is {today}.", tools, Options{
		MaxSteps: maxSteps,
		Now:      fixedNow,
	})
	if err != nil {
		t.Fatalf("newWorkflow() error = %v", err)
	}
	return w
}

func TestWorkflowPlainReply(t *testing.T) {
	t.Parallel()

	model := &fakeToolCallingModel{responses: []*schema.Message{schema.AssistantMessage("  Which city are you in?  ", nil)}}
	w := newTestWorkflow(t, contractx.AgentTypeDiscovery, model, &fakeTools{}, 4)

	history := []*schema.Message{schema.UserMessage("hi"), schema.AssistantMessage("Hello!", nil)}
	out, err := w.Run(context.Background(), contractx.WorkflowRequest{SessionID: "s1", Message: "Find me pizza", History: history})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Reply != "Which city are you in?" || out.Steps != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if len(out.Messages) != 2 || out.Messages[0].Role != schema.User || out.Messages[1].Role != schema.Assistant {
		t.Fatalf("unexpected produced messages: %+v", out.Messages)
	}
	if len(model.tools) != 2 {
		t.Fatalf("expected discovery tools bound, got %d", len(model.tools))
	}

	input := model.inputs[0]
	if len(input) != 4 {
		t.Fatalf("expected system + history + user, got %d messages", len(input))
	}
	if input[0].Content != "You are BiteBot. Today is Thursday, October 15, 2026." {
		t.Fatalf("unexpected system prompt: %q", input[0].Content)
	}
	if input[3].Content != "Find me pizza" {
		t.Fatalf("unexpected last message: %q", input[3].Content)
	}
}

func TestWorkflowRunsToolsThenReplies(t *testing.T) {
	t.Parallel()

	model := &fakeToolCallingModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{
			toolCall("c1", "search_restaurants", `{"cuisine":"italian"}`),
			toolCall("c2", "check_availability", `{"restaurant_name":"Vetri","time":"11pm"}`),
		}),
		schema.AssistantMessage("Vetri is closed at 11pm. How about 8pm?", nil),
	}}
	tools := &fakeTools{}
	w := newTestWorkflow(t, contractx.AgentTypeDiscovery, model, tools, 4)

	out, err := w.Run(context.Background(), contractx.WorkflowRequest{SessionID: "s1", Message: "Book Vetri at 11pm"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Steps != 2 || len(tools.calls) != 2 {
		t.Fatalf("steps=%d calls=%d", out.Steps, len(tools.calls))
	}

	roles := make([]string, 0, len(out.Messages))
	for _, m := range out.Messages {
		roles = append(roles, string(m.Role))
	}
	if got := strings.Join(roles, ","); got != "user,assistant,tool,tool,assistant" {
		t.Fatalf("unexpected roles: %s", got)
	}
	if out.Messages[2].ToolCallID != "c1" || out.Messages[2].Content != "result of search_restaurants" {
		t.Fatalf("unexpected first tool message: %+v", out.Messages[2])
	}
	if out.Messages[3].ToolCallID != "c2" || !strings.HasPrefix(out.Messages[3].Content, "Error: Vetri Cucina is not open") {
		t.Fatalf("unexpected second tool message: %+v", out.Messages[3])
	}

	second := model.inputs[1]
	if len(second) != 5 || second[len(second)-1].Role != schema.Tool {
		t.Fatalf("second step must see the tool results, got %d messages", len(second))
	}
}

func TestWorkflowReportsDisallowedTool(t *testing.T) {
	t.Parallel()

	model := &fakeToolCallingModel{responses: []*schema.Message{
		schema.AssistantMessage("", []schema.ToolCall{toolCall("c1", "search_restaurants", `{}`)}),
		schema.AssistantMessage("Let me help with your reservation instead.", nil),
	}}
	tools := &fakeTools{}
	w := newTestWorkflow(t, contractx.AgentTypeSupport, model, tools, 4)

	out, err := w.Run(context.Background(), contractx.WorkflowRequest{SessionID: "s1", Message: "find sushi"})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(tools.calls) != 0 {
		t.Fatalf("disallowed tool must not reach the gateway: %+v", tools.calls)
	}
	if !strings.Contains(out.Messages[2].Content, "not available to the support assistant") {
		t.Fatalf("unexpected tool message: %q", out.Messages[2].Content)
	}
}

func TestWorkflowStepLimit(t *testing.T) {
	t.Parallel()

	model := &fakeToolCallingModel{
		repeat: schema.AssistantMessage("", []schema.ToolCall{toolCall("c", "search_restaurants", `{}`)}),
	}
	w := newTestWorkflow(t, contractx.AgentTypeDiscovery, model, &fakeTools{}, 3)

	_, err := w.Run(context.Background(), contractx.WorkflowRequest{SessionID: "s1", Message: "loop"})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("Run() error = %v, want ErrSchemaViolation", err)
	}
	if len(model.inputs) != 3 {
		t.Fatalf("expected 3 model calls, got %d", len(model.inputs))
	}
}

func TestWorkflowFailures(t *testing.T) {
	t.Parallel()

	gatewayErr := errors.New("database is down")
	tests := []struct {
		name  string
		model *fakeToolCallingModel
		tools *fakeTools
		want  error
	}{
		{
			name:  "model error",
			model: &fakeToolCallingModel{err: errors.New("429")},
			tools: &fakeTools{},
			want:  contractx.ErrModelInvoke,
		},
		{
			name:  "empty reply",
			model: &fakeToolCallingModel{responses: []*schema.Message{schema.AssistantMessage("  ", nil)}},
			tools: &fakeTools{},
			want:  contractx.ErrSchemaViolation,
		},
		{
			name: "gateway error",
			model: &fakeToolCallingModel{responses: []*schema.Message{
				schema.AssistantMessage("", []schema.ToolCall{toolCall("c1", "search_restaurants", `{}`)}),
			}},
			tools: &fakeTools{err: gatewayErr},
			want:  gatewayErr,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			w := newTestWorkflow(t, contractx.AgentTypeDiscovery, tc.model, tc.tools, 4)
			_, err := w.Run(context.Background(), contractx.WorkflowRequest{SessionID: "s1", Message: "hi"})
			if !errors.Is(err, tc.want) {
				t.Fatalf("Run() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestWorkflowValidatesRequest(t *testing.T) {
	t.Parallel()

	w := newTestWorkflow(t, contractx.AgentTypeDiscovery, &fakeToolCallingModel{}, &fakeTools{}, 4)
	if _, err := w.Run(context.Background(), contractx.WorkflowRequest{Message: "hi"}); !errors.Is(err, contractx.ErrInvalidSession) {
		t.Fatalf("Run() error = %v, want ErrInvalidSession", err)
	}
	if _, err := w.Run(context.Background(), contractx.WorkflowRequest{SessionID: "s1"}); !errors.Is(err, contractx.ErrInvalidMessage) {
		t.Fatalf("Run() error = %v, want ErrInvalidMessage", err)
	}
}

func TestNewRegistryBuildsAllAgents(t *testing.T) {
	t.Parallel()

	models := Models{
		Router:    &fakeToolCallingModel{},
		Discovery: &fakeToolCallingModel{},
		Support:   &fakeToolCallingModel{},
	}
	reg, err := NewRegistry(context.Background(), llmConfigForTest(), models, &fakeTools{}, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if reg.Router() == nil || reg.Discovery() == nil || reg.Support() == nil {
		t.Fatal("registry has nil agents")
	}
	if w := reg.Discovery().(*workflowImpl); w.maxSteps != 5 || w.historyLimit != 12 {
		t.Fatalf("limits not taken from config: steps=%d history=%d", w.maxSteps, w.historyLimit)
	}
}

func llmConfigForTest() llmx.Config {
	return llmx.Config{APIKey: "k", Model: "m", MaxToolSteps: 5, HistoryLimit: 12, RouterTimeout: time.Second}
}
