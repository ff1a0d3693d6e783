package router

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/bitebot/agent/contract"
)

type fakeChatModel struct {
	content string
	err     error
	block   bool
	inputs  [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.content, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func newTestRouter(t *testing.T, fake *fakeChatModel, timeout time.Duration) *Router {
	t.Helper()
	r, err := New(context.Background(), fake, "router prompt", timeout)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func TestRouteSupport(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: `{"agent":"support","reasoning":"cancelling an existing booking"}`}
	r := newTestRouter(t, fake, time.Second)

	got, err := r.Route(context.Background(), contractx.RouteRequest{Message: "Cancel my reservation for tonight"})
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if got.Agent != contractx.AgentTypeSupport || got.Fallback {
		t.Fatalf("unexpected decision: %+v", got)
	}
	if got.Reasoning != "cancelling an existing booking" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
}

func TestRouteFallsBackToDiscovery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		fake *fakeChatModel
	}{
		{"model error", &fakeChatModel{err: errors.New("503 upstream")}},
		{"not json", &fakeChatModel{content: "support, probably"}},
		{"unknown label", &fakeChatModel{content: `{"agent":"billing","reasoning":"?"}`}},
		{"router label", &fakeChatModel{content: `{"agent":"router","reasoning":"?"}`}},
		{"timeout", &fakeChatModel{block: true}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r := newTestRouter(t, tc.fake, 20*time.Millisecond)
			got, err := r.Route(context.Background(), contractx.RouteRequest{Message: "Italian in Philly?"})
			if err != nil {
				t.Fatalf("Route() error = %v", err)
			}
			if got.Agent != contractx.AgentTypeDiscovery || !got.Fallback {
				t.Fatalf("expected discovery fallback, got %+v", got)
			}
		})
	}
}

func TestRouteRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, &fakeChatModel{}, time.Second)
	if _, err := r.Route(context.Background(), contractx.RouteRequest{Message: "  "}); !errors.Is(err, contractx.ErrInvalidMessage) {
		t.Fatalf("Route() error = %v, want ErrInvalidMessage", err)
	}
}

func TestRoutePayloadCarriesRecentTurns(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{content: `{"agent":"discovery","reasoning":"new search"}`}
	r := newTestRouter(t, fake, time.Second)

	turns := []contractx.Turn{
		{Role: "user", Content: "one"},
		{Role: "assistant", Content: "two"},
		{Role: "user", Content: "three"},
		{Role: "assistant", Content: strings.Repeat("x", 250)},
		{Role: "user", Content: "five"},
	}
	if _, err := r.Route(context.Background(), contractx.RouteRequest{Message: "and sushi?", RecentTurns: turns}); err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if len(fake.inputs) != 1 {
		t.Fatalf("expected one model call, got %d", len(fake.inputs))
	}
	msgs := fake.inputs[0]
	if len(msgs) != 2 || msgs[0].Role != schema.System || msgs[0].Content != "router prompt" {
		t.Fatalf("unexpected prompt messages: %+v", msgs)
	}

	var payload contractx.RouteRequest
	if err := json.Unmarshal([]byte(msgs[1].Content), &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}
	if payload.Message != "and sushi?" || len(payload.RecentTurns) != RecentTurnLimit {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.RecentTurns[0].Content != "two" {
		t.Fatalf("oldest kept turn = %q, want two", payload.RecentTurns[0].Content)
	}
	if n := len(payload.RecentTurns[2].Content); n != TurnExcerptLimit {
		t.Fatalf("turn excerpt length = %d, want %d", n, TurnExcerptLimit)
	}
}

func TestNewRequiresPrompt(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), &fakeChatModel{}, " ", time.Second); !errors.Is(err, contractx.ErrPromptMissing) {
		t.Fatalf("New() error = %v, want ErrPromptMissing", err)
	}
}
