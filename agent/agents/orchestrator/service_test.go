package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"

	bookingx "github.com/tanpawarit/bitebot/agent/booking"
	contractx "github.com/tanpawarit/bitebot/agent/contract"
	hoursx "github.com/tanpawarit/bitebot/agent/hours"
	memoryx "github.com/tanpawarit/bitebot/agent/memory"
	nodex "github.com/tanpawarit/bitebot/agent/nodes"
	restaurantx "github.com/tanpawarit/bitebot/agent/restaurant"
	sessionx "github.com/tanpawarit/bitebot/agent/session"
	toolx "github.com/tanpawarit/bitebot/agent/tool"
)

// Thursday afternoon; tomorrow is Friday.
func fixedNow() time.Time { return time.Date(2026, 10, 15, 15, 0, 0, 0, time.UTC) }

type fakeRouter struct {
	decision contractx.RouteDecision
	err      error
	reqs     []contractx.RouteRequest
}

func (f *fakeRouter) Route(ctx context.Context, req contractx.RouteRequest) (contractx.RouteDecision, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return contractx.RouteDecision{}, f.err
	}
	return f.decision, nil
}

type fakeWorkflow struct {
	run   func(ctx context.Context, req contractx.WorkflowRequest) (contractx.WorkflowResponse, error)
	calls []contractx.WorkflowRequest
}

func (f *fakeWorkflow) Run(ctx context.Context, req contractx.WorkflowRequest) (contractx.WorkflowResponse, error) {
	f.calls = append(f.calls, req)
	return f.run(ctx, req)
}

type fakeRegistry struct {
	router    contractx.Router
	discovery contractx.Workflow
	support   contractx.Workflow
}

func (f *fakeRegistry) Router() contractx.Router {
	return f.router
}

func (f *fakeRegistry) Discovery() contractx.Workflow {
	return f.discovery
}

func (f *fakeRegistry) Support() contractx.Workflow {
	return f.support
}

type failingMemory struct {
	contractx.Checkpointer
}

func (failingMemory) Load(context.Context, string) ([]*schema.Message, error) {
	return nil, errors.New("redis: connection refused")
}

// testHost is one stateless process: its own session store and tools.
type testHost struct {
	sessions *sessionx.Store
	catalog  *toolx.Catalog
	memory   *memoryx.InMemory
	router   *fakeRouter
	registry *fakeRegistry
	orch     *Orchestrator
}

func newTestHost(t *testing.T, agent contractx.AgentType) *testHost {
	t.Helper()

	weekday := "17:00-22:00"
	lookup := restaurantx.NewMemoryLookup(restaurantx.Restaurant{
		BusinessID: "vetri", Name: "Vetri Cucina", City: "Philadelphia", State: "PA",
		Stars: 4.5, ReviewCount: 320, IsOpen: true,
		Attributes: map[string]any{"RestaurantsReservations": "True"},
		Hours: hoursx.Week{
			"Monday": weekday, "Tuesday": weekday, "Wednesday": weekday, "Thursday": weekday,
			"Friday": weekday, "Saturday": "17:00-23:00", "Sunday": "0:00-0:00",
		},
	})
	sessions := sessionx.NewStore()
	catalog := toolx.NewCatalog(toolx.Deps{
		Restaurants: lookup,
		Store:       sessions,
		Checker:     bookingx.NewChecker(lookup, sessions, fixedNow),
		Committer:   bookingx.NewCommitter(lookup, sessions, nil, fixedNow),
		Ledger:      bookingx.NewLedger(lookup, fixedNow),
		Now:         fixedNow,
	})

	h := &testHost{
		sessions: sessions,
		catalog:  catalog,
		memory:   memoryx.NewInMemory(),
		router:   &fakeRouter{decision: contractx.RouteDecision{Agent: agent, Reasoning: "test"}},
	}
	h.registry = &fakeRegistry{router: h.router, discovery: &fakeWorkflow{}, support: &fakeWorkflow{}}
	o, err := New(sessions, h.registry, h.memory, Config{Now: fixedNow})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	h.orch = o
	return h
}

// script makes the workflow of agent call the given tools in order and reply
// with the last tool's text.
func (h *testHost) script(agent contractx.AgentType, calls ...contractx.ToolRequest) *fakeWorkflow {
	w := &fakeWorkflow{run: func(ctx context.Context, req contractx.WorkflowRequest) (contractx.WorkflowResponse, error) {
		msgs := []*schema.Message{schema.UserMessage(req.Message)}
		var last contractx.ToolResult
		for _, call := range calls {
			out, err := h.catalog.Execute(ctx, agent, req.SessionID, call)
			if err != nil {
				return contractx.WorkflowResponse{}, err
			}
			last = out
			msgs = append(msgs, schema.ToolMessage(out.Text(), call.CallID))
		}
		reply := last.Text()
		msgs = append(msgs, schema.AssistantMessage(reply, nil))
		return contractx.WorkflowResponse{Reply: reply, Messages: msgs, Steps: len(calls) + 1}, nil
	}}
	if agent == contractx.AgentTypeSupport {
		h.registry.support = w
	} else {
		h.registry.discovery = w
	}
	return w
}

func TestHandleTurnInvalidInput(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, contractx.AgentTypeDiscovery)

	_, err := h.orch.HandleTurn(context.Background(), TurnRequest{SessionID: "   ", Message: "hello"})
	if !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}

	_, err = h.orch.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "    "})
	if !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestHandleTurnCancelWithoutReservations(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, contractx.AgentTypeSupport)
	support := h.script(contractx.AgentTypeSupport, contractx.ToolRequest{CallID: "c1", Tool: toolx.ToolCancelReservation, Arguments: `{}`})

	out, err := h.orch.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "Cancel my reservation for tonight"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if out.Failed || out.Route.Agent != contractx.AgentTypeSupport {
		t.Fatalf("unexpected result: %+v", out)
	}
	if len(support.calls) != 1 {
		t.Fatalf("support workflow calls = %d, want 1", len(support.calls))
	}
	if !strings.Contains(out.Reply, "don't see any reservations") {
		t.Fatalf("unexpected reply: %q", out.Reply)
	}
	if len(out.Snapshot.Reservations) != 0 || len(out.Committed) != 0 {
		t.Fatalf("no reservations expected: %+v", out.Snapshot)
	}

	history, _ := h.memory.Load(context.Background(), nodex.HistoryThread("s1", contractx.AgentTypeSupport))
	if len(history) != 3 {
		t.Fatalf("support history length = %d, want 3", len(history))
	}
}

func TestHandleTurnSnapshotRoundTripAcrossHosts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	first := newTestHost(t, contractx.AgentTypeDiscovery)
	first.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		CallID: "c1", Tool: toolx.ToolCheckAvailability,
		Arguments: `{"restaurant_name":"Vetri Cucina","date":"tomorrow","time":"7pm","party_size":4}`,
	})
	out, err := first.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "Table for 4 at Vetri tomorrow at 7pm"})
	if err != nil || out.Failed {
		t.Fatalf("turn 1: %+v, %v", out, err)
	}
	tok := out.Snapshot.Availability
	if tok == nil || tok.Date != "2026-10-16" || tok.Time != "19:00" || tok.PartySize != 4 {
		t.Fatalf("unexpected token in snapshot: %+v", tok)
	}
	if out.Snapshot.ThreadID != "s1" || len(out.Snapshot.Messages) != 2 {
		t.Fatalf("unexpected snapshot: %+v", out.Snapshot)
	}

	second := newTestHost(t, contractx.AgentTypeDiscovery)
	second.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		CallID: "c2", Tool: toolx.ToolMakeReservation, Arguments: `{"customer_name":"Sarah Johnson"}`,
	})
	out, err = second.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "Sarah Johnson", Snapshot: out.Snapshot})
	if err != nil || out.Failed {
		t.Fatalf("turn 2: %+v, %v", out, err)
	}
	if len(out.Committed) != 1 {
		t.Fatalf("expected one committed reservation, got %d", len(out.Committed))
	}
	booked := out.Committed[0]
	if booked.Date != "2026-10-16" || booked.Time != "19:00" || booked.PartySize != 4 || booked.CustomerName != "Sarah Johnson" {
		t.Fatalf("unexpected reservation: %+v", booked)
	}
	if out.Snapshot.Availability != nil {
		t.Fatal("token must be consumed")
	}
	if len(out.Snapshot.Reservations) != 1 || len(out.Snapshot.Messages) != 4 {
		t.Fatalf("unexpected snapshot: %+v", out.Snapshot)
	}

	third := newTestHost(t, contractx.AgentTypeSupport)
	third.script(contractx.AgentTypeSupport, contractx.ToolRequest{CallID: "c3", Tool: toolx.ToolViewReservation, Arguments: `{}`})
	out, err = third.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "What did I book?", Snapshot: out.Snapshot})
	if err != nil || out.Failed {
		t.Fatalf("turn 3: %+v, %v", out, err)
	}
	if !strings.Contains(out.Reply, "Confirmation number: "+booked.ReservationID) {
		t.Fatalf("unexpected reply: %q", out.Reply)
	}
	if len(out.Committed) != 0 {
		t.Fatalf("nothing should be committed on a view: %+v", out.Committed)
	}
	if got := third.router.reqs[0].RecentTurns; len(got) != 4 || got[0].Content != "Table for 4 at Vetri tomorrow at 7pm" {
		t.Fatalf("router did not receive snapshot turns: %+v", got)
	}
}

func TestHandleTurnReplayedSnapshotDoesNotBookTwice(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newTestHost(t, contractx.AgentTypeDiscovery)
	h.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		CallID: "c1", Tool: toolx.ToolCheckAvailability,
		Arguments: `{"restaurant_name":"Vetri Cucina","date":"tomorrow","time":"7pm","party_size":4}`,
	})
	checked, err := h.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "Table for 4 at Vetri tomorrow at 7pm"})
	if err != nil || checked.Failed || checked.Snapshot.Availability == nil {
		t.Fatalf("check turn: %+v, %v", checked, err)
	}

	h.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		CallID: "c2", Tool: toolx.ToolMakeReservation, Arguments: `{"customer_name":"Sarah Johnson"}`,
	})
	booked, err := h.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "Sarah Johnson", Snapshot: checked.Snapshot})
	if err != nil || booked.Failed || len(booked.Committed) != 1 {
		t.Fatalf("commit turn: %+v, %v", booked, err)
	}

	// The caller lost the reply and resends the turn with the snapshot it
	// still holds, which carries the already used token.
	retried, err := h.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "Sarah Johnson", Snapshot: checked.Snapshot})
	if err != nil || retried.Failed {
		t.Fatalf("retried turn: %+v, %v", retried, err)
	}
	if len(retried.Committed) != 0 {
		t.Fatalf("retried turn booked again: %+v", retried.Committed)
	}
	if !strings.Contains(retried.Reply, "check availability") {
		t.Fatalf("unexpected reply: %q", retried.Reply)
	}
	if retried.Snapshot.Availability != nil {
		t.Fatalf("used token came back: %+v", retried.Snapshot.Availability)
	}
	held := bookingx.Held(h.sessions, "s1")
	if len(held) != 1 || held[0].ReservationID != booked.Committed[0].ReservationID {
		t.Fatalf("held reservations = %+v", held)
	}
}

func TestHandleTurnFailureRollsBack(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newTestHost(t, contractx.AgentTypeDiscovery)
	h.registry.discovery = &fakeWorkflow{run: func(ctx context.Context, req contractx.WorkflowRequest) (contractx.WorkflowResponse, error) {
		out, err := h.catalog.Execute(ctx, contractx.AgentTypeDiscovery, req.SessionID, contractx.ToolRequest{
			Tool: toolx.ToolCheckAvailability, Arguments: `{"restaurant_name":"Vetri","date":"tomorrow","time":"7pm"}`,
		})
		if err != nil || out.Error != "" {
			t.Errorf("check failed: %+v, %v", out, err)
		}
		return contractx.WorkflowResponse{}, errors.New("model provider returned 500")
	}}

	in := Snapshot{Messages: []contractx.Turn{{Role: "user", Content: "hi"}}}
	out, err := h.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "book Vetri", Snapshot: in})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !out.Failed || out.Reply != DefaultApology {
		t.Fatalf("expected apology, got %+v", out)
	}
	if out.Snapshot.ThreadID != "s1" || len(out.Snapshot.Messages) != 1 || out.Snapshot.Availability != nil {
		t.Fatalf("snapshot must be returned unchanged: %+v", out.Snapshot)
	}
	if _, ok := bookingx.CurrentToken(h.sessions, "s1"); ok {
		t.Fatal("token written during a failed turn must be rolled back")
	}
	if history, _ := h.memory.Load(ctx, nodex.HistoryThread("s1", contractx.AgentTypeDiscovery)); len(history) != 0 {
		t.Fatalf("history must not be saved on failure, got %d messages", len(history))
	}
}

func TestHandleTurnMemoryFailureIsDiscarded(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, contractx.AgentTypeDiscovery)
	o, err := New(h.sessions, h.registry, failingMemory{}, Config{Apology: "Oops.", Now: fixedNow})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	out, err := o.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "hi"})
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !out.Failed || out.Reply != "Oops." {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestHandleTurnUnknownRouteFallsBackToDiscovery(t *testing.T) {
	t.Parallel()

	h := newTestHost(t, contractx.AgentTypeRouter)
	discovery := h.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		Tool: toolx.ToolSearchRestaurants, Arguments: `{"city":"Philadelphia"}`,
	})

	out, err := h.orch.HandleTurn(context.Background(), TurnRequest{SessionID: "s1", Message: "anything good nearby?"})
	if err != nil || out.Failed {
		t.Fatalf("HandleTurn() = %+v, %v", out, err)
	}
	if out.Route.Agent != contractx.AgentTypeDiscovery || !out.Route.Fallback {
		t.Fatalf("unexpected route: %+v", out.Route)
	}
	if len(discovery.calls) != 1 {
		t.Fatalf("discovery calls = %d, want 1", len(discovery.calls))
	}
}

func TestHandleTurnLoadsHistoryAndCapsSnapshotTurns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newTestHost(t, contractx.AgentTypeDiscovery)
	discovery := h.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		Tool: toolx.ToolSearchRestaurants, Arguments: `{"city":"Philadelphia"}`,
	})

	var snap Snapshot
	for i := 0; i < 5; i++ {
		out, err := h.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "more please", Snapshot: snap})
		if err != nil || out.Failed {
			t.Fatalf("turn %d: %+v, %v", i, out, err)
		}
		snap = out.Snapshot
	}
	if len(snap.Messages) != nodex.SnapshotTurnLimit {
		t.Fatalf("snapshot turns = %d, want %d", len(snap.Messages), nodex.SnapshotTurnLimit)
	}
	if got := len(discovery.calls[4].History); got != 12 {
		t.Fatalf("fifth turn history = %d messages, want 12", got)
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := newTestHost(t, contractx.AgentTypeDiscovery)
	h.script(contractx.AgentTypeDiscovery, contractx.ToolRequest{
		Tool: toolx.ToolCheckAvailability, Arguments: `{"restaurant_name":"Vetri","date":"tomorrow","time":"7pm"}`,
	})
	out, err := h.orch.HandleTurn(ctx, TurnRequest{SessionID: "s1", Message: "Vetri tomorrow 7pm", Snapshot: Snapshot{ThreadID: "t-1"}})
	if err != nil || out.Failed {
		t.Fatalf("HandleTurn() = %+v, %v", out, err)
	}
	if history, _ := h.memory.Load(ctx, "t-1:discovery"); len(history) == 0 {
		t.Fatal("expected history for thread t-1")
	}

	fresh, err := h.orch.Reset(ctx, "s1", out.Snapshot)
	if err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if fresh.ThreadID == "" || fresh.ThreadID == "t-1" || fresh.Availability != nil {
		t.Fatalf("unexpected fresh snapshot: %+v", fresh)
	}
	if history, _ := h.memory.Load(ctx, "t-1:discovery"); len(history) != 0 {
		t.Fatal("history must be deleted")
	}
	if _, ok := bookingx.CurrentToken(h.sessions, "s1"); ok {
		t.Fatal("session bag must be cleared")
	}
	if _, err := h.orch.Reset(ctx, " ", Snapshot{}); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("Reset() error = %v, want ErrInvalidSession", err)
	}
}
